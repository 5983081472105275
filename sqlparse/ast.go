package sqlparse

import (
	"fmt"
	"strings"
)

// Operator is a boolean or comparison operator in a filter expression.
type Operator int

const (
	OpAnd Operator = 1 + iota
	OpOr
	OpNot
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLike
	OpNotLike
)

func (o Operator) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLike:
		return "LIKE"
	case OpNotLike:
		return "NOT LIKE"
	default:
		return fmt.Sprintf("unknown operator %d", int(o))
	}
}

// Span is the half-open byte range [Off, End) a node occupies in the query text.
type Span struct {
	Off int
	End int
}

// Offset returns the byte offset where the node starts.
func (s Span) Offset() int { return s.Off }

// EndOffset returns the byte offset just past the node.
func (s Span) EndOffset() int { return s.End }

// Expr is a node of a filter expression tree. Nodes are immutable once parsed.
// The concrete types are *BinaryExpr, *UnaryExpr, *PropertyRef, *Literal and
// *ParameterRef.
type Expr interface {
	Offset() int
	EndOffset() int
	String() string
}

// BinaryExpr combines two expressions with a logical or comparison operator.
type BinaryExpr struct {
	Op    Operator
	Left  Expr
	Right Expr
	Span
}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// UnaryExpr applies NOT to an expression.
type UnaryExpr struct {
	Op      Operator
	Operand Expr
	Span
}

func (e *UnaryExpr) String() string {
	return fmt.Sprintf("(%s %s)", e.Op, e.Operand)
}

// PropertyRef references a document property through the collection alias,
// e.g. c.ssn, c.address.city or c["ssn"].
type PropertyRef struct {
	Root     string
	Segments []string
	Span
}

// Name returns the property name relative to the alias, segments joined with '/'.
// It is empty when the reference is the alias itself.
func (p *PropertyRef) Name() string {
	return strings.Join(p.Segments, "/")
}

// Path returns the property path as used by encryption policies, e.g. "/ssn".
func (p *PropertyRef) Path() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return "/" + p.Name()
}

func (p *PropertyRef) String() string {
	if len(p.Segments) == 0 {
		return p.Root
	}
	return p.Root + "." + strings.Join(p.Segments, ".")
}

// LiteralKind classifies a literal operand.
type LiteralKind int

const (
	LiteralString LiteralKind = 1 + iota
	LiteralNumber
	LiteralBool
	LiteralNull
)

// Literal is a constant operand. Text holds the literal as written in the
// query, including the quotes of string literals.
type Literal struct {
	Kind LiteralKind
	Text string
	Span
}

func (l *Literal) String() string {
	return l.Text
}

// ParameterRef references a bound query parameter such as @ssn.
type ParameterRef struct {
	Name string
	Span
}

func (p *ParameterRef) String() string {
	return p.Name
}

// FromClause names the queried collection and its alias.
type FromClause struct {
	Collection string
	Alias      string
	Span
}

// Query is a parsed SELECT statement. Only the FROM and WHERE clauses are
// modelled; the projection and any trailing ORDER BY, OFFSET/LIMIT or GROUP BY
// clauses are accepted but not represented.
type Query struct {
	Text  string
	From  FromClause
	Where Expr
}

func (q *Query) String() string {
	if q.Where == nil {
		return fmt.Sprintf("FROM %s %s", q.From.Collection, q.From.Alias)
	}
	return fmt.Sprintf("FROM %s %s WHERE %s", q.From.Collection, q.From.Alias, q.Where)
}
