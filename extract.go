package encryptedquery

import (
	"github.com/pkg/errors"

	"github.com/ai8future/encryptedquery/sqlparse"
)

// PredicateKind says whether a predicate compares against a literal or a parameter.
type PredicateKind int

const (
	PredicateLiteral PredicateKind = 1 + iota
	PredicateParameter
)

// Predicate is one `property = value` leaf of a WHERE clause.
type Predicate struct {
	// Property is the name relative to the collection alias, e.g. "ssn".
	Property string
	// Path is the policy path, e.g. "/ssn".
	Path string
	// Value is the literal as written (quotes included) or the parameter name.
	Value string
	Kind  PredicateKind
	// Span locates Value in the query text.
	sqlparse.Span
}

// Predicates are the equality leaves of a filter in source order.
type Predicates []Predicate

// Map returns property name to literal text or parameter name.
// When a property is compared more than once the last comparison wins.
func (ps Predicates) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Property] = p.Value
	}
	return m
}

// ExtractPredicates walks a filter built from AND, OR and equality comparisons
// and returns one predicate per comparison. Any other operator, or a
// comparison that is not `property = literal|parameter`, makes the whole
// filter unsupported and the result empty.
//
// The walk uses an explicit stack so deep filters cannot exhaust the goroutine stack.
func ExtractPredicates(root sqlparse.Expr) (Predicates, bool, error) {
	if root == nil {
		return nil, false, nil
	}

	var preds Predicates
	stack := []sqlparse.Expr{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bin, ok := node.(*sqlparse.BinaryExpr)
		if !ok {
			return nil, false, nil
		}

		switch bin.Op {
		case sqlparse.OpAnd, sqlparse.OpOr:
			// Right first so the left subtree is emitted first.
			stack = append(stack, bin.Right, bin.Left)
		case sqlparse.OpEqual:
			p, ok, err := equalityPredicate(bin)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			preds = append(preds, p)
		default:
			return nil, false, nil
		}
	}
	return preds, true, nil
}

func equalityPredicate(e *sqlparse.BinaryExpr) (Predicate, bool, error) {
	var p Predicate

	switch left := e.Left.(type) {
	case *sqlparse.PropertyRef:
		if left.Path() == "" {
			return p, false, nil
		}
		p.Property = left.Name()
		p.Path = left.Path()
	case *sqlparse.Literal, *sqlparse.ParameterRef:
		return p, false, nil
	default:
		return p, false, malformedOperand("left", e.Left)
	}

	switch right := e.Right.(type) {
	case *sqlparse.Literal:
		p.Value = right.Text
		p.Kind = PredicateLiteral
		p.Span = right.Span
	case *sqlparse.ParameterRef:
		p.Value = right.Name
		p.Kind = PredicateParameter
		p.Span = right.Span
	case *sqlparse.PropertyRef:
		return p, false, nil
	default:
		return p, false, malformedOperand("right", e.Right)
	}

	return p, true, nil
}

func malformedOperand(side string, x sqlparse.Expr) error {
	if x == nil {
		return errors.Wrapf(ErrMalformedPredicate, "missing %s operand", side)
	}
	return errors.Wrapf(ErrMalformedPredicate, "%s operand %T at offset %d", side, x, x.Offset())
}
