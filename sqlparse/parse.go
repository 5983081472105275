// Package sqlparse parses the subset of the document database's SQL dialect
// needed to find equality predicates in a query's WHERE clause.
//
// The statement is of the form:
//
//	SELECT <projection> FROM <collection> [[AS] <alias>] [WHERE <expression>] [<trailer>]
//
//	<expression> ::= <expression> OR <expression>
//	               | <expression> AND <expression>
//	               | NOT <expression>
//	               | ( <expression> )
//	               | <operand> <comparison> <operand>
//	               | <operand>
//
//	<comparison> ::= = | != | <> | < | <= | > | >= | LIKE | NOT LIKE
//	<operand>    ::= <property> | <literal> | <parameter>
//	<property>   ::= <alias>{.<identifier> | ["<string>"]}...
//	<parameter>  ::= @<identifier>
//	<literal>    ::= <string> | <number> | true | false | null
//
// AND binds tighter than OR. The projection is skipped and the trailer
// (ORDER BY, OFFSET/LIMIT, GROUP BY) is accepted without being modelled.
// Every node records the byte span it occupies so callers can rewrite the
// original text in place.
package sqlparse

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"
	"unicode/utf16"
)

type tokenType int

const (
	tokEOF tokenType = 1 + iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokChar
	tokLeftParen
	tokRightParen
	tokLeftBracket
	tokRightBracket
	tokPeriod
	tokComma
	tokMinus
	tokEqual
	tokLeftAngle
	tokRightAngle
	tokBang
	tokOther
)

type token struct {
	tok   tokenType
	value string
	off   int
	end   int
}

// SyntaxError reports where in the query text parsing failed.
type SyntaxError struct {
	Msg string
	Off int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[Off:%d] %s", e.Off, e.Msg)
}

func syntaxErrorf(off int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Off: off}
}

func newScanner(src string) *scanner.Scanner {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.GoTokens &^ scanner.ScanRawStrings
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || unicode.IsLetter(ch) || (unicode.IsDigit(ch) && i > 0) || (ch == '@' && i == 0)
	}
	// text/scanner reports multi-character single-quoted strings as errors on
	// stderr; they are valid string literals here.
	s.Error = func(*scanner.Scanner, string) {}
	return &s
}

func scanToken(s *scanner.Scanner) token {
	tok := s.Scan()
	t := token{value: s.TokenText(), off: s.Position.Offset}
	t.end = t.off + len(t.value)

	switch tok {
	case scanner.EOF:
		t.tok = tokEOF
		t.value = ""
		t.end = t.off
	case scanner.Ident:
		t.tok = tokIdent
	case scanner.Int:
		t.tok = tokInt
	case scanner.Float:
		t.tok = tokFloat
	case scanner.String:
		t.tok = tokString
	case scanner.Char:
		t.tok = tokChar
	case '(':
		t.tok = tokLeftParen
	case ')':
		t.tok = tokRightParen
	case '[':
		t.tok = tokLeftBracket
	case ']':
		t.tok = tokRightBracket
	case '.':
		t.tok = tokPeriod
	case ',':
		t.tok = tokComma
	case '-':
		t.tok = tokMinus
	case '=':
		t.tok = tokEqual
	case '<':
		t.tok = tokLeftAngle
	case '>':
		t.tok = tokRightAngle
	case '!':
		t.tok = tokBang
	default:
		t.tok = tokOther
	}
	return t
}

type parser struct {
	src string
	s   *scanner.Scanner
	tok token
}

func newParser(src string) *parser {
	p := &parser{src: src, s: newScanner(src)}
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = scanToken(p.s)
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.tok == tokIdent && strings.EqualFold(p.tok.value, kw)
}

func (p *parser) unexpected() error {
	if p.tok.tok == tokEOF {
		return syntaxErrorf(p.tok.off, "unexpected end of statement")
	}
	return syntaxErrorf(p.tok.off, "unexpected '%s'", p.tok.value)
}

// Parse parses a SELECT statement.
func Parse(src string) (*Query, error) {
	q, err := newParser(src).parseQuery()
	if err != nil {
		return nil, err
	}
	return q, nil
}

// TryParse parses src and reports whether it was a valid statement.
func TryParse(src string) (*Query, bool) {
	q, err := Parse(src)
	return q, err == nil
}

func (p *parser) parseQuery() (*Query, error) {
	if p.tok.tok == tokEOF {
		return nil, syntaxErrorf(p.tok.off, "no statement found")
	}
	if !p.isKeyword("select") {
		return nil, syntaxErrorf(p.tok.off, "expected 'select', found '%s'", p.tok.value)
	}
	p.next()

	if err := p.skipProjection(); err != nil {
		return nil, err
	}

	q := &Query{Text: p.src}
	from, err := p.parseFromClause()
	if err != nil {
		return nil, err
	}
	q.From = *from

	if p.isKeyword("where") {
		p.next()
		q.Where, err = p.parseOr()
		if err != nil {
			return nil, err
		}
	}

	if err := p.skipTrailer(); err != nil {
		return nil, err
	}
	return q, nil
}

// skipProjection advances to the FROM keyword at nesting depth zero.
func (p *parser) skipProjection() error {
	depth := 0
	for {
		switch {
		case p.tok.tok == tokEOF:
			return syntaxErrorf(p.tok.off, "unexpected end of statement, expected 'from'")
		case p.tok.tok == tokLeftParen || p.tok.tok == tokLeftBracket:
			depth++
		case p.tok.tok == tokRightParen || p.tok.tok == tokRightBracket:
			depth--
		case depth == 0 && p.isKeyword("from"):
			return nil
		}
		p.next()
	}
}

func isClauseKeyword(s string) bool {
	switch strings.ToLower(s) {
	case "where", "order", "offset", "limit", "group", "join":
		return true
	}
	return false
}

func (p *parser) parseFromClause() (*FromClause, error) {
	from := &FromClause{Span: Span{Off: p.tok.off}}
	p.next() // eat from
	if p.tok.tok != tokIdent || isClauseKeyword(p.tok.value) {
		return nil, syntaxErrorf(p.tok.off, "expected collection, found '%s'", p.tok.value)
	}
	from.Collection = p.tok.value
	from.Alias = p.tok.value
	from.End = p.tok.end
	p.next()

	if p.isKeyword("as") {
		p.next()
		if p.tok.tok != tokIdent {
			return nil, syntaxErrorf(p.tok.off, "expected alias, found '%s'", p.tok.value)
		}
	}
	if p.tok.tok == tokIdent && !isClauseKeyword(p.tok.value) {
		from.Alias = p.tok.value
		from.End = p.tok.end
		p.next()
	}
	return from, nil
}

func (p *parser) skipTrailer() error {
	if p.tok.tok == tokEOF {
		return nil
	}
	if p.isKeyword("order") || p.isKeyword("offset") || p.isKeyword("limit") || p.isKeyword("group") {
		for p.tok.tok != tokEOF {
			p.next()
		}
		return nil
	}
	return p.unexpected()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right, Span: Span{Off: left.Offset(), End: right.EndOffset()}}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right, Span: Span{Off: left.Offset(), End: right.EndOffset()}}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if !p.isKeyword("not") {
		return p.parsePrimary()
	}
	off := p.tok.off
	p.next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{Op: OpNot, Operand: operand, Span: Span{Off: off, End: operand.EndOffset()}}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.tok.tok == tokLeftParen {
		p.next() // eat '('
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.tok != tokRightParen {
			return nil, syntaxErrorf(p.tok.off, "expected ')'")
		}
		p.next() // eat ')'
		return expr, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, ok, err := p.parseComparisonOperator()
	if err != nil {
		return nil, err
	}
	if !ok {
		// A bare operand such as "WHERE c.active" or "WHERE true".
		return left, nil
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, Left: left, Right: right, Span: Span{Off: left.Offset(), End: right.EndOffset()}}, nil
}

func (p *parser) parseComparisonOperator() (Operator, bool, error) {
	switch p.tok.tok {
	case tokEqual:
		p.next()
		return OpEqual, true, nil
	case tokBang:
		p.next()
		if p.tok.tok != tokEqual {
			return 0, false, syntaxErrorf(p.tok.off, "expected '=' after '!'")
		}
		p.next()
		return OpNotEqual, true, nil
	case tokLeftAngle:
		// Can be '<', '<=', '<>'.
		p.next()
		switch p.tok.tok {
		case tokRightAngle:
			p.next()
			return OpNotEqual, true, nil
		case tokEqual:
			p.next()
			return OpLessThanOrEqual, true, nil
		default:
			return OpLessThan, true, nil
		}
	case tokRightAngle:
		// Can be '>', '>='.
		p.next()
		if p.tok.tok == tokEqual {
			p.next()
			return OpGreaterThanOrEqual, true, nil
		}
		return OpGreaterThan, true, nil
	case tokIdent:
		switch {
		case p.isKeyword("like"):
			p.next()
			return OpLike, true, nil
		case p.isKeyword("not"):
			p.next()
			if !p.isKeyword("like") {
				return 0, false, syntaxErrorf(p.tok.off, "expected 'like' after 'not'")
			}
			p.next()
			return OpNotLike, true, nil
		}
	}
	return 0, false, nil
}

func (p *parser) parseOperand() (Expr, error) {
	t := p.tok
	switch t.tok {
	case tokEOF:
		return nil, syntaxErrorf(t.off, "unexpected end of statement, expected operand")
	case tokIdent:
		if strings.HasPrefix(t.value, "@") {
			p.next()
			return &ParameterRef{Name: t.value, Span: Span{Off: t.off, End: t.end}}, nil
		}
		switch strings.ToLower(t.value) {
		case "true", "false":
			p.next()
			return &Literal{Kind: LiteralBool, Text: t.value, Span: Span{Off: t.off, End: t.end}}, nil
		case "null":
			p.next()
			return &Literal{Kind: LiteralNull, Text: t.value, Span: Span{Off: t.off, End: t.end}}, nil
		case "and", "or", "not":
			return nil, syntaxErrorf(t.off, "expected operand, found '%s'", t.value)
		}
		return p.parseProperty()
	case tokInt, tokFloat:
		p.next()
		return &Literal{Kind: LiteralNumber, Text: t.value, Span: Span{Off: t.off, End: t.end}}, nil
	case tokMinus:
		p.next()
		if p.tok.tok != tokInt && p.tok.tok != tokFloat {
			return nil, syntaxErrorf(p.tok.off, "expected number after '-'")
		}
		num := p.tok
		p.next()
		return &Literal{Kind: LiteralNumber, Text: "-" + num.value, Span: Span{Off: t.off, End: num.end}}, nil
	case tokString, tokChar:
		if _, err := Unquote(t.value); err != nil {
			return nil, syntaxErrorf(t.off, "invalid string literal %s", t.value)
		}
		p.next()
		return &Literal{Kind: LiteralString, Text: t.value, Span: Span{Off: t.off, End: t.end}}, nil
	}
	return nil, syntaxErrorf(t.off, "expected operand, found '%s'", t.value)
}

func (p *parser) parseProperty() (Expr, error) {
	prop := &PropertyRef{Root: p.tok.value, Span: Span{Off: p.tok.off, End: p.tok.end}}
	p.next()
	for {
		switch p.tok.tok {
		case tokPeriod:
			p.next()
			if p.tok.tok != tokIdent || strings.HasPrefix(p.tok.value, "@") {
				return nil, syntaxErrorf(p.tok.off, "expected identifier, found '%s'", p.tok.value)
			}
			prop.Segments = append(prop.Segments, p.tok.value)
			prop.End = p.tok.end
			p.next()
		case tokLeftBracket:
			p.next()
			if p.tok.tok != tokString && p.tok.tok != tokChar {
				return nil, syntaxErrorf(p.tok.off, "expected property name, found '%s'", p.tok.value)
			}
			name, err := Unquote(p.tok.value)
			if err != nil {
				return nil, syntaxErrorf(p.tok.off, "invalid property name %s", p.tok.value)
			}
			p.next()
			if p.tok.tok != tokRightBracket {
				return nil, syntaxErrorf(p.tok.off, "expected ']'")
			}
			prop.Segments = append(prop.Segments, name)
			prop.End = p.tok.end
			p.next()
		default:
			return prop, nil
		}
	}
}

// Unquote returns the value of a single- or double-quoted string literal.
// Both \' and \" are accepted in either quote style, along with the JSON
// escapes \\ \/ \b \f \n \r \t and \uXXXX.
func Unquote(text string) (string, error) {
	if len(text) < 2 || text[0] != text[len(text)-1] || (text[0] != '"' && text[0] != '\'') {
		return "", strconv.ErrSyntax
	}
	quote := text[0]
	inner := text[1 : len(text)-1]
	if strings.IndexByte(inner, '\\') < 0 {
		if strings.IndexByte(inner, quote) >= 0 {
			return "", strconv.ErrSyntax
		}
		return inner, nil
	}

	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == quote {
			return "", strconv.ErrSyntax
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(inner) {
			return "", strconv.ErrSyntax
		}
		switch inner[i] {
		case '\'', '"', '\\', '/':
			b.WriteByte(inner[i])
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			r, n, err := unescapeUnicode(inner[i+1:])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		default:
			return "", strconv.ErrSyntax
		}
	}
	return b.String(), nil
}

// unescapeUnicode decodes the hex digits following \u, joining a UTF-16
// surrogate pair written as two escapes. It returns the rune and the number
// of bytes consumed.
func unescapeUnicode(s string) (rune, int, error) {
	r, ok := hex4(s)
	if !ok {
		return 0, 0, strconv.ErrSyntax
	}
	if !utf16.IsSurrogate(r) {
		return r, 4, nil
	}
	if len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if lo, ok := hex4(s[6:]); ok {
			if dec := utf16.DecodeRune(r, lo); dec != unicode.ReplacementChar {
				return dec, 10, nil
			}
		}
	}
	return unicode.ReplacementChar, 4, nil
}

func hex4(s string) (rune, bool) {
	if len(s) < 4 {
		return 0, false
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
