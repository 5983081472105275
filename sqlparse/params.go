package sqlparse

import "strings"

// ReplaceParameters returns text with parameter references substituted.
// resolve is called with each parameter name (including the leading '@') and
// returns the replacement text and whether to replace it. References inside
// string literals are not parameters and are left alone.
func ReplaceParameters(text string, resolve func(name string) (string, bool)) string {
	s := newScanner(text)
	var b strings.Builder
	last := 0
	for {
		t := scanToken(s)
		if t.tok == tokEOF {
			break
		}
		if t.tok != tokIdent || !strings.HasPrefix(t.value, "@") {
			continue
		}
		repl, ok := resolve(t.value)
		if !ok {
			continue
		}
		b.WriteString(text[last:t.off])
		b.WriteString(repl)
		last = t.end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// ReplaceSpans returns text with each span replaced by the matching entry of
// repl. Spans must be sorted and must not overlap.
func ReplaceSpans(text string, spans []Span, repl []string) string {
	var b strings.Builder
	last := 0
	for i, sp := range spans {
		b.WriteString(text[last:sp.Off])
		b.WriteString(repl[i])
		last = sp.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Parameters returns every parameter reference in text, in order of
// appearance and with repeats.
func Parameters(text string) []string {
	var names []string
	s := newScanner(text)
	for t := scanToken(s); t.tok != tokEOF; t = scanToken(s) {
		if t.tok == tokIdent && strings.HasPrefix(t.value, "@") {
			names = append(names, t.value)
		}
	}
	return names
}
