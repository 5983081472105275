package encryptedquery

import "strings"

// Parameter is a named value bound to a query. Names start with '@'.
type Parameter struct {
	Name  string
	Value any
}

// QueryDefinition is query text plus ordered parameter bindings.
// It is immutable: WithParameter returns a new definition.
type QueryDefinition struct {
	text   string
	params []Parameter
}

// NewQueryDefinition creates a definition without parameters.
func NewQueryDefinition(text string) *QueryDefinition {
	return &QueryDefinition{text: text}
}

// Text returns the query text.
func (q *QueryDefinition) Text() string {
	return q.text
}

// WithParameter returns a copy of q with name bound to value. A missing '@'
// prefix is added. Rebinding an existing name keeps its position.
//
// Supported values are string, bool, Go integer and float kinds, []byte and nil.
func (q *QueryDefinition) WithParameter(name string, value any) *QueryDefinition {
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}

	params := make([]Parameter, len(q.params), len(q.params)+1)
	copy(params, q.params)

	out := &QueryDefinition{text: q.text, params: params}
	for i := range out.params {
		if out.params[i].Name == name {
			out.params[i].Value = value
			return out
		}
	}
	out.params = append(out.params, Parameter{Name: name, Value: value})
	return out
}

// withText returns a copy of q with different text and the same parameters.
func (q *QueryDefinition) withText(text string) *QueryDefinition {
	return &QueryDefinition{text: text, params: q.params}
}

// Parameters returns the bound parameters in binding order.
func (q *QueryDefinition) Parameters() []Parameter {
	return append([]Parameter(nil), q.params...)
}

// Parameter returns the value bound to name.
func (q *QueryDefinition) Parameter(name string) (any, bool) {
	for _, p := range q.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// HasParameters reports whether any parameter is bound.
func (q *QueryDefinition) HasParameters() bool {
	return len(q.params) > 0
}

// QueryRequestOptions are passed through to the paging collaborator unchanged.
type QueryRequestOptions struct {
	PartitionKey   string
	MaxItemCount   int
	MaxConcurrency int
	SessionToken   string
}
