package encryptedquery

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/ai8future/encryptedquery/sqlparse"
)

// RewriteOutcome classifies what Rewrite did to a query.
type RewriteOutcome int

const (
	// RewriteUnchanged means the filter was understood but compares no encrypted property.
	RewriteUnchanged RewriteOutcome = iota
	// RewriteEncrypted means at least one predicate value now travels as ciphertext.
	RewriteEncrypted
	// RewriteUnsupported means the filter could not be analysed and the query
	// is sent as written, predicate values in plaintext.
	RewriteUnsupported
)

func (o RewriteOutcome) String() string {
	switch o {
	case RewriteUnchanged:
		return "unchanged"
	case RewriteEncrypted:
		return "encrypted"
	case RewriteUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// RewriteResult is the query to send and how it was derived.
type RewriteResult struct {
	Query   *QueryDefinition
	Outcome RewriteOutcome
	// Reason explains an unsupported outcome.
	Reason string
	// EncryptedParameters names the parameters bound to ciphertext.
	EncryptedParameters []string
}

// Rewriter replaces values compared against encrypted properties with
// ciphertext parameters. It is safe for concurrent use.
type Rewriter struct {
	policy    *ClientEncryptionPolicy
	encryptor Encryptor
	cfg       *config
}

// NewRewriter creates a Rewriter for policy.
func NewRewriter(policy *ClientEncryptionPolicy, encryptor Encryptor, opts ...Option) (*Rewriter, error) {
	if policy == nil || encryptor == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "rewriter needs a policy and an encryptor")
	}
	return &Rewriter{policy: policy, encryptor: encryptor, cfg: newConfig(opts)}, nil
}

// Rewrite returns a new query in which every `property = value` predicate on an
// encrypted property compares against a ciphertext parameter.
//
// Inline literals are replaced by parameters named after the property ("@ssn",
// then "@ssn_2" for a second comparison). A parameter compared against an
// encrypted property is rebound to ciphertext under its own name unless the
// query uses it elsewhere, in which case that comparison gets a fresh
// parameter. Values compared against unencrypted properties are left alone.
//
// Filters that do not parse or use anything besides AND, OR and = are not an
// error: the query is returned unchanged with RewriteUnsupported. Conversion,
// serialization and encryption failures are errors and nothing is returned.
func (r *Rewriter) Rewrite(ctx context.Context, query *QueryDefinition) (*RewriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, ok := r.cfg.parse(query.Text())
	if !ok {
		return r.unsupported(query, "query text does not parse"), nil
	}
	if parsed.Where == nil {
		return r.unsupported(query, "query has no WHERE clause"), nil
	}
	preds, ok, err := ExtractPredicates(parsed.Where)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.unsupported(query, "filter uses an operator other than AND, OR or ="), nil
	}

	resolved := preds
	if query.HasParameters() {
		resolved, err = r.resolvedPredicates(query, len(preds))
		if err != nil {
			return nil, err
		}
	}

	rw := newQueryRewrite(query)
	for i, p := range preds {
		setting, covered := r.policy.Lookup(p.Path)
		if !covered {
			continue
		}
		rp := resolved[i]
		if rp.Property != p.Property {
			return nil, errors.Wrapf(ErrParameterCorrelation, "predicate %d compares %s, resolved text compares %s", i, p.Path, rp.Path)
		}

		switch {
		case p.Kind == PredicateLiteral:
			ct, ok, err := r.encryptLiteral(ctx, p.Path, p.Value, setting)
			if err != nil {
				return nil, err
			}
			if ok {
				rw.replace(p, ct)
			}

		case rp.Kind == PredicateParameter:
			if _, bound := query.Parameter(p.Value); bound {
				return nil, errors.Wrapf(ErrTypeConversion, "parameter %s compared to %s has no literal form", p.Value, p.Path)
			}
			return nil, errors.Wrapf(ErrUnboundParameter, "%s compared to %s", p.Value, p.Path)

		default:
			ct, ok, err := r.encryptLiteral(ctx, p.Path, rp.Value, setting)
			if err != nil {
				return nil, err
			}
			if ok {
				rw.rebind(p, ct)
			}
		}
	}

	result := rw.result()
	r.cfg.metrics.rewrite(result.Outcome)
	if result.Outcome == RewriteEncrypted {
		r.cfg.logger.Debug().
			Strs("parameters", result.EncryptedParameters).
			Msg("Encrypted query predicates")
	}
	return result, nil
}

func (r *Rewriter) unsupported(query *QueryDefinition, reason string) *RewriteResult {
	r.cfg.metrics.rewrite(RewriteUnsupported)
	r.cfg.logger.Warn().Str("reason", reason).Msg("Query predicates sent unencrypted")
	return &RewriteResult{Query: query, Outcome: RewriteUnsupported, Reason: reason}
}

// resolvedPredicates extracts predicates from the query text with every bound
// parameter substituted by its literal form.
func (r *Rewriter) resolvedPredicates(query *QueryDefinition, want int) (Predicates, error) {
	text := sqlparse.ReplaceParameters(query.Text(), func(name string) (string, bool) {
		v, ok := query.Parameter(name)
		if !ok {
			return "", false
		}
		lit, err := FormatLiteral(v)
		if err != nil {
			return "", false
		}
		return lit, true
	})

	parsed, ok := r.cfg.parse(text)
	if !ok || parsed.Where == nil {
		return nil, errors.Wrap(ErrParameterCorrelation, "query text with parameters substituted does not parse")
	}
	preds, ok, err := ExtractPredicates(parsed.Where)
	if err != nil {
		return nil, err
	}
	if !ok || len(preds) != want {
		return nil, errors.Wrapf(ErrParameterCorrelation, "found %d predicates with parameters substituted, want %d", len(preds), want)
	}
	return preds, nil
}

// encryptLiteral converts, serializes and encrypts one literal. It reports
// false for null, which is stored unencrypted.
func (r *Rewriter) encryptLiteral(ctx context.Context, path, text string, setting PropertyEncryptionSetting) ([]byte, bool, error) {
	v, err := ConvertLiteral(text, setting.PropertyDataType)
	if err != nil {
		return nil, false, errors.Wrapf(err, "property %s", path)
	}
	if v == nil {
		return nil, false, nil
	}
	ct, err := encryptValue(ctx, r.encryptor, r.cfg.serializers, path, setting, v)
	if err != nil {
		return nil, false, err
	}
	return ct, true, nil
}

// queryRewrite accumulates the edits of one Rewrite call.
type queryRewrite struct {
	orig  *QueryDefinition
	out   *QueryDefinition
	spans []sqlparse.Span
	repl  []string
	names []string
	taken map[string]bool
	uses  map[string]int
}

func newQueryRewrite(query *QueryDefinition) *queryRewrite {
	rw := &queryRewrite{
		orig:  query,
		out:   query,
		taken: make(map[string]bool),
		uses:  make(map[string]int),
	}
	for _, p := range query.Parameters() {
		rw.taken[p.Name] = true
	}
	for _, name := range sqlparse.Parameters(query.Text()) {
		rw.taken[name] = true
		rw.uses[name]++
	}
	return rw
}

// replace swaps the predicate's value for a new parameter bound to ct.
func (rw *queryRewrite) replace(p Predicate, ct []byte) {
	name := rw.freshName(p.Property)
	rw.spans = append(rw.spans, p.Span)
	rw.repl = append(rw.repl, name)
	rw.out = rw.out.WithParameter(name, ct)
	rw.names = append(rw.names, name)
}

// rebind binds ct to the predicate's own parameter, or to a fresh one when
// the parameter appears more than once in the query.
func (rw *queryRewrite) rebind(p Predicate, ct []byte) {
	if rw.uses[p.Value] > 1 {
		rw.replace(p, ct)
		return
	}
	rw.out = rw.out.WithParameter(p.Value, ct)
	rw.names = append(rw.names, p.Value)
}

func (rw *queryRewrite) freshName(property string) string {
	base := "@" + parameterIdent(property)
	name := base
	for n := 2; rw.taken[name]; n++ {
		name = base + "_" + strconv.Itoa(n)
	}
	rw.taken[name] = true
	return name
}

func (rw *queryRewrite) result() *RewriteResult {
	if len(rw.names) == 0 {
		return &RewriteResult{Query: rw.orig, Outcome: RewriteUnchanged}
	}
	out := rw.out
	if len(rw.spans) > 0 {
		out = out.withText(sqlparse.ReplaceSpans(rw.orig.Text(), rw.spans, rw.repl))
	}
	return &RewriteResult{Query: out, Outcome: RewriteEncrypted, EncryptedParameters: rw.names}
}

// parameterIdent turns a property name into a valid parameter identifier.
func parameterIdent(property string) string {
	var b strings.Builder
	for i, r := range property {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
