package encryptedquery

import (
	"github.com/rs/zerolog"

	"github.com/ai8future/encryptedquery/sqlparse"
)

// ParseFunc is the expression parser collaborator.
type ParseFunc func(text string) (*sqlparse.Query, bool)

// Option is a functional option for rewriters, page transformers and feed iterators.
type Option func(*config)

// config holds options shared by every component.
type config struct {
	logger       zerolog.Logger
	metrics      *Metrics
	sampler      *DiagnosticsSampler
	parse        ParseFunc
	serializers  SerializerProvider
	handler      DecryptionResultHandler
	continuation string
	concurrency  int
	policy       *ClientEncryptionPolicy
}

func defaultConfig() *config {
	return &config{
		logger:      zerolog.Nop(),
		sampler:     DefaultDiagnosticsSampler(),
		parse:       sqlparse.TryParse,
		serializers: defaultRegistry,
		concurrency: 1,
	}
}

func newConfig(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLogger sets the logger. The default discards everything.
// Plaintext values are never logged.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics records rewrite outcomes, decrypt failures and page latency in m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithDiagnosticsSampler replaces the process-wide diagnostics sampler.
// Passing nil disables pull diagnostics.
func WithDiagnosticsSampler(s *DiagnosticsSampler) Option {
	return func(c *config) {
		c.sampler = s
	}
}

// WithParser replaces the query parser.
func WithParser(parse ParseFunc) Option {
	return func(c *config) {
		c.parse = parse
	}
}

// WithSerializers replaces the serializer registry.
func WithSerializers(s SerializerProvider) Option {
	return func(c *config) {
		c.serializers = s
	}
}

// WithDecryptionResultHandler keeps documents that fail to decrypt in the page,
// still encrypted, and reports each failure to h. Without a handler the first
// failure aborts the page.
func WithDecryptionResultHandler(h DecryptionResultHandler) Option {
	return func(c *config) {
		c.handler = h
	}
}

// WithContinuationToken resumes a query from a token returned by ContinuationToken.
func WithContinuationToken(token string) Option {
	return func(c *config) {
		c.continuation = token
	}
}

// WithDecryptConcurrency sets how many documents of a page are decrypted at
// once. Values below 1 mean 1.
func WithDecryptConcurrency(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// WithPolicy makes a wrapped iterator decrypt with an explicit property policy
// instead of the legacy whole-document format.
func WithPolicy(p *ClientEncryptionPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}
