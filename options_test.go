package encryptedquery

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ai8future/encryptedquery/sqlparse"
)

func TestDefaultConfig(t *testing.T) {
	cfg := newConfig(nil)

	require.Equal(t, 1, cfg.concurrency)
	require.Same(t, defaultSampler, cfg.sampler)
	require.Same(t, defaultRegistry, cfg.serializers)
	require.Nil(t, cfg.metrics)
	require.Nil(t, cfg.handler)
	require.Nil(t, cfg.policy)
	require.Empty(t, cfg.continuation)
}

func TestWithDecryptConcurrency(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{8, 8},
	}

	for _, tt := range tests {
		cfg := newConfig([]Option{WithDecryptConcurrency(tt.n)})
		require.Equal(t, tt.want, cfg.concurrency, "n=%d", tt.n)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := newConfig([]Option{WithLogger(zerolog.New(&buf))})

	cfg.logger.Info().Msg("hello")
	require.Contains(t, buf.String(), `"message":"hello"`)
}

func TestWithMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	cfg := newConfig([]Option{WithMetrics(m)})
	require.Same(t, m, cfg.metrics)
}

func TestWithDiagnosticsSampler_Nil(t *testing.T) {
	cfg := newConfig([]Option{WithDiagnosticsSampler(nil)})
	require.Nil(t, cfg.sampler)
	require.False(t, cfg.sampler.Offer(PullDiagnostics{}))
	require.Nil(t, cfg.sampler.Recent())
}

func TestWithParser(t *testing.T) {
	called := false
	cfg := newConfig([]Option{WithParser(func(text string) (*sqlparse.Query, bool) {
		called = true
		return sqlparse.TryParse(text)
	})})

	_, ok := cfg.parse("SELECT * FROM c")
	require.True(t, ok)
	require.True(t, called)
}

func TestWithContinuationTokenAndPolicy(t *testing.T) {
	p := testPolicy(t)
	cfg := newConfig([]Option{WithContinuationToken("tok"), WithPolicy(p)})
	require.Equal(t, "tok", cfg.continuation)
	require.Same(t, p, cfg.policy)
}

func TestOptions_LastWins(t *testing.T) {
	cfg := newConfig([]Option{WithDecryptConcurrency(2), WithDecryptConcurrency(5)})
	require.Equal(t, 5, cfg.concurrency)
}
