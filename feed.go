package encryptedquery

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HeaderContinuation carries the continuation token of a page.
const HeaderContinuation = "x-ms-continuation"

// ResponseMessage is one page as returned by the paging collaborator.
type ResponseMessage struct {
	StatusCode int
	Headers    http.Header
	Content    []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *ResponseMessage) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContinuationToken returns the token to resume after this page.
func (r *ResponseMessage) ContinuationToken() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(HeaderContinuation)
}

// FeedIterator is a paged result stream. Implementations need not support
// concurrent calls to ReadNext.
type FeedIterator interface {
	HasMoreResults() bool
	ReadNext(ctx context.Context) (*ResponseMessage, error)
}

// QueryIteratorFactory opens a FeedIterator for a query, resuming from
// continuation when it is not empty.
type QueryIteratorFactory interface {
	QueryIterator(ctx context.Context, query *QueryDefinition, continuation string, opts *QueryRequestOptions) (FeedIterator, error)
}

type feedState int

const (
	stateNotStarted feedState = iota
	stateHasMore
	stateExhausted
)

// EncryptionFeedIterator decrypts the pages of an inner FeedIterator and,
// when built from a query, encrypts the query's predicates before opening it.
type EncryptionFeedIterator struct {
	cfg         *config
	transformer *PageTransformer

	inner          FeedIterator
	factory        QueryIteratorFactory
	rewriter       *Rewriter
	query          *QueryDefinition
	encrypted      *QueryDefinition
	requestOptions *QueryRequestOptions

	state        feedState
	continuation string
	// reopen is set when the inner iterator moved past a page that was
	// never delivered.
	reopen bool
}

var _ FeedIterator = (*EncryptionFeedIterator)(nil)

// WrapFeedIterator decrypts the pages of an already open iterator. Documents
// are decrypted in the legacy format unless WithPolicy is given. The query is
// not rewritten.
func WrapFeedIterator(inner FeedIterator, encryptor Encryptor, opts ...Option) (*EncryptionFeedIterator, error) {
	if inner == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "nil feed iterator")
	}
	it, err := newEncryptionFeedIterator(encryptor, opts)
	if err != nil {
		return nil, err
	}
	it.inner = inner
	return it, nil
}

// NewEncryptionFeedIterator returns an iterator that rewrites query against
// policy on the first ReadNext, opens it through factory and decrypts every
// page. A nil policy selects legacy document decryption and no rewriting.
func NewEncryptionFeedIterator(
	query *QueryDefinition,
	policy *ClientEncryptionPolicy,
	requestOptions *QueryRequestOptions,
	encryptor Encryptor,
	factory QueryIteratorFactory,
	opts ...Option,
) (*EncryptionFeedIterator, error) {
	if query == nil || factory == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "iterator needs a query and a factory")
	}
	if policy != nil {
		opts = append(opts[:len(opts):len(opts)], WithPolicy(policy))
	}
	it, err := newEncryptionFeedIterator(encryptor, opts)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		if it.rewriter, err = NewRewriter(policy, encryptor, opts...); err != nil {
			return nil, err
		}
	}
	it.factory = factory
	it.query = query
	it.requestOptions = requestOptions
	return it, nil
}

func newEncryptionFeedIterator(encryptor Encryptor, opts []Option) (*EncryptionFeedIterator, error) {
	if encryptor == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "nil encryptor")
	}
	cfg := newConfig(opts)

	var (
		decryptor DocumentDecryptor
		err       error
	)
	if cfg.policy != nil {
		decryptor, err = NewPropertyEncryptor(cfg.policy, encryptor, opts...)
	} else {
		decryptor, err = NewLegacyDecryptor(encryptor)
	}
	if err != nil {
		return nil, err
	}
	transformer, err := NewPageTransformer(decryptor, opts...)
	if err != nil {
		return nil, err
	}

	return &EncryptionFeedIterator{
		cfg:          cfg,
		transformer:  transformer,
		continuation: cfg.continuation,
	}, nil
}

// HasMoreResults reports whether ReadNext may return another page.
func (it *EncryptionFeedIterator) HasMoreResults() bool {
	switch it.state {
	case stateNotStarted:
		if it.inner != nil {
			return it.inner.HasMoreResults()
		}
		return true
	case stateHasMore:
		return true
	default:
		return false
	}
}

// ContinuationToken returns the token after the last delivered page. A new
// iterator created with WithContinuationToken resumes after that page.
func (it *EncryptionFeedIterator) ContinuationToken() string {
	return it.continuation
}

// ReadNext returns the next page with its documents decrypted.
//
// Non-success responses are returned unchanged. Once the results are
// exhausted ReadNext returns an empty 204 response. Errors from the paging
// collaborator are returned as is.
//
// If a page cannot be delivered after it was read, an iterator built by
// NewEncryptionFeedIterator reopens the query from ContinuationToken and the
// next call reads the page again. An iterator built by WrapFeedIterator
// cannot reopen its inner iterator: it returns the error, ContinuationToken
// stays at the last delivered page and the next call reads the page after
// the failed one.
func (it *EncryptionFeedIterator) ReadNext(ctx context.Context) (*ResponseMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.state == stateExhausted {
		return &ResponseMessage{StatusCode: http.StatusNoContent, Headers: http.Header{}}, nil
	}

	start := time.Now()
	activityID := uuid.NewString()
	logger := it.cfg.logger.With().Str("activity_id", activityID).Logger()

	if err := it.open(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to open query")
		return nil, err
	}

	resp, err := it.inner.ReadNext(ctx)
	if err != nil {
		return nil, err
	}
	it.updateState()

	diag := PullDiagnostics{ActivityID: activityID, StatusCode: resp.StatusCode}
	if !resp.IsSuccess() || len(resp.Content) == 0 {
		if resp.IsSuccess() {
			it.continuation = resp.ContinuationToken()
		}
		it.sample(logger, diag, start)
		return resp, nil
	}

	body, stats, err := it.transformer.transform(ctx, resp.Content)
	if err != nil {
		if it.factory != nil {
			it.reopen = true
			it.state = stateHasMore
		}
		return nil, err
	}
	it.continuation = resp.ContinuationToken()

	diag.Documents, diag.Failures = stats.Documents, stats.Failures
	it.sample(logger, diag, start)

	return &ResponseMessage{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers.Clone(),
		Content:    body,
	}, nil
}

// open rewrites the query once and opens the inner iterator from the last
// delivered continuation token.
func (it *EncryptionFeedIterator) open(ctx context.Context) error {
	if it.inner != nil && !it.reopen {
		return nil
	}

	if it.encrypted == nil {
		encrypted := it.query
		if it.rewriter != nil {
			res, err := it.rewriter.Rewrite(ctx, it.query)
			if err != nil {
				return err
			}
			encrypted = res.Query
		}
		it.encrypted = encrypted
	}

	inner, err := it.factory.QueryIterator(ctx, it.encrypted, it.continuation, it.requestOptions)
	if err != nil {
		return err
	}
	it.inner = inner
	it.reopen = false
	return nil
}

func (it *EncryptionFeedIterator) updateState() {
	if it.inner.HasMoreResults() {
		it.state = stateHasMore
	} else {
		it.state = stateExhausted
	}
}

func (it *EncryptionFeedIterator) sample(logger zerolog.Logger, d PullDiagnostics, start time.Time) {
	d.Duration = time.Since(start)
	if !it.cfg.sampler.Offer(d) {
		return
	}
	logger.Debug().
		Int("status", d.StatusCode).
		Dur("duration", d.Duration).
		Int("documents", d.Documents).
		Int("failures", d.Failures).
		Msg("Pull diagnostics")
}
