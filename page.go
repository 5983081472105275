package encryptedquery

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// DocumentsKey is the page envelope member holding the documents.
const DocumentsKey = "Documents"

// DecryptionResult reports a document that could not be decrypted.
type DecryptionResult struct {
	// Content is the document exactly as received.
	Content []byte
	// Err is why decryption failed.
	Err error
	// Fingerprint is the XXH3 hash of Content, for correlating log lines
	// without logging the document.
	Fingerprint uint64
}

// DecryptionResultHandler consumes decryption failures. It is called on the
// pulling goroutine, once per failed document, in page order.
type DecryptionResultHandler func(*DecryptionResult)

// PageTransformer decrypts the documents of a page envelope.
type PageTransformer struct {
	decryptor DocumentDecryptor
	cfg       *config
}

// PageStats counts what one Transform call did.
type PageStats struct {
	Documents int
	Failures  int
}

// NewPageTransformer creates a PageTransformer.
func NewPageTransformer(decryptor DocumentDecryptor, opts ...Option) (*PageTransformer, error) {
	if decryptor == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "page transformer needs a decryptor")
	}
	return &PageTransformer{decryptor: decryptor, cfg: newConfig(opts)}, nil
}

// Transform decrypts every document object of the envelope's Documents array.
// Other array entries and every other envelope member are kept byte for byte.
//
// Without a DecryptionResultHandler the first failing document fails the
// whole page. With one, failed documents stay in the array as received.
func (t *PageTransformer) Transform(ctx context.Context, body []byte) ([]byte, error) {
	out, _, err := t.transform(ctx, body)
	return out, err
}

func (t *PageTransformer) transform(ctx context.Context, body []byte) ([]byte, PageStats, error) {
	var stats PageStats
	start := time.Now()
	defer func() { t.cfg.metrics.observePage(time.Since(start)) }()

	if !json.Valid(body) {
		return nil, stats, errors.Wrap(ErrMalformedEnvelope, "page is not valid JSON")
	}
	members, err := objectMembers(body)
	if err != nil {
		return nil, stats, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}

	docs := -1
	for i, m := range members {
		if m.key == DocumentsKey {
			docs = i
			break
		}
	}
	if docs < 0 {
		return nil, stats, errors.Wrapf(ErrMalformedEnvelope, "no %s member", DocumentsKey)
	}
	elems, isArray, err := arrayElements(members[docs].value)
	if err != nil {
		return nil, stats, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	if !isArray {
		return nil, stats, errors.Wrapf(ErrMalformedEnvelope, "%s is not an array", DocumentsKey)
	}

	out := make([][]byte, len(elems))
	failures := make([]error, len(elems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.concurrency)
	for i, elem := range elems {
		if !isJSONObject(elem) {
			out[i] = elem
			continue
		}
		stats.Documents++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dec, err := t.decryptor.DecryptDocument(gctx, elem)
			if err == nil {
				out[i] = dec
				return nil
			}
			if t.cfg.handler == nil {
				return errors.Wrapf(err, "document %d", i)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			out[i] = elem
			failures[i] = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			t.cfg.metrics.decryptFailure(false)
			t.cfg.logger.Error().Err(err).Msg("Failed to decrypt page")
		}
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	for i, ferr := range failures {
		if ferr == nil {
			continue
		}
		stats.Failures++
		result := &DecryptionResult{Content: out[i], Err: ferr, Fingerprint: xxh3.Hash(out[i])}
		t.cfg.metrics.decryptFailure(true)
		t.cfg.logger.Warn().
			Err(ferr).
			Int("index", i).
			Uint64("fingerprint", result.Fingerprint).
			Msg("Document left encrypted")
		t.cfg.handler(result)
	}

	m := members[docs]
	page := make([]byte, 0, len(body))
	page = append(page, body[:m.off]...)
	page = append(page, writeArray(out)...)
	page = append(page, body[m.end:]...)
	return page, stats, nil
}
