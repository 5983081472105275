package encryptedquery

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ai8future/encryptedquery/aead"
)

// testKey generates a deterministic 32-byte test key from an ID.
func testKey(id string) []byte {
	key := make([]byte, 32)
	copy(key, []byte(id))
	for i := len(id); i < 32; i++ {
		key[i] = byte(i)
	}
	return key
}

func newTestKeyStore(t testing.TB) *aead.KeyStore {
	t.Helper()
	ks, err := aead.New(
		aead.WithKey("dek1", testKey("dek1")),
		aead.WithKey("dek2", testKey("dek2")),
	)
	require.NoError(t, err)
	t.Cleanup(ks.Close)
	return ks
}

var (
	ssnSetting = PropertyEncryptionSetting{
		DataEncryptionKeyID: "dek1",
		EncryptionAlgorithm: aead.AlgorithmDeterministic,
		PropertyDataType:    DataTypeString,
	}
	balanceSetting = PropertyEncryptionSetting{
		DataEncryptionKeyID: "dek1",
		EncryptionAlgorithm: aead.AlgorithmDeterministic,
		PropertyDataType:    DataTypeLong,
	}
	activeSetting = PropertyEncryptionSetting{
		DataEncryptionKeyID: "dek2",
		EncryptionAlgorithm: aead.AlgorithmDeterministic,
		PropertyDataType:    DataTypeBoolean,
	}
	scoreSetting = PropertyEncryptionSetting{
		DataEncryptionKeyID: "dek2",
		EncryptionAlgorithm: aead.AlgorithmDeterministic,
		PropertyDataType:    DataTypeDouble,
		IsSQLCompatible:     true,
	}
	notesSetting = PropertyEncryptionSetting{
		DataEncryptionKeyID: "dek1",
		EncryptionAlgorithm: aead.AlgorithmRandomized,
		PropertyDataType:    DataTypeString,
	}
)

// testPolicy encrypts /ssn, /balance, /active, /score and /notes.
func testPolicy(t testing.TB) *ClientEncryptionPolicy {
	t.Helper()
	p, err := NewClientEncryptionPolicy(
		PathGroup{Paths: []string{"/ssn"}, Setting: ssnSetting},
		PathGroup{Paths: []string{"/balance"}, Setting: balanceSetting},
		PathGroup{Paths: []string{"/active"}, Setting: activeSetting},
		PathGroup{Paths: []string{"/score"}, Setting: scoreSetting},
		PathGroup{Paths: []string{"/notes"}, Setting: notesSetting},
	)
	require.NoError(t, err)
	return p
}

// encryptDocs encrypts plaintext documents with the test policy.
func encryptDocs(t testing.TB, ks *aead.KeyStore, docs ...string) []string {
	t.Helper()
	pe, err := NewPropertyEncryptor(testPolicy(t), ks)
	require.NoError(t, err)

	out := make([]string, len(docs))
	for i, doc := range docs {
		enc, err := pe.EncryptDocument(context.Background(), []byte(doc))
		require.NoError(t, err)
		out[i] = string(enc)
	}
	return out
}

// envelope builds a page body around docs.
func envelope(docs ...string) []byte {
	return []byte(`{"_rid":"k3NAAA==","Documents":[` + strings.Join(docs, ",") + `],"_count":` + strconv.Itoa(len(docs)) + `}`)
}

type failingEncryptor struct {
	err error
}

func (f failingEncryptor) Encrypt(context.Context, []byte, string, string) ([]byte, error) {
	return nil, f.err
}

func (f failingEncryptor) Decrypt(context.Context, []byte, string, string) ([]byte, error) {
	return nil, f.err
}

// countingEncryptor counts calls and fails the decrypt calls listed in failDecrypts
// (1-based).
type countingEncryptor struct {
	Encryptor
	failDecrypts map[int32]error

	encrypts atomic.Int32
	decrypts atomic.Int32
}

func (c *countingEncryptor) Encrypt(ctx context.Context, plaintext []byte, keyID, algorithm string) ([]byte, error) {
	c.encrypts.Add(1)
	return c.Encryptor.Encrypt(ctx, plaintext, keyID, algorithm)
}

func (c *countingEncryptor) Decrypt(ctx context.Context, ciphertext []byte, keyID, algorithm string) ([]byte, error) {
	n := c.decrypts.Add(1)
	if err, ok := c.failDecrypts[n]; ok {
		return nil, err
	}
	return c.Encryptor.Decrypt(ctx, ciphertext, keyID, algorithm)
}

type fakePage struct {
	resp *ResponseMessage
	err  error
}

type fakeIterator struct {
	pages []fakePage
	pos   int
	reads int
}

func (f *fakeIterator) HasMoreResults() bool {
	return f.pos < len(f.pages)
}

func (f *fakeIterator) ReadNext(ctx context.Context) (*ResponseMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.reads++
	p := f.pages[f.pos]
	f.pos++
	return p.resp, p.err
}

// okPages returns 200 responses whose continuation tokens are the index of
// the following page. The last page has no token.
func okPages(bodies ...[]byte) []*ResponseMessage {
	pages := make([]*ResponseMessage, len(bodies))
	for i, body := range bodies {
		h := http.Header{}
		if i < len(bodies)-1 {
			h.Set(HeaderContinuation, strconv.Itoa(i+1))
		}
		pages[i] = &ResponseMessage{StatusCode: http.StatusOK, Headers: h, Content: body}
	}
	return pages
}

func newFakeIterator(pages ...*ResponseMessage) *fakeIterator {
	it := &fakeIterator{}
	for _, p := range pages {
		it.pages = append(it.pages, fakePage{resp: p})
	}
	return it
}

// fakeFactory opens iterators over pages, resuming at the page index named by
// the continuation token.
type fakeFactory struct {
	pages []*ResponseMessage
	err   error

	queries   []*QueryDefinition
	tokens    []string
	options   []*QueryRequestOptions
	iterators []*fakeIterator
}

func (f *fakeFactory) QueryIterator(_ context.Context, query *QueryDefinition, continuation string, opts *QueryRequestOptions) (FeedIterator, error) {
	f.queries = append(f.queries, query)
	f.tokens = append(f.tokens, continuation)
	f.options = append(f.options, opts)
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if continuation != "" {
		n, err := strconv.Atoi(continuation)
		if err != nil {
			return nil, err
		}
		start = n
	}
	it := newFakeIterator(f.pages[start:]...)
	f.iterators = append(f.iterators, it)
	return it, nil
}
