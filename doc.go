// Package encryptedquery adds client-side field-level encryption to a paged
// document database query feed.
//
// Selected top-level document properties are encrypted before they leave the
// application. The database stores and compares ciphertext only, so equality
// filters on an encrypted property work when the property uses a
// deterministic algorithm: the query's comparison values are encrypted the
// same way before the query is sent, and every page of results is decrypted
// before the caller sees it.
//
// # Policy
//
// A ClientEncryptionPolicy lists the encrypted paths and, per group of paths,
// the data encryption key, the algorithm and the declared data type:
//
//	policy, err := encryptedquery.NewClientEncryptionPolicy(encryptedquery.PathGroup{
//	    Paths: []string{"/ssn"},
//	    Setting: encryptedquery.PropertyEncryptionSetting{
//	        DataEncryptionKeyID: "dek1",
//	        EncryptionAlgorithm: aead.AlgorithmDeterministic,
//	        PropertyDataType:    encryptedquery.DataTypeString,
//	    },
//	})
//
// Policies can also be loaded from a configuration file with the policyfile
// package.
//
// # Query Rewriting
//
// A Rewriter parses the WHERE clause, finds every `property = value`
// comparison and replaces the values compared against encrypted properties
// with ciphertext parameters:
//
//	SELECT * FROM c WHERE c.ssn = "123-45-6789" AND c.age = 42
//
// becomes
//
//	SELECT * FROM c WHERE c.ssn = @ssn AND c.age = 42
//
// with @ssn bound to the ciphertext of "123-45-6789". Filters using any other
// operator are sent unchanged with outcome RewriteUnsupported, since the
// database could not evaluate them against ciphertext anyway.
//
// # Reading Pages
//
// An EncryptionFeedIterator opens the rewritten query through a
// QueryIteratorFactory and decrypts every page:
//
//	it, err := encryptedquery.NewEncryptionFeedIterator(query, policy, nil, keys, factory,
//	    encryptedquery.WithLogger(logger),
//	)
//	for it.HasMoreResults() {
//	    page, err := it.ReadNext(ctx)
//	    ...
//	}
//
// Only the envelope's Documents array is rewritten; every other envelope
// byte is returned as received. By default a document that fails to decrypt
// fails its page. With WithDecryptionResultHandler the document is kept,
// still encrypted, and reported to the handler.
//
// If a page is read but cannot be delivered, the next ReadNext reopens the
// query from the last delivered continuation token and reads it again.
//
// # Encryption
//
// The package does not encrypt anything itself. Any Encryptor can be used;
// aead.KeyStore provides XSalsa20-Poly1305 with a randomized and a
// deterministic (synthetic nonce) algorithm.
//
// # NULL Handling
//
// null is never encrypted. A null property stays null in stored documents and
// a `property = null` comparison is left in the query as written.
package encryptedquery
