// Package aead is a reference crypto collaborator for encryptedquery.
//
// A KeyStore encrypts and decrypts property values with XSalsa20-Poly1305
// (NaCl secretbox). Each call names the key and algorithm to use, so one
// store serves every path of an encryption policy.
//
// # Algorithms
//
// AlgorithmRandomized draws a fresh 24-byte nonce per call. AlgorithmDeterministic
// derives the nonce from an HMAC-SHA256 of the value, so equal plaintexts under
// the same key produce equal ciphertexts. Only deterministic properties can be
// compared for equality by the database.
//
// # Keys
//
// Master keys are 32 bytes. Encryption and nonce keys are derived from each
// master key with HKDF-SHA256 and cached. Keys come either from WithKey options
// or from a KeyProvider consulted on first use of a key ID:
//
//	store, err := aead.New(
//	    aead.WithKey("dek1", masterKey),
//	)
//	ct, err := store.Encrypt(ctx, []byte("123-45-6789"), "dek1", aead.AlgorithmDeterministic)
//	pt, err := store.Decrypt(ctx, ct, "dek1", aead.AlgorithmDeterministic)
//
// # Format
//
//	[flag:1][algorithm:1][keyIDLen:1][keyID:n][nonce:24][secretbox(innerKeyID + plaintext)]
//
// Values of at least 1KB are zstd-compressed before sealing when that saves 10% or more.
package aead
