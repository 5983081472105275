package aead

// Ciphertext format:
// [flag:1][algorithm:1][keyIDLen:1][keyID:n][nonce:24][secretbox(innerKeyID + plaintext)]
//
// Flag byte values:
//   0x00 = no compression
//   0x01 = zstd compressed
//
// Algorithm byte values:
//   0x01 = randomized
//   0x02 = deterministic
//
// Inner plaintext format (before compression and encryption):
// [algorithm:1][keyIDLen:1][keyID:n][actualPlaintext]
//
// The inner algorithm and key_id are authenticated by secretbox.

const (
	flagNoCompression byte = 0x00
	flagZstd          byte = 0x01

	algRandomized    byte = 0x01
	algDeterministic byte = 0x02

	nonceSize = 24
)

// formatCiphertext assembles the outer ciphertext format.
func formatCiphertext(flag, alg byte, keyID string, nonce [nonceSize]byte, ciphertext []byte) []byte {
	totalSize := 1 + 1 + 1 + len(keyID) + nonceSize + len(ciphertext)
	result := make([]byte, 0, totalSize)

	result = append(result, flag, alg, byte(len(keyID)))
	result = append(result, keyID...)
	result = append(result, nonce[:]...)
	result = append(result, ciphertext...)

	return result
}

// parseFormat parses the outer ciphertext format.
func parseFormat(data []byte) (flag, alg byte, keyID string, nonce [nonceSize]byte, ciphertext []byte, err error) {
	// flag + alg + keyIDLen + keyID(1 min) + nonce + some ciphertext
	minSize := 1 + 1 + 1 + 1 + nonceSize + 1
	if len(data) < minSize {
		err = ErrInvalidFormat
		return
	}

	flag = data[0]
	alg = data[1]
	keyIDLen := int(data[2])
	if keyIDLen == 0 {
		err = ErrInvalidFormat
		return
	}

	headerSize := 3 + keyIDLen + nonceSize
	if len(data) < headerSize+1 {
		err = ErrInvalidFormat
		return
	}

	keyID = string(data[3 : 3+keyIDLen])
	copy(nonce[:], data[3+keyIDLen:headerSize])
	ciphertext = data[headerSize:]

	return
}

// formatInnerPlaintext prepends the algorithm and key_id to the plaintext.
// Returns: [algorithm:1][keyIDLen:1][keyID:n][plaintext]
func formatInnerPlaintext(alg byte, keyID string, plaintext []byte) []byte {
	result := make([]byte, 0, 2+len(keyID)+len(plaintext))
	result = append(result, alg, byte(len(keyID)))
	result = append(result, keyID...)
	result = append(result, plaintext...)
	return result
}

// parseInnerPlaintext extracts the algorithm, key_id and actual plaintext from the inner format.
func parseInnerPlaintext(data []byte) (alg byte, keyID string, plaintext []byte, err error) {
	if len(data) < 3 {
		err = ErrInvalidFormat
		return
	}

	alg = data[0]
	keyIDLen := int(data[1])
	if keyIDLen == 0 || len(data) < 2+keyIDLen {
		err = ErrInvalidFormat
		return
	}

	keyID = string(data[2 : 2+keyIDLen])
	plaintext = data[2+keyIDLen:]

	return
}
