package crypto

import "errors"

// Crypto package errors.
var (
	// ErrInvalidKey is returned when an AES key is not exactly 16 bytes.
	ErrInvalidKey = errors.New("crypto: invalid key length, AES-128 requires 16 bytes")

	// ErrCipherNotReady is returned when Aes/FullAes is requested before a key
	// has been installed via InstallAESKey.
	ErrCipherNotReady = errors.New("crypto: AES cipher not installed")
)
