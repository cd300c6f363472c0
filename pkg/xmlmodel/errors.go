package xmlmodel

import "errors"

// XML model package errors.
var (
	// ErrNoEncryptionRecord is returned when a login reply doesn't carry an
	// Encryption element where one was expected.
	ErrNoEncryptionRecord = errors.New("xmlmodel: reply has no Encryption record")

	// ErrEmptyDocument is returned when Unmarshal is asked to parse an
	// empty payload.
	ErrEmptyDocument = errors.New("xmlmodel: empty document")
)
