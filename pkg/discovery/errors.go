package discovery

import "errors"

var (
	// ErrServiceNotFound is returned when the underlying resolver finishes
	// without delivering a matching advertisement.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrTimeout is returned when a lookup's deadline passes before any
	// advertisement arrives.
	ErrTimeout = errors.New("discovery: operation timed out")

	// ErrNoAddresses is returned when a matching advertisement carries no
	// resolvable IP address.
	ErrNoAddresses = errors.New("discovery: resolved entry has no addresses")
)
