package camthread

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// sessionResetThreshold is how long a session has to survive before its
// next failure resets the backoff to its initial interval (spec.md
// §4.7's "if the previous session lasted >= 60s, reset to 50ms").
const sessionResetThreshold = 60 * time.Second

// NewBackoff builds the exponential backoff CamThread's reconnect loop
// uses, with spec.md §4.7's exact constants. MaxElapsedTime is left at
// zero (retry forever) — CamThread itself decides when to stop trying,
// not the backoff policy.
func NewBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
