package videos

import (
	"errors"
	"sync/atomic"
)

// ErrQuotaExhausted signals that the primary search provider refused the call
// because its daily quota is spent or its configuration is missing.
var ErrQuotaExhausted = errors.New("video search quota exhausted")

// Breaker records that the primary search tier is unavailable so later
// sessions skip it instead of paying the failure cost again. One Breaker is
// shared by all finders created for a process; tests construct their own.
type Breaker struct {
	tripped atomic.Bool
}

// NewBreaker returns an untripped breaker.
func NewBreaker() *Breaker {
	return &Breaker{}
}

// Trip marks the primary tier unavailable.
func (b *Breaker) Trip() {
	b.tripped.Store(true)
}

// Tripped reports whether the primary tier should be skipped.
func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}

// Reset clears the breaker.
func (b *Breaker) Reset() {
	b.tripped.Store(false)
}
