package stimulus

import (
	"encoding/binary"
	"math"
	"time"
)

// NonceSource supplies the nonce material for the two generator
// streams. Fast varies per request, Slow varies on a coarse time
// boundary. The two must never return overlapping material: reusing a
// nonce across DRBG instantiations breaks the underlying contract.
//
// Nonces are an explicit input rather than an internal clock read so
// that callers who pin the source get fully reproducible output. The
// default wall-clock source trades that reproducibility for freshness
// on every request.
type NonceSource interface {
	Fast() []byte
	Slow() []byte
}

// TimeNonce derives nonces from the wall clock. A nil Now falls back to
// time.Now.
type TimeNonce struct {
	Now func() time.Time
}

func (s TimeNonce) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Fast returns the current timestamp with sub-second precision, packed
// as the little-endian bits of a float64 seconds value.
func (s TimeNonce) Fast() []byte {
	seconds := float64(s.now().UnixNano()) / float64(time.Second)

	nonce := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonce, math.Float64bits(seconds))
	return nonce
}

// Slow returns the current month bucket.
func (s TimeNonce) Slow() []byte {
	return []byte(s.now().Format("2006-01"))
}

// StaticNonce returns fixed nonce material. Used by tests and by
// callers that need reproducible stimuli for a given seed.
type StaticNonce struct {
	FastNonce []byte
	SlowNonce []byte
}

func (s StaticNonce) Fast() []byte {
	return s.FastNonce
}

func (s StaticNonce) Slow() []byte {
	return s.SlowNonce
}
