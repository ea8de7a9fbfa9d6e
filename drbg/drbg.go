// Package drbg implements an HMAC-SHA256 deterministic random bit
// generator with explicit (K, V) state, following the NIST SP 800-90A
// construction. It is the entropy core behind every stimulus the server
// hands out: the same entropy, nonce and personalization string always
// reproduce the same byte stream.
package drbg

import (
	"crypto/hmac"
	"crypto/sha256"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// outLen is the digest size of the underlying MAC.
	outLen = sha256.Size

	// DefaultReseedInterval is the number of generate calls allowed
	// before a reseed is required. Practically unreachable, but the
	// contract is enforced anyway.
	DefaultReseedInterval = uint64(1) << 48

	// ErrTypeReseedRequired is returned when the reseed counter
	// exceeded the reseed interval.
	ErrTypeReseedRequired = "drbg_reseed_required"

	// ErrTypeInvalidRange is returned when RandInt is called with an
	// empty range.
	ErrTypeInvalidRange = "drbg_invalid_range"
)

// Generator is an HMAC-DRBG instance. It is not safe for concurrent
// use; each in-flight request owns its own instances.
type Generator struct {
	k []byte
	v []byte

	reseedCounter  uint64
	reseedInterval uint64
}

// New instantiates a generator from the given entropy input, nonce and
// personalization string. Reusing a nonce across instantiations voids
// the unpredictability guarantees, so callers must derive disjoint
// nonce material per stream.
func New(entropy, nonce, personalization []byte) *Generator {
	return NewWithReseedInterval(entropy, nonce, personalization, DefaultReseedInterval)
}

// NewWithReseedInterval instantiates a generator with a custom reseed
// interval. An interval of 0 falls back to DefaultReseedInterval.
func NewWithReseedInterval(entropy, nonce, personalization []byte, reseedInterval uint64) *Generator {
	if reseedInterval == 0 {
		reseedInterval = DefaultReseedInterval
	}

	g := &Generator{
		k:              make([]byte, outLen),
		v:              make([]byte, outLen),
		reseedInterval: reseedInterval,
	}
	for i := range g.v {
		g.v[i] = 0x01
	}

	seedMaterial := make([]byte, 0, len(entropy)+len(nonce)+len(personalization))
	seedMaterial = append(seedMaterial, entropy...)
	seedMaterial = append(seedMaterial, nonce...)
	seedMaterial = append(seedMaterial, personalization...)

	g.update(seedMaterial)
	g.reseedCounter = 1
	return g
}

func (g *Generator) mac(key []byte, data ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// update is the SP 800-90A update function. The second pass with the
// 0x01 separator only happens when provided data is non-empty.
func (g *Generator) update(provided []byte) {
	g.k = g.mac(g.k, g.v, []byte{0x00}, provided)
	g.v = g.mac(g.k, g.v)

	if len(provided) == 0 {
		return
	}

	g.k = g.mac(g.k, g.v, []byte{0x01}, provided)
	g.v = g.mac(g.k, g.v)
}

// Reseed folds fresh entropy into the state and resets the reseed
// counter.
func (g *Generator) Reseed(entropy, additional []byte) {
	seedMaterial := make([]byte, 0, len(entropy)+len(additional))
	seedMaterial = append(seedMaterial, entropy...)
	seedMaterial = append(seedMaterial, additional...)

	g.update(seedMaterial)
	g.reseedCounter = 1
}

// Generate returns n pseudorandom bytes, optionally folding additional
// input into the state before and after generation. The reseed counter
// increments on every successful call; a call rejected with
// ErrTypeReseedRequired leaves the counter untouched.
func (g *Generator) Generate(n int, additional []byte) ([]byte, error) {
	if g.reseedCounter > g.reseedInterval {
		return nil, errors.New("reseed counter exceeded reseed interval").
			WithType(ErrTypeReseedRequired).
			WithTag("reseed_counter", g.reseedCounter).
			WithTag("reseed_interval", g.reseedInterval)
	}

	if len(additional) != 0 {
		g.k = g.mac(g.k, g.v, []byte{0x00}, additional)
		g.v = g.mac(g.k, g.v)
	}

	out := make([]byte, 0, ((n+outLen-1)/outLen)*outLen)
	for len(out) < n {
		g.v = g.mac(g.k, g.v)
		out = append(out, g.v...)
	}
	out = out[:n]

	if len(additional) != 0 {
		g.k = g.mac(g.k, g.v, []byte{0x00}, additional)
		g.v = g.mac(g.k, g.v)
	}

	g.reseedCounter++
	return out, nil
}

// Bytes returns n pseudorandom bytes without additional input.
func (g *Generator) Bytes(n int) ([]byte, error) {
	return g.Generate(n, nil)
}

// RandInt returns a uniform integer in [a, b] using rejection sampling.
// Truncated modulo without the rejection step would bias the output
// whenever the span does not divide the draw space, so draws above the
// acceptance limit are discarded and redrawn.
func (g *Generator) RandInt(a, b int) (int, error) {
	if a > b {
		return 0, errors.New("empty range").
			WithType(ErrTypeInvalidRange).
			WithTag("a", a).
			WithTag("b", b)
	}

	span := uint64(b-a) + 1

	// Smallest byte count k with 2^(8k) >= span.
	k := 1
	for k < 8 && uint64(1)<<(8*k) < span {
		k++
	}

	// limit = floor(2^(8k) / span) * span - 1.
	var limit uint64
	if k < 8 {
		space := uint64(1) << (8 * k)
		limit = (space/span)*span - 1
	} else if span&(span-1) == 0 {
		// span divides 2^64, every draw is acceptable.
		limit = math.MaxUint64
	} else {
		limit = (math.MaxUint64/span)*span - 1
	}

	for {
		buf, err := g.Generate(k, nil)
		if err != nil {
			return 0, err
		}

		var r uint64
		for _, c := range buf {
			r = r<<8 | uint64(c)
		}

		if r <= limit {
			return a + int(r%span), nil
		}
	}
}

// RandFloat returns a uniform float64 in [0, 1) with 53 bits of
// precision. 7 bytes are drawn and the 3 excess bits shifted away.
func (g *Generator) RandFloat() (float64, error) {
	buf, err := g.Generate(7, nil)
	if err != nil {
		return 0, err
	}

	var r uint64
	for _, c := range buf {
		r = r<<8 | uint64(c)
	}
	r >>= 3

	return float64(r) / float64(uint64(1)<<53), nil
}

// Uniform returns a uniform float64 in [a, b).
func (g *Generator) Uniform(a, b float64) (float64, error) {
	f, err := g.RandFloat()
	if err != nil {
		return 0, err
	}
	return a + (b-a)*f, nil
}
