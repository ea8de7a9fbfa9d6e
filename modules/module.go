// Package modules hosts the fingerprint surfaces that extend the
// server: each surface owns a route prefix, generates its stimulus
// deterministically from a seed and verifies the capture the browser
// uploads.
package modules

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/drbg"
	"github.com/aukilabs/kenaz/stimulus"
	"github.com/go-chi/chi/v5"
)

// maxUploadSize bounds capture uploads. A full-screen PNG stays well
// under this.
const maxUploadSize = 16 << 20

// Module is the interface that describes a fingerprint surface.
type Module interface {
	// Returns the module name, used as the surface key in stability
	// histories.
	Name() string

	// Returns the route prefix the module is mounted under.
	Prefix() string

	// Mounts the module's routes.
	Mount(r chi.Router)
}

// Guard authorizes a stimulus or upload request before any generation
// work happens.
type Guard func(*http.Request) error

// AllowAll is the guard for deployments without session exclusivity.
func AllowAll(*http.Request) error { return nil }

// NewStreams derives the two generator streams for a seed: the fast
// nonce stream drives placement, the slow nonce stream drives content.
func NewStreams(entropy []byte, nonces stimulus.NonceSource, seed string) (fast, slow *drbg.Generator) {
	personalization := []byte(seed)
	return drbg.New(entropy, nonces.Fast(), personalization),
		drbg.New(entropy, nonces.Slow(), personalization)
}

// ReadUpload drains a capture upload body.
func ReadUpload(r *http.Request, errType string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		return nil, errors.New("reading upload body failed").
			WithType(errType).
			Wrap(err)
	}
	return body, nil
}
