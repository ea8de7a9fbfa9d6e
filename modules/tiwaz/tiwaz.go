// Package tiwaz is the WebGL2 fingerprint surface: it hands the
// browser a deterministic set of non-overlapping triangles to draw,
// records their bounding boxes under the seed, and verifies the
// uploaded capture region by region.
package tiwaz

import (
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/cache"
	"github.com/aukilabs/kenaz/featureflag"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/spatial"
	"github.com/aukilabs/kenaz/stimulus"
	"github.com/aukilabs/kenaz/verify"
	"github.com/go-chi/chi/v5"
)

type Module struct {
	Entropy []byte
	Nonces  stimulus.NonceSource
	Regions cache.Store
	Users   *models.UserStore
	Flags   featureflag.FeatureFlag
	Guard   modules.Guard
	TTL     time.Duration
}

func (m *Module) Name() string {
	return "tiwaz"
}

func (m *Module) Prefix() string {
	return "/webgl2"
}

func (m *Module) Mount(r chi.Router) {
	r.Get("/get_triangle/{seed}/{width}/{height}", m.handleGetTriangle)
	r.Get("/get_triangles/{count}/{seed}/{width}/{height}", m.handleGetTriangles)
	r.Post("/upload_img/{seed}", m.handleUpload)
}

func (m *Module) layout(seed string) *stimulus.TriangleLayout {
	fast, slow := modules.NewStreams(m.Entropy, m.Nonces, seed)
	return &stimulus.TriangleLayout{
		Position: fast,
		Shape:    slow,
	}
}

type trianglesResponse struct {
	Seed      string              `json:"seed"`
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	Triangles []stimulus.Triangle `json:"triangles"`
	Boxes     []spatial.AABB      `json:"boxes"`
}

func (m *Module) handleGetTriangle(w http.ResponseWriter, r *http.Request) {
	if err := m.Guard(r); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	seed := chi.URLParam(r, "seed")
	width, err := kenazhttp.IntParam(r, "width")
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}
	height, err := kenazhttp.IntParam(r, "height")
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	tri, box, err := m.layout(seed).Single(width, height)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	boxes := []spatial.AABB{box}
	if err := m.Regions.Put(r.Context(), seed, boxes, m.TTL); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	kenazhttp.RespondJSON(w, http.StatusOK, trianglesResponse{
		Seed:      seed,
		Width:     width,
		Height:    height,
		Triangles: []stimulus.Triangle{tri},
		Boxes:     boxes,
	})
}

func (m *Module) handleGetTriangles(w http.ResponseWriter, r *http.Request) {
	if err := m.Guard(r); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	seed := chi.URLParam(r, "seed")
	count, err := kenazhttp.IntParam(r, "count")
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}
	width, err := kenazhttp.IntParam(r, "width")
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}
	height, err := kenazhttp.IntParam(r, "height")
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	if count < 1 {
		kenazhttp.RespondError(w, errors.New("count must be positive").
			WithType(stimulus.ErrTypeBadConfiguration).
			WithTag("count", count))
		return
	}

	triangles, boxes, err := m.layout(seed).Generate(count, width, height, stimulus.DefaultTriangleSize)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	if err := m.Regions.Put(r.Context(), seed, boxes, m.TTL); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	kenazhttp.RespondJSON(w, http.StatusOK, trianglesResponse{
		Seed:      seed,
		Width:     width,
		Height:    height,
		Triangles: triangles,
		Boxes:     boxes,
	})
}

type uploadResponse struct {
	Seed     string `json:"seed"`
	Verified bool   `json:"verified"`
	Hash     string `json:"hash,omitempty"`
	Segments int    `json:"segments,omitempty"`
	modules.StabilityResult
}

func (m *Module) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := m.Guard(r); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	seed := chi.URLParam(r, "seed")

	if m.Flags.IsSet(featureflag.FlagDisableUploadVerification) {
		kenazhttp.RespondJSON(w, http.StatusOK, uploadResponse{Seed: seed})
		return
	}

	boxes, ok, err := m.Regions.Get(r.Context(), seed)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}
	if !ok {
		kenazhttp.RespondError(w, errors.New("no regions recorded for seed").
			WithType(cache.ErrTypeUnknownSeed).
			WithTag("seed", seed))
		return
	}

	body, err := modules.ReadUpload(r, verify.ErrTypeInvalidImage)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	img, err := verify.DecodeDataURL(body)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	hashes := verify.HashRegions(img, boxes, verify.TrimAlpha)
	combined := verify.CombinedHash(hashes)

	// A seed is good for one upload. Replays need a fresh stimulus.
	if err := m.Regions.Evict(r.Context(), seed); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	result, err := modules.RecordStability(m.Users, m.Flags, r, m.Name(), combined)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	kenazhttp.RespondJSON(w, http.StatusOK, uploadResponse{
		Seed:            seed,
		Verified:        true,
		Hash:            combined,
		Segments:        len(hashes),
		StabilityResult: result,
	})
}

var _ modules.Module = (*Module)(nil)
