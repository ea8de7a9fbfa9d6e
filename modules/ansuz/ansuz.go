// Package ansuz is the canvas text fingerprint surface: the browser
// renders deterministic strings at deterministic anchors, and the
// capture is verified row by row, each row trimmed to its glyphs
// before hashing.
package ansuz

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

// maxLineAdvance is the largest y step the position stream can draw,
// used for the worst-case height check before any randomness is
// consumed.
const maxLineAdvance = 100

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
	return "ansuz"
}

func (m *Module) Prefix() string {
	return "/canvas"
}

func (m *Module) Mount(r chi.Router) {
	r.Get("/get_string_config/{seed}/{count}/{width}/{height}", m.handleGetStringConfig)
	r.Post("/upload_img/{seed}", m.handleUpload)
}

func (m *Module) layout(seed string) *stimulus.TextLayout {
	fast, slow := modules.NewStreams(m.Entropy, m.Nonces, seed)
	return &stimulus.TextLayout{
		Position: fast,
		Text:     slow,
	}
}

// rowBox is the capture region of one text line: full width, padded
// above the ascent and below the descent.
func rowBox(line stimulus.TextLine, width int) spatial.AABB {
	return spatial.AABB{
		X0: 0,
		Y0: float64(line.Y - stimulus.TextTopPadding),
		X1: float64(width),
		Y1: float64(line.Y + stimulus.TextFontSize + stimulus.TextBottomPadding),
	}
}

type stringConfigResponse struct {
	Seed   string              `json:"seed"`
	Font   string              `json:"font"`
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Lines  []stimulus.TextLine `json:"lines"`
	Boxes  []spatial.AABB      `json:"boxes"`
}

func (m *Module) handleGetStringConfig(w http.ResponseWriter, r *http.Request) {
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

	// Worst-case fit check before consuming any stream bytes, so an
	// impossible canvas never desynchronizes the generators.
	worstBottom := 25 + count*maxLineAdvance + stimulus.TextFontSize + stimulus.TextBottomPadding
	if worstBottom > height {
		kenazhttp.RespondError(w, errors.New("canvas is too short for the requested lines").
			WithType(stimulus.ErrTypeBadConfiguration).
			WithTag("count", count).
			WithTag("height", height))
		return
	}

	lines, err := m.layout(seed).Generate(count, width)
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	boxes := make([]spatial.AABB, 0, len(lines))
	for _, line := range lines {
		boxes = append(boxes, rowBox(line, width))
	}
	if err := m.Regions.Put(r.Context(), seed, boxes, m.TTL); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	kenazhttp.RespondJSON(w, http.StatusOK, stringConfigResponse{
		Seed:   seed,
		Font:   stimulus.TextFont,
		Width:  width,
		Height: height,
		Lines:  lines,
		Boxes:  boxes,
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

	// Canvas captures are opaque, so trimming falls back to the
	// near-white mask.
	hashes := verify.HashRegions(img, boxes, verify.TrimNearWhite)
	combined := verify.CombinedHash(hashes)

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
