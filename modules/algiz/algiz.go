// Package algiz is the audio fingerprint surface: it hands the browser
// a deterministic tone plan to synthesize through the Web Audio API.
// The client hashes the rendered samples itself and reports the digest
// through the stability endpoint, so this module has no upload route.
package algiz

import (
	"net/http"

	"github.com/aukilabs/kenaz/featureflag"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/stimulus"
	"github.com/go-chi/chi/v5"
)

type Module struct {
	Entropy []byte
	Nonces  stimulus.NonceSource
	Users   *models.UserStore
	Flags   featureflag.FeatureFlag
	Guard   modules.Guard
}

func (m *Module) Name() string {
	return "algiz"
}

func (m *Module) Prefix() string {
	return "/audio"
}

func (m *Module) Mount(r chi.Router) {
	r.Get("/get_snippets_config/{seed}/{duration}/{sample_rate}/{count}/{min_length}/{max_length}/{min_freq}/{max_freq}", m.handleGetSnippetsConfig)
}

func (m *Module) layout(seed string) *stimulus.ToneLayout {
	fast, slow := modules.NewStreams(m.Entropy, m.Nonces, seed)
	return &stimulus.ToneLayout{
		Gap:       fast,
		Frequency: slow,
	}
}

type snippetsResponse struct {
	Seed string `json:"seed"`
	stimulus.TonePlan
}

func (m *Module) handleGetSnippetsConfig(w http.ResponseWriter, r *http.Request) {
	if err := m.Guard(r); err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	seed := chi.URLParam(r, "seed")

	names := []string{"duration", "sample_rate", "count", "min_length", "max_length", "min_freq", "max_freq"}
	values := make(map[string]int, len(names))
	for _, name := range names {
		v, err := kenazhttp.IntParam(r, name)
		if err != nil {
			kenazhttp.RespondError(w, err)
			return
		}
		values[name] = v
	}

	plan, err := m.layout(seed).Generate(stimulus.ToneConfig{
		Duration:     values["duration"],
		SampleRate:   values["sample_rate"],
		Count:        values["count"],
		MinLength:    values["min_length"],
		MaxLength:    values["max_length"],
		MinFrequency: values["min_freq"],
		MaxFrequency: values["max_freq"],
	})
	if err != nil {
		kenazhttp.RespondError(w, err)
		return
	}

	kenazhttp.RespondJSON(w, http.StatusOK, snippetsResponse{
		Seed:     seed,
		TonePlan: plan,
	})
}

var _ modules.Module = (*Module)(nil)
