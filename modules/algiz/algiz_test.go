package algiz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/stimulus"
	"github.com/go-chi/chi/v5"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) (*Module, chi.Router) {
	t.Helper()

	m := &Module{
		Entropy: []byte("0123456789abcdef0123456789abcdef"),
		Nonces: stimulus.StaticNonce{
			FastNonce: []byte("fast-nonce"),
			SlowNonce: []byte("slow-nonce"),
		},
		Users: &models.UserStore{DataDir: t.TempDir()},
		Flags: featureflag.New(nil),
		Guard: modules.AllowAll,
	}

	r := chi.NewRouter()
	r.Route(m.Prefix(), m.Mount)
	return m, r
}

func do(t *testing.T, r chi.Router, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSnippetsConfig(t *testing.T) {
	t.Run("returns a tone plan within bounds", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-a/200/44100/8/50/300/220/880", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res snippetsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, 8, res.Count)
		require.Equal(t, 200, res.Duration)
		require.Equal(t, 44100, res.SampleRate)
		require.Len(t, res.Gaps, 7)
		require.Len(t, res.Frequencies, 8)

		for _, gap := range res.Gaps {
			require.GreaterOrEqual(t, gap, 50)
			require.LessOrEqual(t, gap, 300)
		}
		for _, f := range res.Frequencies {
			require.GreaterOrEqual(t, f, 220)
			require.LessOrEqual(t, f, 880)
		}
	})

	t.Run("the same seed yields the same plan", func(t *testing.T) {
		_, r := newTestModule(t)

		a := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-a/200/44100/8/50/300/220/880", nil))
		b := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-a/200/44100/8/50/300/220/880", nil))
		require.Equal(t, a.Body.String(), b.Body.String())
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		_, r := newTestModule(t)

		a := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-a/200/44100/8/50/300/220/880", nil))
		b := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-b/200/44100/8/50/300/220/880", nil))
		require.NotEqual(t, a.Body.String(), b.Body.String())
	})

	t.Run("degenerate bounds are clamped", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-a/200/44100/0/0/0/440/100", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res snippetsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, 1, res.Count)
		require.Empty(t, res.Gaps)
		require.Equal(t, []int{440}, res.Frequencies)
	})

	t.Run("a non-integer parameter is a bad request", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/audio/get_snippets_config/seed-a/200/44100/x/50/300/220/880", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
