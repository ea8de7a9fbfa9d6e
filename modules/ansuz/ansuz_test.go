package ansuz

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/kenaz/cache"
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
		Regions: cache.NewMemoryStore(),
		Users:   &models.UserStore{DataDir: t.TempDir()},
		Flags:   featureflag.New(nil),
		Guard:   modules.AllowAll,
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

// capturePNG paints dark text-like marks on a white background, the
// shape canvas captures arrive in.
func capturePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	m := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := 70; y < 80 && y < height; y++ {
		for x := 10; x < 40; x++ {
			m.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func TestGetStringConfig(t *testing.T) {
	t.Run("returns the requested lines with their row regions", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/4/1400/900", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res stringConfigResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, stimulus.TextFont, res.Font)
		require.Len(t, res.Lines, 4)
		require.Len(t, res.Boxes, 4)

		for i, line := range res.Lines {
			require.NotEmpty(t, line.Text)
			require.GreaterOrEqual(t, line.X, 2)

			box := res.Boxes[i]
			require.Equal(t, float64(line.Y-stimulus.TextTopPadding), box.Y0)
			require.Equal(t, float64(line.Y+stimulus.TextFontSize+stimulus.TextBottomPadding), box.Y1)
			require.Equal(t, 1400.0, box.X1)
		}
	})

	t.Run("the same seed yields the same lines", func(t *testing.T) {
		_, r := newTestModule(t)

		a := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/3/1400/900", nil))
		b := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/3/1400/900", nil))
		require.Equal(t, a.Body.String(), b.Body.String())
	})

	t.Run("a canvas too narrow for a line is a bad request", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/3/640/900", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("a canvas too short for the lines is a bad request", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/8/1400/400", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("count must be positive", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/0/1400/900", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpload(t *testing.T) {
	t.Run("verifies rows against the recorded regions", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodGet, "/canvas/get_string_config/seed-a/3/1400/900", nil))
		require.Equal(t, http.StatusOK, w.Code)

		body := capturePNG(t, 1400, 900)
		w = do(t, r, httptest.NewRequest(http.MethodPost, "/canvas/upload_img/seed-a", bytes.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code)

		var res uploadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.True(t, res.Verified)
		require.Equal(t, 3, res.Segments)
		require.NotEmpty(t, res.Hash)
	})

	t.Run("an unknown seed is not found", func(t *testing.T) {
		_, r := newTestModule(t)

		w := do(t, r, httptest.NewRequest(http.MethodPost, "/canvas/upload_img/nobody", bytes.NewReader(capturePNG(t, 8, 8))))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
