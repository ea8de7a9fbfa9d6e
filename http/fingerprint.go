package http

import (
	"net/http"

	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/models"
)

// HandleStoreFingerprint records the fingerprint payload the client
// collected from its own browser APIs. The caller must hold the test
// session.
func HandleStoreFingerprint(users *models.UserStore, guard func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := guard(r); err != nil {
			RespondError(w, err)
			return
		}

		var fingerprint map[string]any
		if err := DecodeBody(r, &fingerprint); err != nil {
			RespondError(w, err)
			return
		}

		if err := users.StoreFingerprint(r.Header.Get(HeaderUser), fingerprint); err != nil {
			RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type stabilityRequest struct {
	Surface  string `json:"surface"`
	Hash     string `json:"hash"`
	Baseline string `json:"baseline,omitempty"`
}

type stabilityResponse struct {
	Recorded bool   `json:"recorded"`
	Match    bool   `json:"match"`
	Baseline string `json:"baseline,omitempty"`
}

// HandleRecordStability appends a run to the user's stability history
// for one fingerprint surface and reports whether it matched the
// baseline.
func HandleRecordStability(users *models.UserStore, flags featureflag.FeatureFlag, guard func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := guard(r); err != nil {
			RespondError(w, err)
			return
		}

		var req stabilityRequest
		if err := DecodeBody(r, &req); err != nil {
			RespondError(w, err)
			return
		}
		if req.Surface == "" || req.Hash == "" {
			RespondError(w, badRequest("surface and hash are required"))
			return
		}

		if flags.IsSet(featureflag.FlagDisableStabilityHistory) {
			RespondJSON(w, http.StatusOK, stabilityResponse{Recorded: false})
			return
		}

		match, baseline, err := users.RecordStability(
			r.Header.Get(HeaderUser),
			req.Surface,
			req.Hash,
			req.Baseline,
		)
		if err != nil {
			RespondError(w, err)
			return
		}

		RespondJSON(w, http.StatusOK, stabilityResponse{
			Recorded: true,
			Match:    match,
			Baseline: baseline,
		})
	}
}
