package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/models"
)

type sessionBusyResponse struct {
	Error  string             `json:"error"`
	Type   string             `json:"type"`
	Holder models.SessionInfo `json:"holder"`
}

// HandleAcquireSession hands the exclusive test session to the
// basic-auth user. When another user holds it, the response is a 409
// carrying the holder's info so the client can show who is running and
// when the session times out.
func HandleAcquireSession(users *models.UserStore, sessions *models.SessionStore) http.HandlerFunc {
	return RequireLogin(users, func(w http.ResponseWriter, r *http.Request) {
		name, _, _ := r.BasicAuth()

		info, err := sessions.Acquire(name)
		if err != nil {
			if errors.IsType(err, models.ErrTypeSessionBusy) {
				holder, _ := sessions.Holder()
				RespondJSON(w, http.StatusConflict, sessionBusyResponse{
					Error:  err.Error(),
					Type:   models.ErrTypeSessionBusy,
					Holder: holder,
				})
				return
			}
			RespondError(w, err)
			return
		}

		RespondJSON(w, http.StatusOK, info)
	})
}

// HandleSessionHeartbeat extends the holder's lease.
func HandleSessionHeartbeat(sessions *models.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(HeaderUser)
		token := r.Header.Get(HeaderSessionToken)

		if err := sessions.Heartbeat(owner, token); err != nil {
			RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleReleaseSession gives the session up.
func HandleReleaseSession(sessions *models.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(HeaderUser)
		token := r.Header.Get(HeaderSessionToken)

		if err := sessions.Release(owner, token); err != nil {
			RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionGuard authorizes stimulus and upload requests: the caller
// must hold the exclusive session, identified by the X-User and
// X-Session-Token headers. The exclusivity feature flag turns the
// guard into a no-op for load testing.
func SessionGuard(sessions *models.SessionStore, flags featureflag.FeatureFlag) func(r *http.Request) error {
	return func(r *http.Request) error {
		if flags.IsSet(featureflag.FlagDisableSessionExclusivity) {
			return nil
		}
		return sessions.ValidateOwner(
			r.Header.Get(HeaderUser),
			r.Header.Get(HeaderSessionToken),
		)
	}
}
