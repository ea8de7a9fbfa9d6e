package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/models"
)

// HeaderUser and HeaderSessionToken identify the session holder on
// stimulus and upload requests. The token is issued on acquire, so the
// pair proves a prior authenticated login without re-running bcrypt on
// every request.
const (
	HeaderUser         = "X-User"
	HeaderSessionToken = "X-Session-Token"
)

type registerRequest struct {
	Name string `json:"name"`
}

type registerResponse struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleRegister creates an account and returns the generated
// password. The password is shown once and never stored in clear.
func HandleRegister(users *models.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := DecodeBody(r, &req); err != nil {
			RespondError(w, err)
			return
		}

		password, err := users.Register(req.Name)
		if err != nil {
			RespondError(w, err)
			return
		}

		RespondJSON(w, http.StatusCreated, registerResponse{
			Name:     req.Name,
			Password: password,
		})
	}
}

type loginResponse struct {
	Name string `json:"name"`
}

// HandleLogin checks basic-auth credentials against the account store.
func HandleLogin(users *models.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, password, ok := r.BasicAuth()
		if !ok {
			RespondError(w, errors.New("missing credentials").
				WithType(models.ErrTypeUserAuthFailed))
			return
		}

		if err := users.Authenticate(name, password); err != nil {
			RespondError(w, err)
			return
		}

		RespondJSON(w, http.StatusOK, loginResponse{Name: name})
	}
}

// RequireLogin wraps a handler with a basic-auth check.
func RequireLogin(users *models.UserStore, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, password, ok := r.BasicAuth()
		if !ok {
			RespondError(w, errors.New("missing credentials").
				WithType(models.ErrTypeUserAuthFailed))
			return
		}
		if err := users.Authenticate(name, password); err != nil {
			RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	}
}
