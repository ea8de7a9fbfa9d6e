package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/cache"
	"github.com/aukilabs/kenaz/drbg"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/stimulus"
	"github.com/aukilabs/kenaz/verify"
	"github.com/go-chi/chi/v5"
	"github.com/segmentio/encoding/json"
)

// ErrTypeBadRequest marks requests with malformed parameters or
// bodies.
const ErrTypeBadRequest = "http_bad_request"

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// RespondJSON writes v as a JSON response.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// RespondError maps the error's type onto an HTTP status and writes it
// as a JSON body. Unrecognized errors become a 500 and are logged.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch errors.Type(err) {
	case ErrTypeBadRequest,
		drbg.ErrTypeInvalidRange,
		stimulus.ErrTypeBadConfiguration,
		models.ErrTypeUserBadName,
		verify.ErrTypeInvalidImage:
		status = http.StatusBadRequest

	case models.ErrTypeUserAuthFailed,
		models.ErrTypeSessionInvalid:
		status = http.StatusUnauthorized

	case models.ErrTypeUserNotFound,
		cache.ErrTypeUnknownSeed:
		status = http.StatusNotFound

	case models.ErrTypeUserExists,
		models.ErrTypeSessionBusy:
		status = http.StatusConflict

	case stimulus.ErrTypePlacementExhausted:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logs.Warn(err)
	}

	RespondJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

func badRequest(msg string) error {
	return errors.New(msg).WithType(ErrTypeBadRequest)
}

// IntParam parses a chi URL parameter as a decimal integer.
func IntParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Newf("parameter %s is not an integer", name).
			WithType(ErrTypeBadRequest).
			WithTag(name, raw)
	}
	return v, nil
}

// DecodeBody decodes the request body into v.
func DecodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("decoding request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

// HandleWithCORS lets the capture page call the API from another
// origin. Stimulus parameters are public, so the policy is permissive.
func HandleWithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User, X-Session-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
