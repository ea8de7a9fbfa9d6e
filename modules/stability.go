package modules

import (
	"net/http"

	"github.com/aukilabs/kenaz/featureflag"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/models"
)

// StabilityResult is the outcome of folding a verified capture into
// the user's history.
type StabilityResult struct {
	Recorded bool   `json:"recorded"`
	Match    bool   `json:"match"`
	Baseline string `json:"baseline,omitempty"`
}

// RecordStability appends the combined hash to the identified user's
// history for the surface. Requests without a user header, and
// deployments with history disabled, verify without recording.
func RecordStability(users *models.UserStore, flags featureflag.FeatureFlag, r *http.Request, surface, hash string) (StabilityResult, error) {
	user := r.Header.Get(kenazhttp.HeaderUser)
	if user == "" || flags.IsSet(featureflag.FlagDisableStabilityHistory) {
		return StabilityResult{}, nil
	}

	match, baseline, err := users.RecordStability(user, surface, hash, r.URL.Query().Get("baseline"))
	if err != nil {
		return StabilityResult{}, err
	}

	return StabilityResult{
		Recorded: true,
		Match:    match,
		Baseline: baseline,
	}, nil
}
