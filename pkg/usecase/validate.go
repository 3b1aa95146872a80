package usecase

import (
	"context"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

// ValidationIssue represents a single problem found in a user record
type ValidationIssue struct {
	Key      string
	Message  string
	Expected string
	Actual   string
}

// ValidationResult holds the results of DB validation
type ValidationResult struct {
	Checked int
	Issues  []ValidationIssue
}

// HasIssues returns true if there are any validation issues
func (r *ValidationResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// AddIssue adds a validation issue to the result
func (r *ValidationResult) AddIssue(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

// ValidateTemplates renders every option and a full Home tab with the configured templates
func (uc *UseCases) ValidateTemplates() error {
	options := uc.table.Options()
	for _, opt := range options {
		if _, err := uc.renderer.RenderOption(opt); err != nil {
			return goerr.Wrap(err, "option template does not render", goerr.V("seconds", opt.Seconds))
		}
	}

	current := 0
	if len(options) > 0 {
		current = options[0].Seconds
	}
	if _, err := uc.renderer.RenderHomeTab("U00000000", current); err != nil {
		return goerr.Wrap(err, "home tab template does not render")
	}
	return nil
}

// ValidateDB checks stored users against the frequency table and the scheduling rules.
// It does NOT modify any data.
func (uc *UseCases) ValidateDB(ctx context.Context, now time.Time) (*ValidationResult, error) {
	users, err := uc.repo.User().ListAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to list users", goerr.V("cause", err.Error()))
	}

	result := &ValidationResult{Checked: len(users)}
	for _, user := range users {
		key := user.Key().String()

		if !uc.table.Contains(user.UpdateFrequencySeconds) {
			result.AddIssue(ValidationIssue{
				Key:      key,
				Message:  "frequency is not a selectable option",
				Expected: "one of the Home tab options",
				Actual:   strconv.Itoa(user.UpdateFrequencySeconds),
			})
		}

		if !user.AccessToken.IsUserToken() {
			result.AddIssue(ValidationIssue{
				Key:      key,
				Message:  "stored token cannot change the profile photo",
				Expected: "user token",
				Actual:   "other token class",
			})
		}

		if !user.Valid {
			result.AddIssue(ValidationIssue{
				Key:      key,
				Message:  "user is in the error state",
				Expected: "valid",
				Actual:   "invalid",
			})
			continue
		}

		if user.WindowPassed(now) {
			_, end, _ := user.NextWindow()
			result.AddIssue(ValidationIssue{
				Key:      key,
				Message:  "update window passed, the user is not rotated again until reset",
				Expected: "window ends after " + now.UTC().Format(time.RFC3339),
				Actual:   end.UTC().Format(time.RFC3339),
			})
		}
	}

	return result, nil
}
