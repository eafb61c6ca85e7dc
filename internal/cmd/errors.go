package cmd

import (
	"fmt"

	"github.com/felixgeelhaar/orchestra/internal/errors"
)

// checkpointNotFound is returned when a command names a feature without a
// checkpoint.
func checkpointNotFound(featureID string) error {
	return errors.New(errors.ErrCodeGateNoRun, fmt.Sprintf("no checkpoint for feature %q", featureID)).
		WithSuggestion("List available checkpoints: orchestra checkpoint list").
		WithSuggestion("Start a run first: orchestra run --plan <file>")
}

// planForFeature reports a plan file that belongs to a different feature
func planForFeature(path, want, got string) error {
	return errors.New(errors.ErrCodePlanInvalid, fmt.Sprintf("plan %s is for feature %q, not %q", path, got, want)).
		WithSuggestion("Pass the plan file of the feature with --plan")
}
