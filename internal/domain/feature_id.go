package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// FeatureID identifies the feature a run belongs to. It is the key under which
// checkpoints and gate state are stored, so it must be safe to use as a file name.
type FeatureID string

var (
	// identifierPattern accepts letters, digits, dots, underscores and hyphens,
	// starting with a letter or digit.
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

	// maxIdentifierLength is the maximum allowed length for feature and work item IDs
	maxIdentifierLength = 100
)

// NewFeatureID creates a new FeatureID value object with validation
func NewFeatureID(value string) (FeatureID, error) {
	id := FeatureID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the feature ID is valid
func (f FeatureID) Validate() error {
	return validateIdentifier("feature ID", string(f))
}

// String returns the string representation
func (f FeatureID) String() string {
	return string(f)
}

func validateIdentifier(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}

	if len(s) > maxIdentifierLength {
		return fmt.Errorf("%s %q exceeds maximum length of %d characters", kind, s, maxIdentifierLength)
	}

	if !identifierPattern.MatchString(s) {
		return fmt.Errorf("%s %q must start with a letter or digit and contain only letters, digits, '.', '_' and '-'", kind, s)
	}

	if strings.Contains(s, "..") {
		return fmt.Errorf("%s %q cannot contain consecutive dots", kind, s)
	}

	return nil
}
