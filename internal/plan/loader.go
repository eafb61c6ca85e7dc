package plan

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/orchestra/internal/errors"
)

// Load reads and validates a Plan from a YAML file
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user supplied plan path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewPlanNotFoundError(path)
		}
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a Plan from YAML. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Wrap(errors.ErrCodePlanInvalid, "unmarshal plan", err)
	}

	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodePlanInvalid, "validate plan", err)
	}

	return &p, nil
}

// Save writes a Plan to a YAML file
func Save(p *Plan, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write plan file: %w", err)
	}

	return nil
}
