package plan

import (
	"fmt"

	"github.com/felixgeelhaar/orchestra/internal/domain"
)

// Validate checks if the Item is valid according to domain rules
func (i *Item) Validate() error {
	if _, err := domain.NewWorkItemID(i.ID); err != nil {
		return fmt.Errorf("invalid item ID: %w", err)
	}

	for n, depID := range i.DependsOn {
		if _, err := domain.NewWorkItemID(depID); err != nil {
			return fmt.Errorf("dependency at index %d has invalid item ID: %w", n, err)
		}
		if depID == i.ID {
			return fmt.Errorf("item %q depends on itself", i.ID)
		}
	}

	if i.Gate != "" {
		if _, err := domain.ParseGateType(i.Gate); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks if the Plan is valid. Unknown dependencies and cycles are
// left to the graph, which reports the items involved.
func (p *Plan) Validate() error {
	if _, err := domain.NewFeatureID(p.Feature); err != nil {
		return fmt.Errorf("invalid feature: %w", err)
	}

	if len(p.Items) == 0 {
		return fmt.Errorf("plan must have at least one item")
	}

	ids := make(map[string]bool, len(p.Items))
	for n, item := range p.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item at index %d (%s) is invalid: %w", n, item.ID, err)
		}
		if ids[item.ID] {
			return fmt.Errorf("duplicate item ID %q at index %d", item.ID, n)
		}
		ids[item.ID] = true
	}

	return nil
}
