// Package plan loads the work-item descriptor of a feature run.
//
// A plan names a feature and the work items that implement it. Each item may
// depend on others, may require an approval gate before it starts, and may
// carry its own command for the runner.
package plan

import (
	"github.com/felixgeelhaar/orchestra/internal/domain"
)

// Plan describes one feature as a set of dependent work items
type Plan struct {
	Feature string `yaml:"feature" json:"feature"`
	Items   []Item `yaml:"items" json:"items"`
}

// Item represents a single unit of work in the plan
type Item struct {
	ID        string            `yaml:"id" json:"id"`
	DependsOn []string          `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Gate      string            `yaml:"gate,omitempty" json:"gate,omitempty"`
	Command   string            `yaml:"command,omitempty" json:"command,omitempty"`
	Metadata  map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// IDs returns item IDs in declaration order
func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Items))
	for i, item := range p.Items {
		ids[i] = item.ID
	}
	return ids
}

// Item returns the item with the given ID
func (p *Plan) Item(id string) (Item, bool) {
	for _, item := range p.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Dependencies returns the declared dependencies of id. It satisfies
// graph.DependencyLookup.
func (p *Plan) Dependencies(id string) ([]string, error) {
	item, ok := p.Item(id)
	if !ok {
		return nil, nil
	}
	return item.DependsOn, nil
}

// RequiredGate returns the gate an item waits on before it may start.
func (p *Plan) RequiredGate(id string) (domain.GateType, bool) {
	item, ok := p.Item(id)
	if !ok || item.Gate == "" {
		return 0, false
	}
	t, err := domain.ParseGateType(item.Gate)
	if err != nil {
		return 0, false
	}
	return t, true
}

// Command returns the item's own command, or "" when the runner default
// applies.
func (p *Plan) Command(id string) string {
	item, _ := p.Item(id)
	return item.Command
}
