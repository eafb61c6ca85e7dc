package plan

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// canonicalize returns a JSON form of the plan that ignores item order,
// dependency order and metadata, so only changes that alter execution move
// the fingerprint.
func canonicalize(p *Plan) ([]byte, error) {
	type canonicalItem struct {
		ID        string   `json:"id"`
		DependsOn []string `json:"depends_on"`
		Gate      string   `json:"gate"`
		Command   string   `json:"command"`
	}

	items := make([]canonicalItem, len(p.Items))
	for i, item := range p.Items {
		deps := append([]string{}, item.DependsOn...)
		sort.Strings(deps)
		gate := item.Gate
		if t, ok := p.RequiredGate(item.ID); ok {
			gate = t.String()
		}
		items[i] = canonicalItem{
			ID:        item.ID,
			DependsOn: deps,
			Gate:      gate,
			Command:   item.Command,
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})

	return json.Marshal(struct {
		Feature string          `json:"feature"`
		Items   []canonicalItem `json:"items"`
	}{p.Feature, items})
}

// Fingerprint computes the blake3 hash of the canonicalized plan
func Fingerprint(p *Plan) (string, error) {
	canonical, err := canonicalize(p)
	if err != nil {
		return "", fmt.Errorf("canonicalize plan: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash plan: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
