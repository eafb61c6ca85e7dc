package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/errors"
)

const checkoutPlan = `
feature: checkout-flow
items:
  - id: w1
  - id: w2
    depends_on: [w1]
    gate: architecture
    command: make build
  - id: w3
    depends_on: [w1]
    metadata:
      owner: alice
  - id: w4
    depends_on: [w3, w2]
    gate: UAT
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(checkoutPlan))
	require.NoError(t, err)

	assert.Equal(t, "checkout-flow", p.Feature)
	assert.Equal(t, []string{"w1", "w2", "w3", "w4"}, p.IDs())

	deps, err := p.Dependencies("w4")
	require.NoError(t, err)
	assert.Equal(t, []string{"w3", "w2"}, deps)

	gate, ok := p.RequiredGate("w2")
	require.True(t, ok)
	assert.Equal(t, domain.GateArchitecture, gate)

	_, ok = p.RequiredGate("w1")
	assert.False(t, ok)

	assert.Equal(t, "make build", p.Command("w2"))
	assert.Empty(t, p.Command("w1"))

	item, ok := p.Item("w3")
	require.True(t, ok)
	assert.Equal(t, "alice", item.Metadata["owner"])
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no feature", "items:\n  - id: a\n"},
		{"bad feature", "feature: ../x\nitems:\n  - id: a\n"},
		{"no items", "feature: f\n"},
		{"duplicate", "feature: f\nitems:\n  - id: a\n  - id: a\n"},
		{"unknown dependency", "feature: f\nitems:\n  - id: a\n    depends_on: [b]\n"},
		{"self dependency", "feature: f\nitems:\n  - id: a\n    depends_on: [a]\n"},
		{"bad gate", "feature: f\nitems:\n  - id: a\n    gate: QA\n"},
		{"unknown field", "feature: f\nitems:\n  - id: a\n    priority: P0\n"},
		{"not yaml", "feature: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodePlanInvalid))
		})
	}
}

func TestCyclesAreLeftToTheGraph(t *testing.T) {
	_, err := Parse([]byte("feature: f\nitems:\n  - id: a\n    depends_on: [b]\n  - id: b\n    depends_on: [a]\n"))
	assert.NoError(t, err)
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(checkoutPlan), 0600))

	p, err := Load(path)
	require.NoError(t, err)

	out := filepath.Join(dir, "copy.yaml")
	require.NoError(t, Save(p, out))

	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePlanNotFound))
}

func TestFingerprint(t *testing.T) {
	p, err := Parse([]byte(checkoutPlan))
	require.NoError(t, err)

	base, err := Fingerprint(p)
	require.NoError(t, err)
	assert.Len(t, base, 64)

	reordered, err := Parse([]byte(`
feature: checkout-flow
items:
  - id: w4
    depends_on: [w2, w3]
    gate: uat
  - id: w3
    depends_on: [w1]
  - id: w2
    depends_on: [w1]
    gate: ARCHITECTURE
    command: make build
  - id: w1
`))
	require.NoError(t, err)
	same, err := Fingerprint(reordered)
	require.NoError(t, err)
	assert.Equal(t, base, same, "order, gate spelling and metadata do not affect the fingerprint")

	reordered.Items[0].DependsOn = []string{"w2"}
	changed, err := Fingerprint(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}
