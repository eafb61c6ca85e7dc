package tui

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/domain"
)

type call struct {
	op      string
	gate    domain.GateType
	comment string
}

type fakeDecider struct {
	calls []call
	err   error
}

func (f *fakeDecider) record(op string, t domain.GateType, status domain.GateStatus, approver, comment string) (checkpoint.GateRecord, error) {
	f.calls = append(f.calls, call{op: op, gate: t, comment: comment})
	if f.err != nil {
		return checkpoint.GateRecord{}, f.err
	}
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return checkpoint.GateRecord{Type: t, Status: status, Approver: approver, Comment: comment, DecidedAt: &at}, nil
}

func (f *fakeDecider) Approve(_ context.Context, _ string, t domain.GateType, approver, comment string) (checkpoint.GateRecord, error) {
	return f.record("approve", t, domain.GateApproved, approver, comment)
}

func (f *fakeDecider) Reject(_ context.Context, _ string, t domain.GateType, approver, comment string) (checkpoint.GateRecord, error) {
	return f.record("reject", t, domain.GateRejected, approver, comment)
}

func (f *fakeDecider) Skip(_ context.Context, _ string, t domain.GateType, reason string) (checkpoint.GateRecord, error) {
	return f.record("skip", t, domain.GateSkipped, "", reason)
}

func pendingGates() []checkpoint.GateRecord {
	var gates []checkpoint.GateRecord
	for _, t := range domain.AllGateTypes() {
		gates = append(gates, checkpoint.GateRecord{Type: t, Status: domain.GatePending})
	}
	return gates
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends msg and executes any returned decision command synchronously.
func press(t *testing.T, m gateReviewModel, msg tea.Msg) gateReviewModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(gateReviewModel)
	if cmd != nil {
		if out, ok := cmd().(decisionMsg); ok {
			next, _ = m.Update(out)
			m = next.(gateReviewModel)
		}
	}
	return m
}

func newTestModel(d Decider) gateReviewModel {
	return newGateReviewModel(context.Background(), "F1", "alice", pendingGates(),
		map[domain.GateType][]string{domain.GateUAT: {"w4"}}, d)
}

func TestGateReviewNavigation(t *testing.T) {
	m := newTestModel(&fakeDecider{})
	assert.Nil(t, m.Init())

	m = press(t, m, runes("k"))
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, runes("j"))
	m = press(t, m, runes("j"))
	m = press(t, m, runes("j"))
	assert.Equal(t, 2, m.cursor, "cursor stops at last gate")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)
}

func TestGateReviewApprove(t *testing.T) {
	d := &fakeDecider{}
	m := newTestModel(d)

	m = press(t, m, runes("j"))
	m = press(t, m, runes("a"))

	require.Len(t, d.calls, 1)
	assert.Equal(t, call{op: "approve", gate: domain.GateArchitecture}, d.calls[0])
	assert.Equal(t, domain.GateApproved, m.gates[1].Status)
	assert.Equal(t, "alice", m.gates[1].Approver)
	assert.Equal(t, 1, m.decisions)
	assert.False(t, m.busy)
}

func TestGateReviewRejectWithComment(t *testing.T) {
	d := &fakeDecider{}
	m := newTestModel(d)

	m = press(t, m, runes("r"))
	assert.Equal(t, inputReject, m.mode)

	m = press(t, m, runes("no"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = press(t, m, runes("ADRx"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Contains(t, m.View(), "Rejection comment:")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, d.calls, 1)
	assert.Equal(t, call{op: "reject", gate: domain.GateRequirements, comment: "no ADR"}, d.calls[0])
	assert.Equal(t, inputNone, m.mode)
	assert.Equal(t, domain.GateRejected, m.gates[0].Status)
}

func TestGateReviewSkipCancelled(t *testing.T) {
	d := &fakeDecider{}
	m := newTestModel(d)

	m = press(t, m, runes("s"))
	m = press(t, m, runes("hotfix"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Empty(t, d.calls)
	assert.Equal(t, inputNone, m.mode)
	assert.Empty(t, m.input)
}

func TestGateReviewShowsDecisionErrors(t *testing.T) {
	d := &fakeDecider{err: stderrors.New("store unavailable")}
	m := newTestModel(d)

	m = press(t, m, runes("a"))
	assert.Equal(t, "store unavailable", m.lastErr)
	assert.Equal(t, 0, m.decisions)
	assert.Equal(t, domain.GatePending, m.gates[0].Status)
	assert.Contains(t, m.View(), "store unavailable")
}

func TestGateReviewIgnoresDecisionsWhileBusy(t *testing.T) {
	m := newTestModel(&fakeDecider{})
	next, cmd := m.Update(runes("a"))
	require.NotNil(t, cmd)
	m = next.(gateReviewModel)
	assert.True(t, m.busy)

	_, cmd = m.Update(runes("a"))
	assert.Nil(t, cmd)
}

func TestGateReviewView(t *testing.T) {
	m := newTestModel(&fakeDecider{})
	m = press(t, m, runes("j"))
	m = press(t, m, runes("j"))

	view := m.View()
	assert.Contains(t, view, "Feature: F1")
	assert.Contains(t, view, "REQUIREMENTS")
	assert.Contains(t, view, "PENDING")
	assert.Contains(t, view, "w4", "waiting items shown for selected gate")

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	m = next.(gateReviewModel)
	assert.Contains(t, m.View(), "0 decision(s) recorded for F1")
}

func TestRunGateReviewWithoutGates(t *testing.T) {
	res, err := RunGateReview(context.Background(), "F1", nil, &fakeDecider{}, ReviewOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Decisions)
}

func TestStyles(t *testing.T) {
	s := DefaultStyles()
	assert.Equal(t, s.Success, s.GateStatusStyle(domain.GateApproved))
	assert.Equal(t, s.Error, s.GateStatusStyle(domain.GateRejected))
	assert.Equal(t, s.Warning, s.GateStatusStyle(domain.GatePending))
	assert.Equal(t, s.Warning, s.StateStyle("BLOCKED"))
	assert.Equal(t, s.Success, s.StateStyle("COMPLETED"))
}
