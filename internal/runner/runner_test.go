package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/orchestra/internal/log"
)

type commands map[string]string

func (c commands) Command(id string) string { return c[id] }

func TestExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{
		Command: `echo "$ORCHESTRA_FEATURE/$ORCHESTRA_ITEM" > out.txt`,
		Dir:     dir,
	}, "checkout", nil, log.Nop())

	require.NoError(t, r.Execute(context.Background(), "w1"))

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "checkout/w1\n", string(data))
}

func TestExecuteItemCommandOverridesDefault(t *testing.T) {
	r := New(Config{Command: "exit 3"}, "f", commands{"ok": "true"}, log.Nop())

	require.NoError(t, r.Execute(context.Background(), "ok"))

	err := r.Execute(context.Background(), "other")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "other", exitErr.ItemID)
}

func TestExecuteCapturesOutputTail(t *testing.T) {
	r := New(Config{Command: "echo compile error >&2; exit 1"}, "f", nil, log.Nop())

	err := r.Execute(context.Background(), "w1")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "compile error", exitErr.Output)
	assert.Contains(t, err.Error(), "exited with status 1: compile error")
}

func TestExecuteTimeout(t *testing.T) {
	r := New(Config{Command: "sleep 5", Timeout: 50 * time.Millisecond}, "f", nil, log.Nop())

	err := r.Execute(context.Background(), "slow")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.TimedOut)
	assert.Contains(t, err.Error(), "timed out")
}

func TestExecuteWithoutCommand(t *testing.T) {
	r := New(Config{}, "f", nil, log.Nop())
	err := r.Execute(context.Background(), "w1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command configured")
}

func TestExecuteEnv(t *testing.T) {
	r := New(Config{Command: `test "$STAGE" = ci`, Env: map[string]string{"STAGE": "ci"}}, "f", nil, log.Nop())
	assert.NoError(t, r.Execute(context.Background(), "w1"))
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", maxOutputTail+10)
	got := tail(long)
	assert.True(t, strings.HasPrefix(got, "…"))
	assert.Len(t, strings.TrimPrefix(got, "…"), maxOutputTail)
	assert.Equal(t, "short", tail("  short\n"))
}

func TestTailKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("é", maxOutputTail/2) + "x"
	got := tail(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", maxOutputTail/2-1)+"x", strings.TrimPrefix(got, "…"))
}
