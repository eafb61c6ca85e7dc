// Package runner executes work items as shell commands.
package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/orchestra/internal/log"
)

// DefaultShell is used when Config.Shell is empty
const DefaultShell = "/bin/sh"

// maxOutputTail bounds the output kept as a failure diagnostic
const maxOutputTail = 2048

// Config controls how commands are run
type Config struct {
	// Shell runs each command as `<shell> -c <command>`.
	Shell string
	// Timeout bounds a single item. Zero means no limit.
	Timeout time.Duration
	// Command is used for items that do not set their own.
	Command string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the process environment.
	Env map[string]string
}

// CommandSource supplies per-item commands. plan.Plan implements it.
type CommandSource interface {
	Command(itemID string) string
}

// ExitError reports a command that ran and failed
type ExitError struct {
	ItemID   string
	ExitCode int
	Output   string
	TimedOut bool
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("item %s exited with status %d", e.ItemID, e.ExitCode)
	if e.TimedOut {
		msg = fmt.Sprintf("item %s timed out", e.ItemID)
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Runner runs work items of one feature
type Runner struct {
	cfg       Config
	featureID string
	commands  CommandSource
	logger    *log.Logger
}

// New creates a runner for featureID. commands may be nil, in which case
// every item runs cfg.Command.
func New(cfg Config, featureID string, commands CommandSource, logger *log.Logger) *Runner {
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	return &Runner{
		cfg:       cfg,
		featureID: featureID,
		commands:  commands,
		logger:    log.OrDefault(logger).With("component", "runner", "feature", featureID),
	}
}

func (r *Runner) commandFor(itemID string) string {
	if r.commands != nil {
		if c := strings.TrimSpace(r.commands.Command(itemID)); c != "" {
			return c
		}
	}
	return strings.TrimSpace(r.cfg.Command)
}

// Execute runs the item's command and returns nil on exit status zero.
func (r *Runner) Execute(ctx context.Context, itemID string) error {
	command := r.commandFor(itemID)
	if command == "" {
		return fmt.Errorf("no command configured for item %s", itemID)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	// #nosec G204 -- commands come from the operator's plan and config
	cmd := exec.CommandContext(ctx, r.cfg.Shell, "-c", command)
	cmd.Dir = r.cfg.Dir
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(),
		"ORCHESTRA_ITEM="+itemID,
		"ORCHESTRA_FEATURE="+r.featureID,
	)
	for k, v := range r.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	r.logger.Debug("running item", "item", itemID, "command", command)
	err := cmd.Run()
	duration := time.Since(start)

	if err == nil {
		r.logger.Debug("item succeeded", "item", itemID, "duration", duration)
		return nil
	}

	exitErr := &ExitError{ItemID: itemID, ExitCode: -1, Output: tail(out.String())}
	var ee *exec.ExitError
	if stderrors.As(err, &ee) {
		exitErr.ExitCode = ee.ExitCode()
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		exitErr.TimedOut = true
	}
	if exitErr.ExitCode == -1 && !exitErr.TimedOut {
		return fmt.Errorf("start item %s: %w", itemID, err)
	}

	r.logger.Debug("item failed", "item", itemID, "exit_code", exitErr.ExitCode, "duration", duration)
	return exitErr
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxOutputTail {
		return s
	}
	cut := len(s) - maxOutputTail
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "…" + s[cut:]
}
