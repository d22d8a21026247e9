package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Runner executes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args, env []string) ([]byte, error)
}

// ErrProcessTimedOut is returned by ExecRunner when the deadline killed the process.
var ErrProcessTimedOut = errors.New("process killed after deadline")

type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the kill.
	WaitDelay time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 5 * time.Second}
}

// Run starts name with the given args. env is appended to the current process
// environment, which keeps credentials off the command line.
func (r *ExecRunner) Run(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = r.WaitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out.Bytes(), fmt.Errorf("%s: %w", name, ErrProcessTimedOut)
	}
	if err != nil {
		return out.Bytes(), fmt.Errorf("%s failed: %w", name, err)
	}
	return out.Bytes(), nil
}
