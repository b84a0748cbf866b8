package execution

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/remote"
)

// Runner runs shell commands on the local machine.
type Runner interface {
	// Run executes cmd through the shell in dir (the working directory
	// when empty) and returns trimmed stdout.
	Run(ctx context.Context, dir, cmd string) (string, error)
}

// LocalRunner runs commands with /bin/sh.
type LocalRunner struct {
	// Env is appended to the inherited environment.
	Env []string

	logger zerolog.Logger
}

// NewLocalRunner returns a runner using the process environment.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{logger: logging.GetLogger("execution.local")}
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, dir, cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", errors.New(errors.ErrInvalidInput, "empty command")
	}
	logging.LogCommand(r.logger, "", cmd)

	c := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	c.Dir = dir
	c.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}

	res := &remote.Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitStatus: -1}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitStatus = exitErr.ExitCode()
	}
	logging.LogCommandFailure(r.logger, "", cmd, res.ExitStatus, strings.TrimSpace(res.Stdout), strings.TrimSpace(res.Stderr))

	cmdErr := remote.NewCommandError("", cmd, res)
	if res.ExitStatus == -1 {
		return "", errors.Wrapf(err, errors.ErrCommand, "unable to execute local command %q", cmd).
			WithDetails(errors.GetErrorDetails(cmdErr))
	}
	return "", cmdErr
}
