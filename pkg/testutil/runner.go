package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/arthur-debert/rollout/pkg/remote"
)

// LocalCall is one command given to a FakeRunner.
type LocalCall struct {
	Dir     string
	Command string
}

// FakeRunner records local commands and answers them from rules.
type FakeRunner struct {
	// RunFunc, when set, is called after recording and its error returned.
	RunFunc func(dir, cmd string) error

	rules rules

	mu    sync.Mutex
	calls []LocalCall
}

// On scripts a response for commands containing match.
func (r *FakeRunner) On(match string, resp Response) *FakeRunner {
	r.rules.add(match, resp, 0)
	return r
}

// Fail makes commands containing match exit 1.
func (r *FakeRunner) Fail(match string) *FakeRunner {
	return r.On(match, Response{ExitStatus: 1, Stderr: "simulated failure: " + match})
}

// Reply makes commands containing match print stdout.
func (r *FakeRunner) Reply(match, stdout string) *FakeRunner {
	return r.On(match, Response{Stdout: stdout})
}

// Run records cmd and returns its scripted output.
func (r *FakeRunner) Run(_ context.Context, dir, cmd string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, LocalCall{Dir: dir, Command: cmd})
	r.mu.Unlock()

	resp := r.rules.answer(cmd)
	if resp.Err != nil {
		return "", resp.Err
	}
	if resp.ExitStatus != 0 {
		return "", remote.NewCommandError("", cmd, &remote.Result{
			Stdout: resp.Stdout, Stderr: resp.Stderr, ExitStatus: resp.ExitStatus,
		})
	}
	if r.RunFunc != nil {
		if err := r.RunFunc(dir, cmd); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(resp.Stdout), nil
}

// Calls returns every recorded command.
func (r *FakeRunner) Calls() []LocalCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LocalCall(nil), r.calls...)
}

// Commands returns the recorded command lines.
func (r *FakeRunner) Commands() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.Command)
	}
	return out
}
