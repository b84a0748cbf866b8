package release

import (
	"context"
	"slices"
	"sync"
)

// Default phase names.
const (
	PhaseUpload  = "upload"
	PhaseExtract = "extract"
	PhaseLink    = "link"
	PhaseHooks   = "hooks"
	PhaseCleanup = "cleanup"
)

// DefaultOrder is the phase sequence of a plain deploy.
var DefaultOrder = []string{PhaseUpload, PhaseExtract, PhaseLink, PhaseCleanup}

// Action is a phase's run or fail step, invoked once per host.
type Action func(ctx context.Context, d *Context) error

// Condition gates a phase for one host. A phase only runs, and is only
// compensated, when every condition holds.
type Condition func(d *Context) bool

// Phase is one named deploy step with an optional compensating action.
type Phase struct {
	Name       string
	Conditions []Condition

	// Limit caps how many times Run and Fail are each invoked per run.
	// Zero means no limit.
	Limit int

	Run  Action
	Fail Action

	mu    sync.Mutex
	runs  int
	fails int
}

// NewPhase returns a phase with the given actions. Either may be nil.
func NewPhase(name string, run, fail Action) *Phase {
	return &Phase{Name: name, Run: run, Fail: fail}
}

// When adds a condition and returns the phase.
func (p *Phase) When(c Condition) *Phase {
	p.Conditions = append(p.Conditions, c)
	return p
}

// Matches reports whether every condition holds for d.
func (p *Phase) Matches(d *Context) bool {
	for _, c := range p.Conditions {
		if !c(d) {
			return false
		}
	}
	return true
}

// Counts returns how many times Run and Fail completed in this run.
func (p *Phase) Counts() (runs, fails int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs, p.fails
}

func (p *Phase) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs, p.fails = 0, 0
}

// gate is the outcome of checking a phase against one host.
type gate int

const (
	// gateSkipped: no action, or a condition does not hold. The step still
	// counts as reached so compensation re-checks its conditions.
	gateSkipped gate = iota
	// gateLimited: the invocation limit is used up. The step never ran on
	// this host and must not be compensated there.
	gateLimited
	gateOpen
)

// invokeRun runs the phase for d unless it is gated. before, when set, is
// called once the run is certain to happen.
func (p *Phase) invokeRun(ctx context.Context, d *Context, before func()) (gate, error) {
	return p.invoke(ctx, d, p.Run, &p.runs, before)
}

func (p *Phase) invokeFail(ctx context.Context, d *Context, before func()) (gate, error) {
	return p.invoke(ctx, d, p.Fail, &p.fails, before)
}

// invoke reserves a slot against the limit before calling action so
// concurrent hosts cannot overshoot it. A failed call gives the slot back.
func (p *Phase) invoke(ctx context.Context, d *Context, action Action, counter *int, before func()) (gate, error) {
	if action == nil || !p.Matches(d) {
		return gateSkipped, nil
	}

	p.mu.Lock()
	if p.Limit > 0 && *counter >= p.Limit {
		p.mu.Unlock()
		return gateLimited, nil
	}
	*counter++
	p.mu.Unlock()

	if before != nil {
		before()
	}
	if err := action(ctx, d); err != nil {
		p.mu.Lock()
		*counter--
		p.mu.Unlock()
		return gateOpen, err
	}
	return gateOpen, nil
}

// OnHosts restricts a phase to the named hosts.
func OnHosts(hosts ...string) Condition {
	return func(d *Context) bool { return slices.Contains(hosts, d.Host) }
}

// ExceptHosts skips a phase on the named hosts.
func ExceptHosts(hosts ...string) Condition {
	return func(d *Context) bool { return !slices.Contains(hosts, d.Host) }
}

// Deploying holds only for forward deploys, never rollbacks.
func Deploying(d *Context) bool { return !d.Rollback }
