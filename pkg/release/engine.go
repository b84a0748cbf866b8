package release

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
	"github.com/arthur-debert/rollout/pkg/registry"
)

// EventKind tells observers what the engine is doing.
type EventKind string

const (
	EventRun      EventKind = "run"
	EventRevert   EventKind = "revert"
	EventFailed   EventKind = "failed"
	EventRevertOK EventKind = "reverted"
)

// Event is sent to Options.Notify as phases run and revert.
type Event struct {
	Kind  EventKind
	Host  string
	Phase string
	Err   error
}

// Options configures an Engine. Hosts, base dir, keep, parallelism and
// the artifact come from the execution context's config.
type Options struct {
	Exec   *execution.Context
	Phases registry.Registry[*Phase]

	// Order names the phases to run. Empty means every registered phase.
	Order []string

	Notify func(Event)
}

// Result summarizes a run. It is returned on failure too.
type Result struct {
	Project     string   `json:"project" yaml:"project"`
	Artifact    string   `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Release     string   `json:"release" yaml:"release"`
	DeployLink  string   `json:"deploy_link" yaml:"deploy_link"`
	Hosts       []string `json:"hosts" yaml:"hosts"`
	Rollback    bool     `json:"rollback" yaml:"rollback"`
	Completed   []Step   `json:"completed" yaml:"completed"`
	Failed      *Step    `json:"failed,omitempty" yaml:"failed,omitempty"`
	Compensated []Step   `json:"compensated,omitempty" yaml:"compensated,omitempty"`
}

// Engine runs one deploy or rollback.
type Engine struct {
	exec   *execution.Context
	phases registry.Registry[*Phase]
	order  []string
	notify func(Event)
	logger zerolog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Phases == nil {
		opts.Phases = DefaultPhases()
	}
	if opts.Notify == nil {
		opts.Notify = func(Event) {}
	}
	return &Engine{
		exec:   opts.Exec,
		phases: opts.Phases,
		order:  opts.Order,
		notify: opts.Notify,
		logger: logging.GetLogger("release"),
	}
}

// Run executes every phase on every host, compensating completed work in
// reverse when anything fails.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	cfg := e.exec.Config()
	hosts := cfg.Deploy.Hosts
	if len(hosts) == 0 {
		return nil, errors.New(errors.ErrConfiguration,
			"no hosts to deploy to: set deploy.hosts in the Rolloutfile or pass --hosts")
	}

	order := e.order
	if len(order) == 0 {
		order = e.phases.List()
	}
	if cfg.Deploy.Rollback {
		order = without(order, PhaseUpload, PhaseExtract, PhaseCleanup)
	} else if cfg.Deploy.Artifact == "" {
		return nil, errors.New(errors.ErrConfiguration, "no artifact given to deploy")
	}

	phases := make([]*Phase, 0, len(order))
	for _, name := range order {
		ph, err := e.phases.Get(name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfiguration, "could not resolve %q as a deployment phase", name)
		}
		ph.reset()
		phases = append(phases, ph)
	}

	layout := paths.ReleaseLayout{BaseDir: cfg.Deploy.BaseDir, Project: cfg.Project}
	base := &Context{
		Artifact: cfg.Deploy.Artifact,
		Rollback: cfg.Deploy.Rollback,
		Keep:     cfg.Deploy.Keep,
		User:     cfg.User,
		Layout:   layout,
		exec:     e.exec,
		state:    newRunState(),
		logger:   e.logger,
	}

	if base.Rollback {
		release, err := e.rollbackTarget(ctx, base.forHost(hosts[0]))
		if err != nil {
			return nil, err
		}
		base.ReleaseDir = release
		e.logger.Info().Str("project", cfg.Project).Int("hosts", len(hosts)).Str("release", release).
			Msg("Rolling back to previous release")
	} else {
		base.ReleaseDir = layout.Release(paths.ReleaseID(base.Artifact))
		e.logger.Info().Str("project", cfg.Project).Int("hosts", len(hosts)).Str("artifact", base.Artifact).
			Msg("Deploying")
	}
	base.DeployLink = layout.Deploy(paths.DeployStamp(e.exec.Now()))

	res := &Result{
		Project:    cfg.Project,
		Artifact:   base.Artifact,
		Release:    base.ReleaseDir,
		DeployLink: base.DeployLink,
		Hosts:      append([]string(nil), hosts...),
		Rollback:   base.Rollback,
	}
	if base.Rollback {
		res.Artifact = ""
	}

	done := logging.LogOperationStart(e.logger, "deploy")
	defer done()

	failed, runErr := e.forward(ctx, base, phases, hosts, cfg.Deploy.Parallel)
	res.Completed = base.Progress()
	if runErr == nil {
		return res, nil
	}

	res.Failed = failed
	res.Compensated = e.compensate(ctx, base)

	err := errors.Wrapf(runErr, errors.ErrDeployFailed,
		"deployment failed, previously completed deployment actions have been reverted")
	if failed != nil {
		err = err.WithDetail("host", failed.Host).WithDetail("phase", failed.Phase)
	}
	return res, err
}

// rollbackTarget resolves the release of the second most recent deploy.
func (e *Engine) rollbackTarget(ctx context.Context, d *Context) (string, error) {
	deploys, err := d.Deploys(ctx)
	if err != nil {
		return "", err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(deploys)))
	if len(deploys) < 2 {
		return "", errors.New(errors.ErrNoRollback, "no previous deploy to rollback to").
			WithDetail("host", d.Host)
	}
	return d.Exec(ctx, "cd deploys && readlink -vn "+execution.Quote(deploys[1]))
}

// forward runs phases in order. Each phase is a barrier: all hosts finish
// it before the next phase starts.
func (e *Engine) forward(ctx context.Context, base *Context, phases []*Phase, hosts []string, parallel int) (*Step, error) {
	for _, ph := range phases {
		var (
			failed *Step
			err    error
		)
		if parallel > 1 && len(hosts) > 1 {
			failed, err = e.phaseParallel(ctx, base, ph, hosts, parallel)
		} else {
			failed, err = e.phaseSequential(ctx, base, ph, hosts)
		}
		if err != nil {
			return failed, err
		}
	}
	return nil, nil
}

func (e *Engine) phaseSequential(ctx context.Context, base *Context, ph *Phase, hosts []string) (*Step, error) {
	for _, host := range hosts {
		if err := e.runOne(ctx, base.forHost(host), ph); err != nil {
			return &Step{Host: host, Phase: ph.Name}, err
		}
	}
	return nil, nil
}

// phaseParallel runs ph on up to limit hosts at once. Hosts already in
// flight finish even when another host fails.
func (e *Engine) phaseParallel(ctx context.Context, base *Context, ph *Phase, hosts []string, limit int) (*Step, error) {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed *Step
	)
	g.SetLimit(limit)
	for _, host := range hosts {
		host := host
		g.Go(func() error {
			if err := e.runOne(ctx, base.forHost(host), ph); err != nil {
				mu.Lock()
				if failed == nil {
					failed = &Step{Host: host, Phase: ph.Name}
				}
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed, err
	}
	return nil, nil
}

func (e *Engine) runOne(ctx context.Context, d *Context, ph *Phase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, err := ph.invokeRun(ctx, d, func() {
		d.logger.Info().Str("phase", ph.Name).Msgf("Executing %q", ph.Name)
		e.notify(Event{Kind: EventRun, Host: d.Host, Phase: ph.Name})
	})
	if err != nil {
		d.logger.Error().Err(err).Str("phase", ph.Name).Msg("Phase failed")
		e.notify(Event{Kind: EventFailed, Host: d.Host, Phase: ph.Name, Err: err})
		return err
	}
	switch g {
	case gateLimited:
		d.logger.Debug().Str("phase", ph.Name).Int("limit", ph.Limit).Msg("Phase limit reached, skipped")
		return nil
	case gateSkipped:
		d.logger.Debug().Str("phase", ph.Name).Msg("Phase skipped")
	}
	d.push(Step{Host: d.Host, Phase: ph.Name})
	return nil
}

// compensate unwinds the progress stack in reverse. Errors are logged and
// the unwind continues. It returns the steps whose fail action ran
// successfully.
func (e *Engine) compensate(ctx context.Context, base *Context) []Step {
	ctx = context.WithoutCancel(ctx)
	progress := base.Progress()

	var reverted []Step
	for i := len(progress) - 1; i >= 0; i-- {
		step := progress[i]
		ph, err := e.phases.Get(step.Phase)
		if err != nil {
			continue
		}
		d := base.forHost(step.Host)
		g, err := ph.invokeFail(ctx, d, func() {
			d.logger.Info().Str("phase", step.Phase).Msgf("Reverting %q", step.Phase)
			e.notify(Event{Kind: EventRevert, Host: step.Host, Phase: step.Phase})
		})
		if err != nil {
			d.logger.Error().Err(err).Str("phase", step.Phase).Msg("Compensation failed, continuing")
			e.notify(Event{Kind: EventFailed, Host: step.Host, Phase: step.Phase, Err: err})
			continue
		}
		if g == gateOpen {
			e.notify(Event{Kind: EventRevertOK, Host: step.Host, Phase: step.Phase})
			reverted = append(reverted, step)
		}
	}
	return reverted
}

func without(order []string, drop ...string) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		skip := false
		for _, d := range drop {
			if name == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, name)
		}
	}
	return out
}
