// Package app holds the registration API a Rolloutfile talks to and the
// finalized application it produces. Nothing runs until Finalize has
// merged and validated the configuration.
package app

import (
	"maps"
	"slices"

	"github.com/arthur-debert/rollout/pkg/build"
	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/registry"
	"github.com/arthur-debert/rollout/pkg/release"
)

// App is the finalized configuration for one invocation.
type App struct {
	Config       *config.Config
	Loaded       *config.Loaded
	PackageHooks []build.Hook
	Phases       registry.Registry[*release.Phase]
	Order        []string
}

// Builder collects registrations from the script.
type Builder struct {
	values       map[string]interface{}
	packageHooks []build.Hook
	deployHooks  []release.Hook
	phases       registry.Registry[*release.Phase]
	order        []string
	finalized    bool
}

// NewBuilder starts with the default deploy phases.
func NewBuilder() *Builder {
	return &Builder{
		values: make(map[string]interface{}),
		phases: release.DefaultPhases(),
	}
}

// RegisterConfig merges dotted config keys. Later registrations win.
func (b *Builder) RegisterConfig(values map[string]interface{}) {
	maps.Copy(b.values, values)
}

// RegisterPackageHooks appends build hooks.
func (b *Builder) RegisterPackageHooks(hooks ...build.Hook) {
	b.packageHooks = append(b.packageHooks, hooks...)
}

// RegisterDeployHooks appends hooks for the hooks phase.
func (b *Builder) RegisterDeployHooks(hooks ...release.Hook) {
	b.deployHooks = append(b.deployHooks, hooks...)
}

// AddPhase registers p, replacing any phase of the same name. New phases
// only run when named in SetPhaseOrder.
func (b *Builder) AddPhase(p *release.Phase) error {
	if p == nil || p.Name == "" {
		return errors.New(errors.ErrInvalidInput, "phase needs a name")
	}
	return b.phases.Set(p.Name, p)
}

// SetPhaseOrder replaces the default phase sequence.
func (b *Builder) SetPhaseOrder(names ...string) {
	b.order = slices.Clone(names)
}

// Values returns a copy of the registered config values.
func (b *Builder) Values() map[string]interface{} {
	return maps.Clone(b.values)
}

// Finalize layers the registered values into the configuration, validates
// it, and fixes the phase sequence. A builder finalizes once.
func (b *Builder) Finalize(src config.Sources) (*App, error) {
	if b.finalized {
		return nil, errors.New(errors.ErrInternal, "builder already finalized")
	}
	b.finalized = true

	src.Script = b.Values()
	loaded, err := config.Load(src)
	if err != nil {
		return nil, err
	}
	if err := loaded.Config.Validate(); err != nil {
		return nil, err
	}

	order := b.order
	if len(order) == 0 {
		order = slices.Clone(release.DefaultOrder)
		if len(b.deployHooks) > 0 {
			order = slices.Insert(order, slices.Index(order, release.PhaseLink)+1, release.PhaseHooks)
		}
	}
	if len(b.deployHooks) > 0 || slices.Contains(order, release.PhaseHooks) {
		if err := b.phases.Set(release.PhaseHooks, release.HooksPhase(b.deployHooks...)); err != nil {
			return nil, err
		}
	}

	return &App{
		Config:       loaded.Config,
		Loaded:       loaded,
		PackageHooks: slices.Clone(b.packageHooks),
		Phases:       b.phases,
		Order:        order,
	}, nil
}
