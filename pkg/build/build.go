// Package build turns a revision into a tar.gz artifact.
//
// In host mode the work happens on a build host over SSH: a persistent
// clone per upstream remote is fetched, the revision is checked out into
// a fresh build directory, user hooks run there, and the archive is
// transferred to its destination. In container mode the revision is
// checked out into a local git worktree and each declared container
// build produces outputs that are archived locally.
package build

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
)

// Resolver answers revision questions about the local repository.
type Resolver interface {
	Root() (string, error)
	ResolveShort(rev string) (string, error)
	UpstreamURL(rev, gitSrc string) (string, error)
}

// Hook runs after the revision is checked out and before it is archived.
type Hook func(ctx context.Context, b *Build) error

// Build is the state of one packaging run, handed to hooks.
type Build struct {
	// Host is the build host target, empty in container mode.
	Host string
	// Dir is the checked-out source tree.
	Dir      string
	Commit   string
	Artifact string

	exec *execution.Context
}

// Run executes cmd inside the build directory, on the build host or
// locally depending on the mode.
func (b *Build) Run(ctx context.Context, cmd string) (string, error) {
	if b.Host == "" {
		return b.exec.ExecIn(ctx, b.Dir, cmd)
	}
	return b.exec.RemoteExec(ctx, b.Host, b.Dir, cmd)
}

// Result describes the produced artifact.
type Result struct {
	// Name is the archive file name.
	Name string `json:"name" yaml:"name"`
	// Location is where the archive ended up: a local path or user@host:path.
	Location string `json:"location" yaml:"location"`
	Commit   string `json:"commit" yaml:"commit"`
	Mode     string `json:"mode" yaml:"mode"`
}

// Options wires a Pipeline.
type Options struct {
	Exec     *execution.Context
	Resolver Resolver
	Hooks    []Hook
}

// Pipeline packages the configured revision.
type Pipeline struct {
	exec     *execution.Context
	cfg      *config.Config
	resolver Resolver
	hooks    []Hook
	logger   zerolog.Logger
}

// New returns a pipeline for opts.
func New(opts Options) *Pipeline {
	return &Pipeline{
		exec:     opts.Exec,
		cfg:      opts.Exec.Config(),
		resolver: opts.Resolver,
		hooks:    opts.Hooks,
		logger:   logging.GetLogger("build"),
	}
}

// Run packages the revision according to the configured mode. Nothing is
// written to the destination until the final transfer.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	switch p.cfg.Package.Mode {
	case config.ModeContainer:
		return p.runContainer(ctx)
	case config.ModeHost, "":
		return p.runHost(ctx)
	default:
		return nil, errors.Newf(errors.ErrConfiguration, "unknown build mode %q", p.cfg.Package.Mode)
	}
}

func (p *Pipeline) runHooks(ctx context.Context, b *Build) error {
	for i, hook := range p.hooks {
		p.logger.Debug().Int("hook", i).Str("dir", b.Dir).Msg("Running build hook")
		if err := hook(ctx, b); err != nil {
			return errors.Wrapf(err, errors.ErrBuild, "build hook %d failed", i+1)
		}
	}
	return nil
}

// ensureDestination prepares the artifact destination, opening a session
// to its host when it is remote.
func (p *Pipeline) ensureDestination(ctx context.Context, dest string) error {
	if loc, ok := paths.ParseLocation(dest); ok {
		return p.exec.EnsureRemoteDir(ctx, userHost(loc), loc.Path)
	}
	return p.exec.EnsureLocalDir(paths.ExpandHome(dest))
}

// artifactLocation joins the destination and the archive name.
func artifactLocation(dest, name string) string {
	if loc, ok := paths.ParseLocation(dest); ok {
		loc.Path = path.Join(loc.Path, name)
		return loc.String()
	}
	return filepath.Join(paths.ExpandHome(dest), name)
}

func userHost(loc paths.Location) string {
	if loc.User != "" {
		return loc.User + "@" + loc.Host
	}
	return loc.Host
}

// tarExcludes renders one --exclude option per pattern.
func tarExcludes(patterns []string) string {
	var b strings.Builder
	for _, p := range patterns {
		b.WriteString("--exclude=")
		b.WriteString(execution.Quote(p))
		b.WriteString(" ")
	}
	return b.String()
}
