// Package dispatcher is the entry point from the CLI layer. It resolves
// the requested action, loads the Rolloutfile into a finalized app, runs
// the build pipeline or the release engine, and always releases the
// sessions the run opened.
package dispatcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/arthur-debert/rollout/pkg/app"
	"github.com/arthur-debert/rollout/pkg/build"
	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/filesystem"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
	"github.com/arthur-debert/rollout/pkg/release"
	"github.com/arthur-debert/rollout/pkg/remote"
	"github.com/arthur-debert/rollout/pkg/script"
	"github.com/arthur-debert/rollout/pkg/types"
	"github.com/arthur-debert/rollout/pkg/vcs"
)

// CommandType is an action the dispatcher knows how to run.
type CommandType string

const (
	CommandPackage  CommandType = "package"
	CommandDeploy   CommandType = "deploy"
	CommandRollback CommandType = "rollback"

	// CommandConfig only prepares the app, for `rollout config`.
	CommandConfig CommandType = "config"
)

// ParseCommand resolves an action name.
func ParseCommand(name string) (CommandType, error) {
	switch c := CommandType(name); c {
	case CommandPackage, CommandDeploy, CommandRollback, CommandConfig:
		return c, nil
	}
	return "", errors.Newf(errors.ErrConfiguration, "unrecognized command %q", name).
		WithDetail("command", name)
}

// Options carries what the CLI collected. Zero values select real
// implementations.
type Options struct {
	// WorkDir is where the Rolloutfile search starts.
	WorkDir string
	// ScriptPath skips the search when set.
	ScriptPath     string
	UserConfigPath string
	Flags          *pflag.FlagSet

	// Artifact is the deploy argument.
	Artifact string

	FileSystem types.FS
	Runner     execution.Runner
	Opener     remote.Opener
	Clock      func() time.Time

	// Resolver answers revision questions for package. It defaults to the
	// git repository holding the Rolloutfile.
	Resolver build.Resolver

	Notify func(release.Event)
}

// Result is what an action produced.
type Result struct {
	Command CommandType     `json:"command" yaml:"command"`
	Package *build.Result   `json:"package,omitempty" yaml:"package,omitempty"`
	Deploy  *release.Result `json:"deploy,omitempty" yaml:"deploy,omitempty"`
}

// Prepared is an app ready to run, with the script it came from.
type Prepared struct {
	App        *app.App
	ScriptPath string
}

// Prepare loads the Rolloutfile and finalizes the configuration for cmd.
func Prepare(cmd CommandType, opts Options) (*Prepared, error) {
	logger := logging.GetLogger("dispatcher")
	if opts.FileSystem == nil {
		opts.FileSystem = filesystem.NewOS()
	}

	overrides := map[string]interface{}{}
	switch cmd {
	case CommandDeploy:
		if opts.Artifact != "" {
			overrides["deploy.artifact"] = opts.Artifact
		}
		overrides["deploy.rollback"] = false
	case CommandRollback:
		overrides["deploy.rollback"] = true
	}
	src := config.Sources{
		UserConfigPath: opts.UserConfigPath,
		Flags:          opts.Flags,
		Overrides:      overrides,
	}

	// The script sees env and commit, which may come from any layer below it.
	pre, err := config.Load(src)
	if err != nil {
		return nil, err
	}

	scriptPath := opts.ScriptPath
	if scriptPath == "" {
		workDir := opts.WorkDir
		if workDir == "" {
			workDir = "."
		}
		if scriptPath, err = paths.FindScript(opts.FileSystem, workDir); err != nil {
			return nil, err
		}
	}

	s, err := script.Load(opts.FileSystem, scriptPath, script.Vars{
		Env:    pre.Config.Deploy.Env,
		Commit: pre.Config.Package.Commit,
	})
	if err != nil {
		return nil, err
	}

	b := app.NewBuilder()
	if err := s.Apply(b); err != nil {
		return nil, err
	}
	a, err := b.Finalize(src)
	if err != nil {
		return nil, err
	}

	if cmd == CommandDeploy && a.Config.Deploy.Artifact == "" {
		return nil, errors.New(errors.ErrInvalidInput, "you must specify the artifact to be deployed")
	}

	logger.Debug().
		Str("command", string(cmd)).
		Str("script", scriptPath).
		Str("project", a.Config.Project).
		Strs("hosts", a.Config.Deploy.Hosts).
		Msg("Prepared application")
	return &Prepared{App: a, ScriptPath: scriptPath}, nil
}

// Dispatch runs cmd. Sessions opened during the run are closed before it
// returns, whatever the outcome.
func Dispatch(ctx context.Context, cmd CommandType, opts Options) (res *Result, err error) {
	logger := logging.GetLogger("dispatcher")
	logger.Debug().Str("command", string(cmd)).Str("workDir", opts.WorkDir).Msg("Dispatching command")

	if _, err := ParseCommand(string(cmd)); err != nil {
		return nil, err
	}
	prepared, err := Prepare(cmd, opts)
	if err != nil {
		return nil, err
	}
	a := prepared.App

	exec := execution.New(execution.Options{
		Config: a.Config,
		Runner: opts.Runner,
		Opener: opts.Opener,
		FS:     opts.FileSystem,
		Clock:  opts.Clock,
		Proxy:  proxyFor(cmd, a.Config),
	})
	defer func() {
		if cerr := exec.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Closing sessions failed")
		}
	}()

	res = &Result{Command: cmd}
	switch cmd {
	case CommandPackage:
		resolver := opts.Resolver
		if resolver == nil {
			repo, err := vcs.Open(filepath.Dir(prepared.ScriptPath))
			if err != nil {
				return nil, err
			}
			resolver = repo
		}
		res.Package, err = build.New(build.Options{
			Exec:     exec,
			Resolver: resolver,
			Hooks:    a.PackageHooks,
		}).Run(ctx)
		if err != nil {
			return nil, err
		}

	case CommandDeploy, CommandRollback:
		res.Deploy, err = release.New(release.Options{
			Exec:   exec,
			Phases: a.Phases,
			Order:  a.Order,
			Notify: opts.Notify,
		}).Run(ctx)
		if err != nil {
			// The partial result tells the user what was compensated.
			return res, err
		}
	}
	return res, nil
}

// proxyFor routes deploy sessions through deploy_via. The build host is
// always reached directly.
func proxyFor(cmd CommandType, cfg *config.Config) string {
	if cmd == CommandDeploy || cmd == CommandRollback {
		return cfg.Deploy.DeployVia
	}
	return ""
}
