// Package script loads a Rolloutfile and registers what it declares with
// an app.Builder.
//
// A Rolloutfile is HCL. Expressions can use the variables `env` (the
// selected environment) and `commit` (the requested revision) and a few
// string functions.
package script

import (
	"context"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/arthur-debert/rollout/pkg/app"
	"github.com/arthur-debert/rollout/pkg/build"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/release"
	"github.com/arthur-debert/rollout/pkg/types"
)

// Vars are exposed to expressions in the Rolloutfile.
type Vars struct {
	Env    string
	Commit string
}

// Script is a decoded Rolloutfile.
type Script struct {
	Path string
	Vars Vars

	file fileSchema
}

// Load reads and decodes the Rolloutfile at path.
func Load(fsys types.FS, path string, vars Vars) (*Script, error) {
	logger := logging.GetLogger("script")
	logger.Debug().Str("path", path).Str("env", vars.Env).Msg("Loading Rolloutfile")

	src, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrConfiguration, "no Rolloutfile at %s", path)
		}
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "unable to read %s", path)
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, diagError(path, "parse", diags)
	}

	s := &Script{Path: path, Vars: vars}
	if diags := gohcl.DecodeBody(f.Body, evalContext(vars), &s.file); diags.HasErrors() {
		return nil, diagError(path, "decode", diags)
	}

	logger.Debug().Str("path", path).Msg("Rolloutfile loaded")
	return s, nil
}

func evalContext(vars Vars) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":    cty.StringVal(vars.Env),
			"commit": cty.StringVal(vars.Commit),
		},
		Functions: map[string]function.Function{
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
			"join":   stdlib.JoinFunc,
			"split":  stdlib.SplitFunc,
			"concat": stdlib.ConcatFunc,
			"format": stdlib.FormatFunc,
		},
	}
}

func diagError(path, stage string, diags hcl.Diagnostics) error {
	return errors.Wrapf(diags, errors.ErrConfigParse, "failed to %s %s", stage, path).
		WithDetail("path", path)
}

// Apply registers the script's configuration, hooks and phases.
func (s *Script) Apply(b *app.Builder) error {
	values, err := s.configValues()
	if err != nil {
		return err
	}
	b.RegisterConfig(values)

	if pkg := s.file.Package; pkg != nil {
		for _, cmd := range pkg.Run {
			b.RegisterPackageHooks(buildCommand(cmd))
		}
	}

	dep := s.file.Deploy
	if dep == nil {
		return nil
	}
	for _, cmd := range dep.Run {
		b.RegisterDeployHooks(release.CommandHook(cmd))
	}
	for _, pb := range dep.Phase {
		if err := b.AddPhase(pb.phase()); err != nil {
			return err
		}
	}
	if len(dep.Phases) > 0 {
		b.SetPhaseOrder(dep.Phases...)
	}
	return nil
}

func buildCommand(cmd string) build.Hook {
	return func(ctx context.Context, b *build.Build) error {
		_, err := b.Run(ctx, cmd)
		return err
	}
}

// phase turns a phase block into a release phase whose commands run from
// the release directory.
func (pb *phaseBlock) phase() *release.Phase {
	p := release.NewPhase(pb.Name, commands(pb.Run), commands(pb.Fail))
	if len(pb.Hosts) > 0 {
		p.When(release.OnHosts(pb.Hosts...))
	}
	if len(pb.ExceptHosts) > 0 {
		p.When(release.ExceptHosts(pb.ExceptHosts...))
	}
	if pb.Limit != nil {
		p.Limit = *pb.Limit
	}
	return p
}

func commands(cmds []string) release.Action {
	if len(cmds) == 0 {
		return nil
	}
	return func(ctx context.Context, d *release.Context) error {
		for _, cmd := range cmds {
			if err := release.CommandHook(cmd)(ctx, d); err != nil {
				return err
			}
		}
		return nil
	}
}
