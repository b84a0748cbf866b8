package release

import (
	"context"

	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/paths"
	"github.com/arthur-debert/rollout/pkg/registry"
)

// Hook is a user deploy step run on every host after linking.
type Hook func(ctx context.Context, d *Context) error

// DefaultPhases returns a registry holding upload, extract, link and
// cleanup in that order.
func DefaultPhases() registry.Registry[*Phase] {
	reg := registry.New[*Phase]()
	registry.MustRegister(reg, PhaseUpload, NewPhase(PhaseUpload, uploadRun, uploadFail))
	registry.MustRegister(reg, PhaseExtract, NewPhase(PhaseExtract, extractRun, extractFail))
	registry.MustRegister(reg, PhaseLink, NewPhase(PhaseLink, linkRun, linkFail))
	registry.MustRegister(reg, PhaseCleanup, NewPhase(PhaseCleanup, cleanupRun, nil))
	return reg
}

// HooksPhase runs hooks in order on each host. It has no fail action.
func HooksPhase(hooks ...Hook) *Phase {
	return NewPhase(PhaseHooks, func(ctx context.Context, d *Context) error {
		for _, h := range hooks {
			if err := h(ctx, d); err != nil {
				return err
			}
		}
		return nil
	}, nil)
}

// CommandHook runs a shell command from the release directory.
func CommandHook(cmd string) Hook {
	return func(ctx context.Context, d *Context) error {
		_, err := d.ExecIn(ctx, d.ReleaseDir, cmd)
		return err
	}
}

func uploadRun(ctx context.Context, d *Context) error {
	if err := d.EnsureDir(ctx, d.Layout.DeploysDir()); err != nil {
		return err
	}
	if err := d.EnsureDir(ctx, d.Layout.ReleasesDir()); err != nil {
		return err
	}

	staged := execution.Quote(d.StagedArtifact())
	if _, err := d.Exec(ctx, "rm -f "+staged); err != nil {
		return err
	}

	if loc, ok := paths.ParseLocation(d.Artifact); ok {
		if loc.User == "" {
			loc.User = d.User
		}
		_, err := d.Exec(ctx, "scp "+execution.Quote(loc.String())+" "+execution.Quote(d.Layout.ReleasesDir()+"/"))
		return err
	}
	return d.Upload(ctx, paths.ExpandHome(d.Artifact), d.Layout.ReleasesDir()+"/")
}

func uploadFail(ctx context.Context, d *Context) error {
	_, err := d.Exec(ctx, "rm -f "+execution.Quote(d.StagedArtifact()))
	return err
}

func extractRun(ctx context.Context, d *Context) error {
	release := execution.Quote(d.ReleaseDir)
	// mkdir without -p: an existing release is never overwritten.
	if _, err := d.Exec(ctx, "mkdir "+release); err != nil {
		return err
	}
	if _, err := d.Exec(ctx, "cd "+release+" && tar -xzf ../"+execution.Quote(paths.ArtifactBase(d.Artifact))); err != nil {
		return err
	}
	_, err := d.Exec(ctx, "rm -f "+execution.Quote(d.StagedArtifact()))
	return err
}

func extractFail(ctx context.Context, d *Context) error {
	_, err := d.Exec(ctx, "rm -rf "+execution.Quote(d.ReleaseDir))
	return err
}

func linkRun(ctx context.Context, d *Context) error {
	if _, err := d.Exec(ctx, "ln -s "+execution.Quote(d.ReleaseDir)+" "+execution.Quote(d.DeployLink)); err != nil {
		return err
	}
	if err := d.UpdateCurrent(ctx); err != nil {
		// The step never reaches the progress stack, so linkFail will not
		// run for this host.
		if _, rmErr := d.Exec(ctx, "rm -f "+execution.Quote(d.DeployLink)); rmErr != nil {
			d.logger.Error().Err(rmErr).Str("link", d.DeployLink).Msg("Could not remove deploy link")
		}
		return err
	}
	return nil
}

func linkFail(ctx context.Context, d *Context) error {
	revertErr := d.RevertCurrent(ctx)
	if _, err := d.Exec(ctx, "rm -f "+execution.Quote(d.DeployLink)); err != nil {
		return err
	}
	return revertErr
}

func cleanupRun(ctx context.Context, d *Context) error {
	if d.Keep <= 0 {
		return nil
	}
	if _, err := d.CleanupDeploys(ctx, d.Keep); err != nil {
		return err
	}
	removed, err := d.CleanupReleases(ctx)
	if len(removed) > 0 {
		d.logger.Info().Strs("releases", removed).Msg("Removed unreferenced releases")
	}
	return err
}
