package build

import (
	"context"
	"fmt"
	"path"

	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
)

// hostBuild holds the names computed for one build-host run.
type hostBuild struct {
	target   string
	layout   paths.BuildLayout
	key      string
	url      string
	commit   string
	id       string
	name     string
	buildDir string
}

func (p *Pipeline) planHost() (*hostBuild, error) {
	pkg := p.cfg.Package
	if pkg.BuildHost == "" {
		return nil, errors.New(errors.ErrConfiguration, "package.build_host is not set").
			WithDetail("key", "package.build_host")
	}
	target := pkg.BuildHost
	if pkg.BuildUser != "" {
		target = pkg.BuildUser + "@" + pkg.BuildHost
	}

	url, err := p.resolver.UpstreamURL(pkg.Commit, p.cfg.GitSrc)
	if err != nil {
		return nil, err
	}
	commit, err := p.resolver.ResolveShort(pkg.Commit)
	if err != nil {
		return nil, err
	}

	now := p.exec.Now()
	key := paths.RemoteKey(url)
	id := paths.ArtifactID(now, commit)
	return &hostBuild{
		target:   target,
		layout:   paths.BuildLayout{RemoteDir: pkg.RemoteDir, Project: p.cfg.Project},
		key:      key,
		url:      url,
		commit:   commit,
		id:       id,
		name:     paths.ArtifactName(now, commit),
		buildDir: paths.BuildDir(key, id),
	}, nil
}

func (p *Pipeline) runHost(ctx context.Context) (res *Result, err error) {
	done := logging.LogOperationStart(p.logger, "package")
	defer done()

	hb, err := p.planHost()
	if err != nil {
		return nil, err
	}
	pkg := p.cfg.Package
	logger := p.logger.With().Str("host", hb.target).Str("commit", hb.commit).Logger()
	logger.Info().Str("remote", hb.url).Msg("Packaging on build host")

	if err := p.ensureDestination(ctx, pkg.Destination); err != nil {
		return nil, err
	}

	pkgDir := hb.layout.PackageDir()
	run := func(cmd string) (string, error) {
		return p.exec.RemoteExec(ctx, hb.target, pkgDir, cmd)
	}

	if err := p.exec.EnsureRemoteDir(ctx, hb.target, hb.layout.CacheRoot()); err != nil {
		return nil, err
	}

	// Temporary resources are always removed on failure, and on success
	// only when purge is set. The cached clone is never removed.
	created := false
	defer func() {
		if created && (err != nil || pkg.Purge) {
			if _, cerr := run(purgeCommand(hb)); cerr != nil {
				logger.Warn().Err(cerr).Msg("Could not remove build directory")
			}
		}
	}()

	if err := p.refreshCache(ctx, hb, run); err != nil {
		return nil, err
	}

	created = true
	if _, err := run(checkoutCommand(hb)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrRevision,
			"unable to check out %s on %s; has it been pushed?", hb.commit, hb.target).
			WithDetail("commit", hb.commit)
	}

	b := &Build{
		Host:     hb.target,
		Dir:      path.Join(pkgDir, hb.buildDir),
		Commit:   hb.commit,
		Artifact: hb.name,
		exec:     p.exec,
	}
	if err := p.runHooks(ctx, b); err != nil {
		return nil, err
	}

	if _, err := run(archiveCommand(hb, pkg.Exclude)); err != nil {
		return nil, errors.Wrap(err, errors.ErrBuild, "unable to archive build")
	}

	location := artifactLocation(pkg.Destination, hb.name)
	if err := p.transferFromHost(ctx, hb, pkg.Destination, run); err != nil {
		return nil, err
	}

	logger.Info().Str("artifact", location).Msg("Package complete")
	return &Result{Name: hb.name, Location: location, Commit: hb.commit, Mode: config.ModeHost}, nil
}

// refreshCache fetches into the cached clone, cloning it first if needed.
func (p *Pipeline) refreshCache(ctx context.Context, hb *hostBuild, run func(string) (string, error)) error {
	cacheRel := path.Join("cached", hb.key)
	out, err := run(fmt.Sprintf("if [ -d %s ] ; then echo cached ; fi", execution.Quote(cacheRel)))
	if err != nil {
		return err
	}

	if out == "cached" {
		p.logger.Debug().Str("cache", cacheRel).Msg("Fetching into cached clone")
		_, err = run(execution.InDir(cacheRel, "git fetch origin -q"))
	} else {
		p.logger.Debug().Str("cache", cacheRel).Msg("Cloning into cache")
		_, err = run(fmt.Sprintf("git clone -q %s %s", execution.Quote(hb.url), execution.Quote(cacheRel)))
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrBuild, "unable to update cached clone of %s", hb.url)
	}
	return nil
}

func checkoutCommand(hb *hostBuild) string {
	return fmt.Sprintf("mkdir -p %s && cd cached/%s && GIT_WORK_TREE=../../%s git checkout -f --detach %s && git checkout -f -",
		hb.buildDir, hb.key, hb.buildDir, hb.commit)
}

func archiveCommand(hb *hostBuild, exclude []string) string {
	return fmt.Sprintf("cd %s && tar %s-czf ../%s .", execution.Quote(hb.buildDir), tarExcludes(exclude), execution.Quote(hb.name))
}

func purgeCommand(hb *hostBuild) string {
	return fmt.Sprintf("rm -rf %s %s", hb.buildDir, hb.name)
}

// transferFromHost moves the archive to its destination: straight from the
// build host when the destination is remote, otherwise downloaded.
func (p *Pipeline) transferFromHost(ctx context.Context, hb *hostBuild, dest string, run func(string) (string, error)) error {
	if loc, ok := paths.ParseLocation(dest); ok {
		if _, err := run(fmt.Sprintf("scp %s %s", hb.name, loc.String())); err != nil {
			return errors.Wrapf(err, errors.ErrResource, "unable to copy artifact to %s", loc.String())
		}
		return nil
	}

	remotePath := path.Join(hb.layout.PackageDir(), hb.name)
	if err := p.exec.Download(ctx, hb.target, remotePath, paths.ExpandHome(dest)); err != nil {
		return errors.Wrapf(err, errors.ErrResource, "unable to download artifact to %s", dest)
	}
	return nil
}
