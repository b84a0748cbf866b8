package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
)

// WorkRoot is where container builds keep worktrees and outputs. Tests
// point it at a temporary directory.
var WorkRoot = os.TempDir

var imageUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

// ImageName is the local tag for one container build of a revision.
func ImageName(project, name, commit string) string {
	repo := imageUnsafe.ReplaceAllString(strings.ToLower("rollout-"+project+"-"+name), "-")
	return repo + ":" + commit
}

func (p *Pipeline) runContainer(ctx context.Context) (res *Result, err error) {
	done := logging.LogOperationStart(p.logger, "package.container")
	defer done()

	pkg := p.cfg.Package
	if len(pkg.Containers) == 0 {
		return nil, errors.New(errors.ErrConfiguration, "container mode needs at least one container build")
	}

	root, err := p.resolver.Root()
	if err != nil {
		return nil, err
	}
	commit, err := p.resolver.ResolveShort(pkg.Commit)
	if err != nil {
		return nil, err
	}
	now := p.exec.Now()
	id := paths.ArtifactID(now, commit)
	name := paths.ArtifactName(now, commit)
	logger := p.logger.With().Str("commit", commit).Logger()

	if err := p.ensureDestination(ctx, pkg.Destination); err != nil {
		return nil, err
	}

	fsys := p.exec.FS()
	work := filepath.Join(WorkRoot(), "rollout-"+p.cfg.Project+"-"+id)
	worktree := filepath.Join(work, "src")
	outRoot := filepath.Join(work, "out")
	if err := fsys.MkdirAll(outRoot, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrResource, "unable to create %s", outRoot)
	}
	defer func() {
		if rerr := fsys.RemoveAll(work); rerr != nil {
			logger.Warn().Err(rerr).Str("path", work).Msg("Could not remove work directory")
		}
	}()

	if _, err := p.exec.ExecIn(ctx, root, "git worktree prune"); err != nil {
		return nil, err
	}
	if _, err := p.exec.ExecIn(ctx, root, fmt.Sprintf("git worktree add --force --detach %s %s", execution.Quote(worktree), commit)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrRevision, "unable to check out %s into a worktree", commit).
			WithDetail("commit", commit)
	}
	defer func() {
		if _, rerr := p.exec.ExecIn(context.WithoutCancel(ctx), root, "git worktree remove --force "+execution.Quote(worktree)); rerr != nil {
			logger.Warn().Err(rerr).Msg("Could not remove worktree")
		}
	}()

	b := &Build{Dir: worktree, Commit: commit, Artifact: name, exec: p.exec}
	if err := p.runHooks(ctx, b); err != nil {
		return nil, err
	}

	for _, ct := range pkg.Containers {
		if err := p.buildContainer(ctx, ct, worktree, filepath.Join(outRoot, ct.Name), commit); err != nil {
			return nil, err
		}
	}

	if err := pruneExcluded(fsys, outRoot, pkg.Exclude); err != nil {
		return nil, err
	}

	location := artifactLocation(pkg.Destination, name)
	if err := p.deliverLocal(ctx, outRoot, filepath.Join(work, name), pkg.Destination); err != nil {
		return nil, err
	}

	logger.Info().Str("artifact", location).Msg("Package complete")
	return &Result{Name: name, Location: location, Commit: commit, Mode: config.ModeContainer}, nil
}

func (p *Pipeline) buildContainer(ctx context.Context, ct config.Container, worktree, outDir, commit string) error {
	docker := p.cfg.Package.Docker
	if docker == "" {
		docker = "docker"
	}
	image := ImageName(p.cfg.Project, ct.Name, commit)
	logger := p.logger.With().Str("container", ct.Name).Str("image", image).Logger()

	if err := p.exec.EnsureLocalDir(outDir); err != nil {
		return err
	}

	dockerfile := ct.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	buildCtx := filepath.Join(worktree, ct.Context)

	var args []string
	keys := make([]string, 0, len(ct.BuildArgs))
	for k := range ct.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg "+execution.Quote(k+"="+ct.BuildArgs[k]))
	}

	logger.Info().Msg("Building image")
	buildCmd := fmt.Sprintf("%s build -t %s -f %s %s%s", docker, image,
		execution.Quote(filepath.Join(worktree, dockerfile)), joinArgs(args), execution.Quote(buildCtx))
	if _, err := p.exec.Exec(ctx, buildCmd); err != nil {
		return errors.Wrapf(err, errors.ErrBuild, "image build for %q failed", ct.Name)
	}

	logger.Info().Msg("Running build container")
	runCmd := fmt.Sprintf("%s run --rm -v %s:/src:ro -v %s:/out %s", docker,
		execution.Quote(worktree), execution.Quote(outDir), image)
	if _, err := p.exec.Exec(ctx, runCmd); err != nil {
		return errors.Wrapf(err, errors.ErrBuild, "build container %q failed", ct.Name)
	}

	for _, out := range ct.Outputs {
		if _, err := p.exec.FS().Stat(filepath.Join(outDir, out)); err != nil {
			return errors.Newf(errors.ErrBuild, "container %q did not produce %s", ct.Name, out).
				WithDetail("container", ct.Name).
				WithDetail("output", out)
		}
	}
	return nil
}

func joinArgs(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.Join(args, " ") + " "
}

// deliverLocal archives outRoot and places the archive at dest.
func (p *Pipeline) deliverLocal(ctx context.Context, outRoot, staged, dest string) error {
	if loc, ok := paths.ParseLocation(dest); ok {
		if err := writeArchive(p.exec.FS(), outRoot, staged); err != nil {
			return err
		}
		if err := p.exec.Upload(ctx, userHost(loc), staged, loc.Path+"/"); err != nil {
			return errors.Wrapf(err, errors.ErrResource, "unable to upload artifact to %s", dest)
		}
		return nil
	}
	return writeArchive(p.exec.FS(), outRoot, filepath.Join(paths.ExpandHome(dest), filepath.Base(staged)))
}
