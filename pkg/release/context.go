package release

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
)

// Step is one completed (host, phase) pair.
type Step struct {
	Host  string `json:"host" yaml:"host"`
	Phase string `json:"phase" yaml:"phase"`
}

// Context is what phase actions see. The engine hands each host its own
// copy; the progress stack and the remembered `current` targets are
// shared between copies.
type Context struct {
	Artifact   string
	Host       string
	ReleaseDir string
	DeployLink string
	Rollback   bool
	Keep       int
	User       string
	Layout     paths.ReleaseLayout

	exec   *execution.Context
	state  *runState
	logger zerolog.Logger
}

type runState struct {
	mu       sync.Mutex
	progress []Step
	previous map[string]string
}

func newRunState() *runState {
	return &runState{previous: make(map[string]string)}
}

// forHost returns a copy of d pointed at host.
func (d *Context) forHost(host string) *Context {
	c := *d
	c.Host = host
	c.logger = logging.ForHost("release", host)
	return &c
}

// Logger is scoped to the current host.
func (d *Context) Logger() zerolog.Logger { return d.logger }

// Progress returns the completed steps in completion order.
func (d *Context) Progress() []Step {
	d.state.mu.Lock()
	defer d.state.mu.Unlock()
	return append([]Step(nil), d.state.progress...)
}

func (d *Context) push(s Step) {
	d.state.mu.Lock()
	defer d.state.mu.Unlock()
	d.state.progress = append(d.state.progress, s)
}

// Exec runs cmd on the current host from the project directory.
func (d *Context) Exec(ctx context.Context, cmd string) (string, error) {
	return d.exec.RemoteExec(ctx, d.Host, d.Layout.ProjectDir(), cmd)
}

// ExecIn runs cmd on the current host from dir.
func (d *Context) ExecIn(ctx context.Context, dir, cmd string) (string, error) {
	return d.exec.RemoteExec(ctx, d.Host, dir, cmd)
}

// Upload copies a local file to the current host.
func (d *Context) Upload(ctx context.Context, local, remotePath string) error {
	return d.exec.Upload(ctx, d.Host, local, remotePath)
}

// EnsureDir creates dir on the current host once per run.
func (d *Context) EnsureDir(ctx context.Context, dir string) error {
	return d.exec.EnsureRemoteDir(ctx, d.Host, dir)
}

// StagedArtifact is where the artifact sits on the host before extraction.
func (d *Context) StagedArtifact() string {
	return d.Layout.StagedArtifact(d.Artifact)
}

// Previous returns the target `current` had on this host before the link
// phase switched it. ok is false when it was never read.
func (d *Context) Previous() (target string, ok bool) {
	d.state.mu.Lock()
	defer d.state.mu.Unlock()
	target, ok = d.state.previous[d.Host]
	return target, ok
}

// UpdateCurrent remembers where `current` points and then switches it to
// the deploy link in one command.
func (d *Context) UpdateCurrent(ctx context.Context) error {
	cur := execution.Quote(d.Layout.CurrentLink())
	prev, err := d.Exec(ctx, "if [ -L "+cur+" ]; then readlink -vn "+cur+"; fi")
	if err != nil {
		return err
	}

	d.state.mu.Lock()
	d.state.previous[d.Host] = prev
	d.state.mu.Unlock()

	_, err = d.Exec(ctx, "ln -sfn "+execution.Quote(d.DeployLink)+" "+cur)
	return err
}

// RevertCurrent points `current` back at its previous target, or removes
// it when there was none.
func (d *Context) RevertCurrent(ctx context.Context) error {
	prev, ok := d.Previous()
	if !ok {
		return nil
	}
	cur := execution.Quote(d.Layout.CurrentLink())
	if prev == "" {
		_, err := d.Exec(ctx, "rm -f "+cur)
		return err
	}
	_, err := d.Exec(ctx, "ln -sfn "+execution.Quote(prev)+" "+cur)
	return err
}

// Deploys lists deploy link names on the current host, unsorted.
func (d *Context) Deploys(ctx context.Context) ([]string, error) {
	return d.list(ctx, "deploys")
}

// Releases lists release directory names on the current host, unsorted.
func (d *Context) Releases(ctx context.Context) ([]string, error) {
	return d.list(ctx, "releases")
}

func (d *Context) list(ctx context.Context, dir string) ([]string, error) {
	out, err := d.Exec(ctx, "cd "+dir+" && ls -1")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// ActiveReleases returns the release names some deploy link points to.
func (d *Context) ActiveReleases(ctx context.Context) (map[string]bool, error) {
	deploys, err := d.Deploys(ctx)
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(deploys))
	for _, deploy := range deploys {
		name, err := d.Exec(ctx, "cd deploys && basename `readlink "+execution.Quote(deploy)+"`")
		if err != nil {
			return nil, err
		}
		active[name] = true
	}
	return active, nil
}

// CleanupDeploys removes all but the keep most recent deploy links and
// returns the removed names.
func (d *Context) CleanupDeploys(ctx context.Context, keep int) ([]string, error) {
	deploys, err := d.Deploys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(deploys)))
	if len(deploys) <= keep {
		return nil, nil
	}

	stale := deploys[keep:]
	d.logger.Info().Int("count", len(stale)).Int("keep", keep).Msg("Purging old deploys")
	for _, name := range stale {
		if _, err := d.Exec(ctx, "cd deploys && rm -f "+execution.Quote(name)); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

// CleanupReleases removes every release no deploy link points to and
// returns the removed names.
func (d *Context) CleanupReleases(ctx context.Context) ([]string, error) {
	active, err := d.ActiveReleases(ctx)
	if err != nil {
		return nil, err
	}
	releases, err := d.Releases(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, name := range releases {
		if active[name] {
			continue
		}
		if _, err := d.Exec(ctx, "cd releases && rm -rf "+execution.Quote(name)); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}
