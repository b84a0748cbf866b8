package execution

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/dirguard"
	"github.com/arthur-debert/rollout/pkg/filesystem"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/remote"
	"github.com/arthur-debert/rollout/pkg/types"
)

// Options wires a Context. Zero values select the real implementations.
type Options struct {
	Config *config.Config
	Runner Runner
	Opener remote.Opener
	FS     types.FS
	Clock  func() time.Time

	// Proxy routes every session through a jump host.
	Proxy string

	Out io.Writer
	Err io.Writer
}

// Context carries everything one action needs to touch the world.
type Context struct {
	cfg    *config.Config
	runner Runner
	fs     types.FS
	clock  func() time.Time
	pool   *remote.Pool
	guard  *dirguard.Guard
	out    io.Writer
	errOut io.Writer
	logger zerolog.Logger
}

// New builds a Context from opts.
func New(opts Options) *Context {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Runner == nil {
		opts.Runner = NewLocalRunner()
	}
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	return &Context{
		cfg:    opts.Config,
		runner: opts.Runner,
		fs:     opts.FS,
		clock:  opts.Clock,
		pool:   remote.NewPool(opts.Opener, SessionOptions(opts.Config, opts.Proxy)),
		guard:  dirguard.New(opts.FS),
		out:    opts.Out,
		errOut: opts.Err,
		logger: logging.GetLogger("execution"),
	}
}

// SessionOptions derives transport settings from the config.
func SessionOptions(cfg *config.Config, proxy string) remote.Options {
	return remote.Options{
		User:                  cfg.User,
		Proxy:                 proxy,
		Port:                  cfg.SSH.Port,
		IdentityFile:          cfg.SSH.IdentityFile,
		KnownHostsFile:        cfg.SSH.KnownHostsFile,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		ForwardAgent:          cfg.SSH.ForwardAgent,
		ConnectTimeout:        cfg.SSH.ConnectTimeout,
	}
}

func (c *Context) Config() *config.Config { return c.cfg }
func (c *Context) FS() types.FS           { return c.fs }
func (c *Context) Now() time.Time         { return c.clock() }
func (c *Context) Out() io.Writer         { return c.out }
func (c *Context) Err() io.Writer         { return c.errOut }

// Exec runs a local command in the working directory.
func (c *Context) Exec(ctx context.Context, cmd string) (string, error) {
	return c.runner.Run(ctx, "", cmd)
}

// ExecIn runs a local command in dir.
func (c *Context) ExecIn(ctx context.Context, dir, cmd string) (string, error) {
	return c.runner.Run(ctx, dir, cmd)
}

// Session returns the pooled session for host, opening it on first use.
func (c *Context) Session(ctx context.Context, host string) (remote.Session, error) {
	return c.pool.Get(ctx, host)
}

// OpenedHosts lists hosts a session was opened to during this run.
func (c *Context) OpenedHosts() []string {
	return c.pool.Opened()
}

// RemoteExec runs cmd on host, inside dir when dir is not empty.
func (c *Context) RemoteExec(ctx context.Context, host, dir, cmd string) (string, error) {
	s, err := c.Session(ctx, host)
	if err != nil {
		return "", err
	}
	return s.Exec(ctx, InDir(dir, cmd))
}

// InDir prefixes cmd with a cd into dir.
func InDir(dir, cmd string) string {
	if dir == "" {
		return cmd
	}
	return "cd " + Quote(dir) + " && " + cmd
}

// Upload copies a local file to host.
func (c *Context) Upload(ctx context.Context, host, local, remotePath string) error {
	s, err := c.Session(ctx, host)
	if err != nil {
		return err
	}
	return s.Upload(ctx, local, remotePath)
}

// Download copies a file from host.
func (c *Context) Download(ctx context.Context, host, remotePath, local string) error {
	s, err := c.Session(ctx, host)
	if err != nil {
		return err
	}
	return s.Download(ctx, remotePath, local)
}

// EnsureLocalDir creates dir locally once per run.
func (c *Context) EnsureLocalDir(dir string) error {
	return c.guard.EnsureLocal(dir)
}

// EnsureRemoteDir creates dir on host once per run.
func (c *Context) EnsureRemoteDir(ctx context.Context, host, dir string) error {
	s, err := c.Session(ctx, host)
	if err != nil {
		return err
	}
	return c.guard.EnsureRemote(ctx, s, dir)
}

// Close releases every session opened through this context.
func (c *Context) Close() error {
	c.logger.Debug().Strs("hosts", c.pool.Opened()).Msg("Closing sessions")
	return c.pool.CloseAll()
}
