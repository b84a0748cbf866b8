package remote

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arthur-debert/rollout/pkg/errors"
)

// DefaultConnectTimeout bounds transport setup. Commands themselves are
// never time-bounded.
const DefaultConnectTimeout = 10 * time.Second

// Result is the outcome of one remote command.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Success reports a zero exit status.
func (r *Result) Success() bool {
	return r.ExitStatus == 0
}

// Session runs commands on, and moves files to and from, a single host.
type Session interface {
	Host() string

	// Execute runs cmd and reports its outcome. A non-zero exit is not an
	// error; transport failures are.
	Execute(ctx context.Context, cmd string) (*Result, error)

	// Exec runs cmd and returns its trimmed stdout, or an ErrCommand error
	// carrying both streams when it exits non-zero.
	Exec(ctx context.Context, cmd string) (string, error)

	// Upload copies a local file to the remote path. A remote path ending
	// in "/" or naming a directory receives the local base name.
	Upload(ctx context.Context, local, remote string) error

	// Download copies a remote file to the local path.
	Download(ctx context.Context, remote, local string) error

	// Close releases the transport. Calling it again is a no-op.
	Close() error
	IsClosed() bool
}

// Options describes how to reach a host.
type Options struct {
	Host  string // host or host:port
	User  string
	Proxy string // optional jump host, [user@]host[:port]

	Port                  int
	IdentityFile          string
	KnownHostsFile        string
	StrictHostKeyChecking bool
	ForwardAgent          bool
	ConnectTimeout        time.Duration
}

// Opener establishes a session. Open is the SSH implementation; tests
// substitute fakes.
type Opener func(ctx context.Context, opts Options) (Session, error)

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = 22
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.User == "" {
		o.User = os.Getenv("USER")
	}
	return o
}

// Address returns host:port, applying the default port when the host has none.
func (o Options) Address() string {
	return hostPort(o.Host, o.Port)
}

func hostPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return host
	}
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// splitUser separates an optional user@ prefix.
func splitUser(target string) (user, host string) {
	if i := strings.LastIndex(target, "@"); i >= 0 {
		return target[:i], target[i+1:]
	}
	return "", target
}

// NewCommandError builds the error returned for a failed command.
func NewCommandError(host, cmd string, res *Result) error {
	msg := fmt.Sprintf("command failed with exit status %d: %s", res.ExitStatus, cmd)
	if host != "" {
		msg = fmt.Sprintf("command failed on %s with exit status %d: %s", host, res.ExitStatus, cmd)
	}
	return errors.New(errors.ErrCommand, msg).
		WithDetail("host", host).
		WithDetail("command", cmd).
		WithDetail("exit_status", res.ExitStatus).
		WithDetail("stdout", strings.TrimSpace(res.Stdout)).
		WithDetail("stderr", strings.TrimSpace(res.Stderr))
}
