package remote

import (
	"context"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/arthur-debert/rollout/pkg/errors"
)

// proxyCommand is the jump-host tunnel. It is a variable so tests can
// inspect the arguments without spawning ssh.
var proxyCommand = func(proxy, target string) *exec.Cmd {
	return exec.Command("ssh", proxyArgs(proxy, target)...)
}

// proxyArgs builds `ssh -W host:port [-p port] [user@]proxy`.
func proxyArgs(proxy, target string) []string {
	args := []string{"-W", target, "-o", "BatchMode=yes"}
	user, host := splitUser(proxy)
	if h, port, err := net.SplitHostPort(host); err == nil {
		host = h
		args = append(args, "-p", port)
	}
	if user != "" {
		host = user + "@" + host
	}
	return append(args, host)
}

// dialProxy starts an ssh subprocess that forwards its stdio to target.
// The process lives until the returned conn is closed.
func dialProxy(ctx context.Context, proxy, target string) (net.Conn, error) {
	// The subprocess outlives the dial timeout, so it is not bound to ctx.
	cmd := proxyCommand(proxy, target)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConnection, "proxy stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConnection, "proxy stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConnection, "could not start proxy through %s", proxy)
	}

	conn := &proxyConn{cmd: cmd, r: stdout, w: stdin, proxy: proxy, target: target}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

type proxyConn struct {
	cmd    *exec.Cmd
	r      io.ReadCloser
	w      io.WriteCloser
	proxy  string
	target string

	once sync.Once
}

func (c *proxyConn) Read(b []byte) (int, error)  { return c.r.Read(b) }
func (c *proxyConn) Write(b []byte) (int, error) { return c.w.Write(b) }

// Close terminates the tunnel process.
func (c *proxyConn) Close() error {
	c.once.Do(func() {
		_ = c.w.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
	})
	return nil
}

func (c *proxyConn) LocalAddr() net.Addr  { return pipeAddr(c.proxy) }
func (c *proxyConn) RemoteAddr() net.Addr { return pipeAddr(c.target) }

// Deadlines are not supported on a pipe; the handshake timeout is
// enforced by closing the conn instead.
func (c *proxyConn) SetDeadline(time.Time) error      { return nil }
func (c *proxyConn) SetReadDeadline(time.Time) error  { return nil }
func (c *proxyConn) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr string

func (a pipeAddr) Network() string { return "proxy" }
func (a pipeAddr) String() string  { return string(a) }
