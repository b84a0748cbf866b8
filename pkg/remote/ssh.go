package remote

import (
	"bytes"
	"context"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
)

type sshSession struct {
	host         string
	client       *ssh.Client
	tunnel       net.Conn
	agentConn    net.Conn
	forwardAgent bool
	logger       zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Open connects to opts.Host over SSH. Transport setup, including the
// handshake, must finish within opts.ConnectTimeout.
func Open(ctx context.Context, opts Options) (Session, error) {
	opts = opts.withDefaults()
	logger := logging.ForHost("remote", opts.Host)

	s := &sshSession{
		host:         opts.Host,
		forwardAgent: opts.ForwardAgent,
		logger:       logger,
	}

	auth, agentClient, err := s.authMethods(opts)
	if err != nil {
		return nil, err
	}

	hostKeys, err := hostKeyCallback(opts)
	if err != nil {
		s.closeAgent()
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         opts.ConnectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	addr := opts.Address()
	conn, err := dial(dialCtx, addr, opts)
	if err != nil {
		s.closeAgent()
		return nil, connectionError(err, opts.Host, "could not reach host")
	}

	client, err := handshake(dialCtx, conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		s.closeAgent()
		return nil, connectionError(err, opts.Host, "ssh handshake failed")
	}
	s.client = client
	if _, ok := conn.(*proxyConn); ok {
		s.tunnel = conn
	}

	if opts.ForwardAgent && agentClient != nil {
		if err := agent.ForwardToAgent(client, agentClient); err != nil {
			logger.Warn().Err(err).Msg("Agent forwarding unavailable")
			s.forwardAgent = false
		}
	} else {
		s.forwardAgent = false
	}

	logger.Debug().Str("user", opts.User).Str("proxy", opts.Proxy).Msg("Session opened")
	return s, nil
}

func connectionError(err error, host, msg string) error {
	return errors.Wrapf(err, errors.ErrConnection, "%s %s", msg, host).WithDetail("host", host)
}

func dial(ctx context.Context, addr string, opts Options) (net.Conn, error) {
	if opts.Proxy != "" {
		return dialProxy(ctx, opts.Proxy, addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// handshake runs the SSH handshake, abandoning it when ctx expires.
func handshake(ctx context.Context, conn net.Conn, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	type result struct {
		client *ssh.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{client: ssh.NewClient(c, chans, reqs)}
	}()

	select {
	case r := <-done:
		return r.client, r.err
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	}
}

func (s *sshSession) authMethods(opts Options) ([]ssh.AuthMethod, agent.ExtendedAgent, error) {
	var methods []ssh.AuthMethod
	var agentClient agent.ExtendedAgent

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Could not reach ssh-agent")
		} else {
			s.agentConn = conn
			agentClient = agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	if opts.IdentityFile != "" {
		path := paths.ExpandHome(opts.IdentityFile)
		key, err := os.ReadFile(path)
		if err != nil {
			s.closeAgent()
			return nil, nil, errors.Wrapf(err, errors.ErrConnection, "could not read identity file %s", path)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			s.closeAgent()
			return nil, nil, errors.Wrapf(err, errors.ErrConnection, "could not parse identity file %s", path)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(methods) == 0 {
		return nil, nil, errors.New(errors.ErrConnection,
			"no SSH credentials: start ssh-agent or set ssh.identity_file").WithDetail("host", opts.Host)
	}
	return methods, agentClient, nil
}

func hostKeyCallback(opts Options) (ssh.HostKeyCallback, error) {
	if !opts.StrictHostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := paths.ExpandHome(opts.KnownHostsFile)
	if path == "" {
		path = paths.ExpandHome("~/.ssh/known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConnection, "could not load known hosts from %s", path)
	}
	return cb, nil
}

func (s *sshSession) Host() string { return s.host }

func (s *sshSession) Execute(ctx context.Context, cmd string) (*Result, error) {
	if s.IsClosed() {
		return nil, errors.Newf(errors.ErrConnection, "session to %s is closed", s.host)
	}
	logging.LogCommand(s.logger, s.host, cmd)

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, connectionError(err, s.host, "could not open channel to")
	}
	defer sess.Close()

	if s.forwardAgent {
		if err := agent.RequestAgentForwarding(sess); err != nil {
			s.logger.Debug().Err(err).Msg("Agent forwarding request refused")
		}
	}

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGTERM)
		_ = sess.Close()
		return nil, errors.Wrapf(ctx.Err(), errors.ErrCommand, "command interrupted on %s", s.host)
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr != nil {
		exitErr, ok := runErr.(*ssh.ExitError)
		if !ok {
			return nil, connectionError(runErr, s.host, "command did not complete on")
		}
		res.ExitStatus = exitErr.ExitStatus()
	}
	return res, nil
}

func (s *sshSession) Exec(ctx context.Context, cmd string) (string, error) {
	res, err := s.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		logging.LogCommandFailure(s.logger, s.host, cmd, res.ExitStatus, strings.TrimSpace(res.Stdout), strings.TrimSpace(res.Stderr))
		return "", NewCommandError(s.host, cmd, res)
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		s.logger.Trace().Str("stdout", out).Msg("Command output")
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (s *sshSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sshSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.client != nil {
		if err := s.client.Close(); err != nil && !isClosedConn(err) {
			errs = append(errs, err)
		}
	}
	if s.tunnel != nil {
		if err := s.tunnel.Close(); err != nil && !isClosedConn(err) {
			errs = append(errs, err)
		}
	}
	s.closeAgent()
	s.logger.Debug().Msg("Session closed")

	if err := errors.Join(errs...); err != nil {
		return errors.Wrapf(err, errors.ErrConnection, "closing session to %s", s.host)
	}
	return nil
}

func (s *sshSession) closeAgent() {
	if s.agentConn != nil {
		_ = s.agentConn.Close()
		s.agentConn = nil
	}
}

func isClosedConn(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
