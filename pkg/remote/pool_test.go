package remote

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/rollout/pkg/errors"
)

type stubSession struct {
	host   string
	user   string
	closed int
}

func (s *stubSession) Host() string { return s.host }
func (s *stubSession) Execute(context.Context, string) (*Result, error) {
	return &Result{}, nil
}
func (s *stubSession) Exec(context.Context, string) (string, error)   { return "", nil }
func (s *stubSession) Upload(context.Context, string, string) error   { return nil }
func (s *stubSession) Download(context.Context, string, string) error { return nil }
func (s *stubSession) Close() error                                   { s.closed++; return nil }
func (s *stubSession) IsClosed() bool                                 { return s.closed > 0 }

func recordingOpener(opened *[]Options) Opener {
	return func(_ context.Context, opts Options) (Session, error) {
		*opened = append(*opened, opts)
		return &stubSession{host: opts.Host, user: opts.User}, nil
	}
}

func TestPoolReusesSessions(t *testing.T) {
	var opened []Options
	pool := NewPool(recordingOpener(&opened), Options{User: "deploy", Proxy: "bastion"})
	ctx := context.Background()

	a, err := pool.Get(ctx, "web1")
	require.NoError(t, err)
	b, err := pool.Get(ctx, "web1")
	require.NoError(t, err)
	_, err = pool.Get(ctx, "web2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	require.Len(t, opened, 2)
	assert.Equal(t, "deploy", opened[0].User)
	assert.Equal(t, "bastion", opened[0].Proxy)
	assert.Equal(t, []string{"web1", "web2"}, pool.Opened())
}

func TestPoolUserOverride(t *testing.T) {
	var opened []Options
	pool := NewPool(recordingOpener(&opened), Options{User: "deploy"})

	s, err := pool.Get(context.Background(), "builder@ci.internal")
	require.NoError(t, err)

	assert.Equal(t, "ci.internal", s.Host())
	assert.Equal(t, "builder", opened[0].User)
}

func TestPoolReopensClosedSession(t *testing.T) {
	var opened []Options
	pool := NewPool(recordingOpener(&opened), Options{})
	ctx := context.Background()

	first, err := pool.Get(ctx, "web1")
	require.NoError(t, err)
	require.NoError(t, pool.Close("web1"))

	second, err := pool.Get(ctx, "web1")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Len(t, opened, 2)
	assert.Equal(t, []string{"web1"}, pool.Opened())
}

func TestPoolCloseAll(t *testing.T) {
	var opened []Options
	pool := NewPool(recordingOpener(&opened), Options{})
	ctx := context.Background()

	s1, _ := pool.Get(ctx, "web1")
	s2, _ := pool.Get(ctx, "web2")

	require.NoError(t, pool.CloseAll())
	require.NoError(t, pool.CloseAll())

	assert.True(t, s1.IsClosed())
	assert.True(t, s2.IsClosed())
	assert.NoError(t, pool.Close("never-opened"))
}

func TestPoolOpenFailure(t *testing.T) {
	boom := errors.New(errors.ErrConnection, "unreachable")
	pool := NewPool(func(context.Context, Options) (Session, error) { return nil, boom }, Options{})

	_, err := pool.Get(context.Background(), "web1")
	assert.True(t, stderrors.Is(err, boom))
	assert.Empty(t, pool.Opened())

	_, err = pool.Get(context.Background(), "")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestPoolOpensHostsIndependently(t *testing.T) {
	web1Dialing := make(chan struct{})
	web2Opened := make(chan struct{})
	open := func(_ context.Context, opts Options) (Session, error) {
		if opts.Host == "web2" {
			close(web2Opened)
			return &stubSession{host: opts.Host}, nil
		}
		close(web1Dialing)
		select {
		case <-web2Opened:
			return &stubSession{host: opts.Host}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New(errors.ErrConnection, "web1 dial held up web2")
		}
	}
	pool := NewPool(open, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := pool.Get(context.Background(), "web1")
		done <- err
	}()
	<-web1Dialing

	_, err := pool.Get(context.Background(), "web2")
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.ElementsMatch(t, []string{"web1", "web2"}, pool.Opened())
}
