// Package dirguard makes sure directories exist before anything is written
// into them. Each directory is checked at most once per run: locally keyed
// by path, remotely keyed by host and path.
package dirguard

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/paths"
	"github.com/arthur-debert/rollout/pkg/remote"
	"github.com/arthur-debert/rollout/pkg/types"
)

// MkdirCommand is the remote create-if-missing command for dir.
func MkdirCommand(dir string) string {
	q := paths.Quote(dir)
	return fmt.Sprintf("if [ ! -d %s ] ; then mkdir -p %s ; fi", q, q)
}

type key struct {
	host string
	path string
}

type entry struct {
	mu   sync.Mutex
	done bool
}

// Guard memoizes directory creation for the lifetime of one run.
type Guard struct {
	fs     types.FS
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[key]*entry
}

// New returns a guard that creates local directories through fsys.
func New(fsys types.FS) *Guard {
	return &Guard{
		fs:      fsys,
		logger:  logging.GetLogger("dirguard"),
		entries: make(map[key]*entry),
	}
}

func (g *Guard) entry(k key) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[k]
	if !ok {
		e = &entry{}
		g.entries[k] = e
	}
	return e
}

// ensure runs create once per key. Failures are not memoized.
func (g *Guard) ensure(k key, create func() error) error {
	e := g.entry(k)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	if err := create(); err != nil {
		return err
	}
	e.done = true
	return nil
}

// EnsureLocal creates dir on the local filesystem if it is missing.
func (g *Guard) EnsureLocal(dir string) error {
	return g.ensure(key{path: dir}, func() error {
		g.logger.Debug().Str("path", dir).Msg("Ensuring local directory")
		if err := g.fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrResource, "unable to create local directory %q", dir).
				WithDetail("path", dir)
		}
		return nil
	})
}

// EnsureRemote creates dir on the session's host if it is missing.
func (g *Guard) EnsureRemote(ctx context.Context, s remote.Session, dir string) error {
	return g.ensure(key{host: s.Host(), path: dir}, func() error {
		g.logger.Debug().Str("host", s.Host()).Str("path", dir).Msg("Ensuring remote directory")
		if _, err := s.Exec(ctx, MkdirCommand(dir)); err != nil {
			return errors.Wrapf(err, errors.ErrResource, "unable to create remote directory %q on %s", dir, s.Host()).
				WithDetail("host", s.Host()).
				WithDetail("path", dir)
		}
		return nil
	})
}
