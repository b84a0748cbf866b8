package remote

import (
	"context"
	"sync"

	"github.com/arthur-debert/rollout/pkg/errors"
)

// Pool keeps at most one open session per host for the lifetime of a run.
// Hosts connect independently: a slow dial to one host does not hold up
// another.
type Pool struct {
	open Opener
	base Options

	mu    sync.Mutex
	slots map[string]*slot
	order []string
}

type slot struct {
	mu      sync.Mutex
	session Session
}

// NewPool returns a pool that opens sessions with open, using base for
// every option except the host. A nil open means Open.
func NewPool(open Opener, base Options) *Pool {
	if open == nil {
		open = Open
	}
	return &Pool{
		open:  open,
		base:  base,
		slots: make(map[string]*slot),
	}
}

func (p *Pool) slot(target string) *slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	sl, ok := p.slots[target]
	if !ok {
		sl = &slot{}
		p.slots[target] = sl
	}
	return sl
}

// Get returns the session for target ([user@]host[:port]), opening it on
// first use. A session that was closed is reopened.
func (p *Pool) Get(ctx context.Context, target string) (Session, error) {
	if target == "" {
		return nil, errors.New(errors.ErrInvalidInput, "empty host")
	}

	sl := p.slot(target)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.session != nil && !sl.session.IsClosed() {
		return sl.session, nil
	}

	opts := p.base
	user, host := splitUser(target)
	opts.Host = host
	if user != "" {
		opts.User = user
	}

	s, err := p.open(ctx, opts)
	if err != nil {
		return nil, err
	}
	if sl.session == nil {
		p.mu.Lock()
		p.order = append(p.order, target)
		p.mu.Unlock()
	}
	sl.session = s
	return s, nil
}

// Opened lists the hosts that have had a session, in first-use order.
func (p *Pool) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Close closes the session for one host, if any.
func (p *Pool) Close(target string) error {
	p.mu.Lock()
	sl, ok := p.slots[target]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	sl.mu.Lock()
	s := sl.session
	sl.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

// CloseAll closes every session, collecting errors.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	slots := make([]*slot, 0, len(p.order))
	for _, host := range p.order {
		slots = append(slots, p.slots[host])
	}
	p.mu.Unlock()

	sessions := make([]Session, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		sessions = append(sessions, sl.session)
		sl.mu.Unlock()
	}

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
