package testutil

import (
	"context"
	"sync"

	"github.com/arthur-debert/rollout/pkg/remote"
)

// Fleet hands out one FakeSession per host, all sharing a journal.
type Fleet struct {
	Journal *Journal

	// OpenErr makes opening the named host fail.
	OpenErr map[string]error

	mu       sync.Mutex
	sessions map[string]*FakeSession
	opened   []remote.Options
}

// NewFleet returns an empty fleet.
func NewFleet() *Fleet {
	return &Fleet{
		Journal:  &Journal{},
		OpenErr:  make(map[string]error),
		sessions: make(map[string]*FakeSession),
	}
}

// Session returns the fake for host, creating it so it can be scripted
// before the code under test opens it.
func (f *Fleet) Session(host string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[host]
	if !ok {
		s = NewFakeSession(host, f.Journal)
		f.sessions[host] = s
	}
	return s
}

// Opener returns a remote.Opener backed by the fleet.
func (f *Fleet) Opener() remote.Opener {
	return func(_ context.Context, opts remote.Options) (remote.Session, error) {
		f.mu.Lock()
		f.opened = append(f.opened, opts)
		err := f.OpenErr[opts.Host]
		f.mu.Unlock()

		f.Journal.Record(Call{Host: opts.Host, Kind: KindOpen})
		if err != nil {
			return nil, err
		}
		s := f.Session(opts.Host)
		s.reopen()
		return s, nil
	}
}

// Opened returns the options of every open attempt, in order.
func (f *Fleet) Opened() []remote.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.Options(nil), f.opened...)
}
