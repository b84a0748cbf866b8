package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/arthur-debert/rollout/pkg/remote"
)

// Response is what a fake returns for a matching command.
type Response struct {
	Stdout     string
	Stderr     string
	ExitStatus int
	Err        error
}

// Rule answers commands containing Match. The first matching rule wins;
// commands matching no rule succeed with empty output.
type Rule struct {
	Match    string
	Response Response
	// Times limits how often the rule applies; zero means always.
	Times int
	used  int
}

type rules struct {
	mu    sync.Mutex
	rules []*Rule
}

func (r *rules) add(match string, resp Response, times int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &Rule{Match: match, Response: resp, Times: times})
}

func (r *rules) answer(cmd string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.Times > 0 && rule.used >= rule.Times {
			continue
		}
		if strings.Contains(cmd, rule.Match) {
			rule.used++
			return rule.Response
		}
	}
	return Response{}
}

// FakeSession is a scriptable remote.Session.
type FakeSession struct {
	HostName string
	Journal  *Journal

	// UploadFunc and DownloadFunc override the default no-op transfers.
	UploadFunc   func(local, remote string) error
	DownloadFunc func(remote, local string) error

	rules rules

	mu     sync.Mutex
	closed bool
}

var _ remote.Session = (*FakeSession)(nil)

// NewFakeSession returns a session for host recording into j (or a fresh journal).
func NewFakeSession(host string, j *Journal) *FakeSession {
	if j == nil {
		j = &Journal{}
	}
	return &FakeSession{HostName: host, Journal: j}
}

// On scripts a response for commands containing match.
func (f *FakeSession) On(match string, resp Response) *FakeSession {
	f.rules.add(match, resp, 0)
	return f
}

// OnOnce scripts a response used only the first time match is seen.
func (f *FakeSession) OnOnce(match string, resp Response) *FakeSession {
	f.rules.add(match, resp, 1)
	return f
}

// Fail makes commands containing match exit 1.
func (f *FakeSession) Fail(match string) *FakeSession {
	return f.On(match, Response{ExitStatus: 1, Stderr: "simulated failure: " + match})
}

// Reply makes commands containing match print stdout.
func (f *FakeSession) Reply(match, stdout string) *FakeSession {
	return f.On(match, Response{Stdout: stdout})
}

func (f *FakeSession) Host() string { return f.HostName }

func (f *FakeSession) Execute(_ context.Context, cmd string) (*remote.Result, error) {
	f.Journal.Record(Call{Host: f.HostName, Kind: KindExec, Command: cmd})
	resp := f.rules.answer(cmd)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &remote.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitStatus: resp.ExitStatus}, nil
}

func (f *FakeSession) Exec(ctx context.Context, cmd string) (string, error) {
	res, err := f.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", remote.NewCommandError(f.HostName, cmd, res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (f *FakeSession) Upload(_ context.Context, local, remotePath string) error {
	f.Journal.Record(Call{Host: f.HostName, Kind: KindUpload, Local: local, Remote: remotePath})
	if f.UploadFunc != nil {
		return f.UploadFunc(local, remotePath)
	}
	return nil
}

func (f *FakeSession) Download(_ context.Context, remotePath, local string) error {
	f.Journal.Record(Call{Host: f.HostName, Kind: KindDownload, Local: local, Remote: remotePath})
	if f.DownloadFunc != nil {
		return f.DownloadFunc(remotePath, local)
	}
	return nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.Journal.Record(Call{Host: f.HostName, Kind: KindClose})
	}
	return nil
}

func (f *FakeSession) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeSession) reopen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = false
}
