package testutil

import (
	"strings"
	"sync"
)

// Call kinds recorded in a Journal.
const (
	KindExec     = "exec"
	KindUpload   = "upload"
	KindDownload = "download"
	KindOpen     = "open"
	KindClose    = "close"
)

// Call is one recorded interaction.
type Call struct {
	Host    string
	Kind    string
	Command string
	Local   string
	Remote  string
}

// Journal records calls from any number of fakes in global order.
type Journal struct {
	mu    sync.Mutex
	calls []Call
}

// Record appends a call.
func (j *Journal) Record(c Call) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
}

// Calls returns a copy of everything recorded so far.
func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Call(nil), j.calls...)
}

// Commands lists executed commands, optionally filtered to one host.
func (j *Journal) Commands(host string) []string {
	var out []string
	for _, c := range j.Calls() {
		if c.Kind == KindExec && (host == "" || c.Host == host) {
			out = append(out, c.Command)
		}
	}
	return out
}

// Matching lists "host: command" for commands containing substr.
func (j *Journal) Matching(substr string) []string {
	var out []string
	for _, c := range j.Calls() {
		if c.Kind == KindExec && strings.Contains(c.Command, substr) {
			out = append(out, c.Host+": "+c.Command)
		}
	}
	return out
}

// Kinds lists calls of one kind.
func (j *Journal) Kinds(kind string) []Call {
	var out []Call
	for _, c := range j.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether any executed command contains substr.
func (j *Journal) Contains(substr string) bool {
	return len(j.Matching(substr)) > 0
}
