// Package testutil provides fakes for rollout's external edges: remote
// sessions that answer commands from scripted rules and record every call
// in a shared journal, and a local command runner that does the same.
//
// Tests assert on the journal to check ordering across hosts, which is
// what most release engine properties are about.
package testutil
