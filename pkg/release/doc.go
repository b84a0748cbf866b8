// Package release rolls an artifact out across deploy hosts.
//
// A run walks an ordered list of phases and, within each phase, the host
// list. Every completed (host, phase) pair is pushed on a progress stack.
// When a phase fails the engine stops and unwinds that stack in reverse,
// calling each phase's fail action. Releases are never modified in place:
// each deploy is a timestamped symlink to an immutable release directory
// and `current` is switched to it with a single `ln -sfn`.
package release
