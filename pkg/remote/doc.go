// Package remote provides sessions to remote hosts: command execution with
// captured output and exit status, file transfer, and a host-keyed pool
// that opens sessions lazily and reuses them for the rest of a run.
//
// The SSH implementation authenticates through the local agent (and an
// optional identity file), forwards the agent to the remote side so hosts
// can reach git remotes or each other, and can tunnel through a jump host.
package remote
