// Package paths centralizes every path and name rollout computes: where the
// Rolloutfile and user config live locally, the release layout on deploy
// hosts, the build layout on the build host, artifact naming and the
// `(user@)host:path` location syntax.
package paths
