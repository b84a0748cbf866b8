// Package execution is the shared contract the build pipeline and the
// release engine run on: local commands, remote commands scoped to a
// directory, file transfers, memoized directory creation, and a session
// scope that closes everything it opened.
//
// Every failing command, local or remote, surfaces as an ErrCommand error
// whose details carry stdout and stderr.
package execution
