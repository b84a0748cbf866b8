package types

import (
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

// FS is the local filesystem as seen by the build pipeline and the
// directory guard.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	MkdirAll(path string, perm fs.FileMode) error
	Remove(name string) error
	RemoveAll(path string) error

	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)

	Walk(root string, fn filepath.WalkFunc) error
}

// Clock returns the current time. Release and build naming depend on it.
type Clock func() time.Time
