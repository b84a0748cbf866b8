package paths

import (
	"path"
	"strings"
)

// Remote paths always use forward slashes regardless of the local OS.

// ReleaseLayout is the on-disk layout of one project on a deploy host.
type ReleaseLayout struct {
	BaseDir string
	Project string
}

func (l ReleaseLayout) ProjectDir() string  { return path.Join(l.BaseDir, l.Project) }
func (l ReleaseLayout) ReleasesDir() string { return path.Join(l.ProjectDir(), "releases") }
func (l ReleaseLayout) DeploysDir() string  { return path.Join(l.ProjectDir(), "deploys") }
func (l ReleaseLayout) CurrentLink() string { return path.Join(l.ProjectDir(), "current") }

// Release returns the directory of one extracted release.
func (l ReleaseLayout) Release(id string) string {
	return path.Join(l.ReleasesDir(), id)
}

// Deploy returns the path of one deploy symlink.
func (l ReleaseLayout) Deploy(stamp string) string {
	return path.Join(l.DeploysDir(), stamp)
}

// StagedArtifact is where the upload phase places the archive.
func (l ReleaseLayout) StagedArtifact(artifact string) string {
	return path.Join(l.ReleasesDir(), ArtifactBase(artifact))
}

// BuildLayout is the working area for one project on the build host.
type BuildLayout struct {
	RemoteDir string
	Project   string
}

func (l BuildLayout) PackageDir() string { return path.Join(l.RemoteDir, l.Project, "package") }
func (l BuildLayout) CacheRoot() string  { return path.Join(l.PackageDir(), "cached") }

// CacheDir is the persistent clone for one remote.
func (l BuildLayout) CacheDir(remoteKey string) string {
	return path.Join(l.CacheRoot(), remoteKey)
}

// BuildDir is the per-build working tree name, relative to PackageDir.
func BuildDir(remoteKey, artifactID string) string {
	return remoteKey + "-" + artifactID
}

// ArtifactBase strips any location prefix and directory from an artifact reference.
func ArtifactBase(artifact string) string {
	if loc, ok := ParseLocation(artifact); ok {
		artifact = loc.Path
	}
	return path.Base(artifact)
}

// ReleaseID derives the release directory name from an artifact reference.
func ReleaseID(artifact string) string {
	return strings.TrimSuffix(ArtifactBase(artifact), ArchiveExt)
}
