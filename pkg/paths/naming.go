package paths

import (
	"regexp"
	"strings"
	"time"
)

const (
	// ArchiveExt is the artifact file extension.
	ArchiveExt = ".tar.gz"

	// ShortSHALength is the length of revision ids embedded in artifact names.
	ShortSHALength = 7

	artifactStamp = "20060102150405"
	deployStamp   = "2006-01-02_150405"
)

// ArtifactID is `{YYYYMMDDHHMMSS}-{shortSha}` in UTC.
func ArtifactID(t time.Time, shortSHA string) string {
	return t.UTC().Format(artifactStamp) + "-" + shortSHA
}

// ArtifactName is the archive file name for a build.
func ArtifactName(t time.Time, shortSHA string) string {
	return ArtifactID(t, shortSHA) + ArchiveExt
}

// DeployStamp names a deploy symlink. Lexical order is chronological.
func DeployStamp(t time.Time) string {
	return t.UTC().Format(deployStamp)
}

var (
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
	unsafeRe   = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	locationRe = regexp.MustCompile(`^(?:([^@:/\s]+)@)?([^@:/\s]+):(\S+)$`)
)

// RemoteKey turns a remote URL into a directory-safe cache key so that
// clones of distinct remotes never collide.
func RemoteKey(remoteURL string) string {
	key := schemeRe.ReplaceAllString(strings.TrimSpace(remoteURL), "")
	key = strings.TrimSuffix(key, "/")
	key = unsafeRe.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// Location is a parsed `(user@)host:path` reference.
type Location struct {
	User string
	Host string
	Path string
}

// String renders the location back in scp syntax.
func (l Location) String() string {
	if l.User != "" {
		return l.User + "@" + l.Host + ":" + l.Path
	}
	return l.Host + ":" + l.Path
}

// ParseLocation reports whether s names a path on another host.
// Anything else is a local path.
func ParseLocation(s string) (Location, bool) {
	m := locationRe.FindStringSubmatch(s)
	if m == nil {
		return Location{}, false
	}
	return Location{User: m[1], Host: m[2], Path: m[3]}, true
}
