// Package vcs resolves revisions and upstream remotes in the local
// repository the Rolloutfile lives in.
package vcs

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/paths"
)

// DefaultRemote is used when the revision has no tracked upstream and no
// git_src is configured.
const DefaultRemote = "origin"

// Repo is a local git repository.
type Repo struct {
	repo *git.Repository
	dir  string
}

// Open finds the repository containing dir.
func Open(dir string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRevision, "%s is not inside a git repository", dir)
	}
	return &Repo{repo: r, dir: dir}, nil
}

// Root returns the working tree root.
func (r *Repo) Root() (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrRevision, "repository has no working tree")
	}
	return wt.Filesystem.Root(), nil
}

// ResolveShort turns rev into a short commit id.
func (r *Repo) ResolveShort(rev string) (string, error) {
	full, err := r.Resolve(rev)
	if err != nil {
		return "", err
	}
	return full[:paths.ShortSHALength], nil
}

// Resolve turns rev into a full commit id.
func (r *Repo) Resolve(rev string) (string, error) {
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrRevision, "unable to resolve revision %q", rev).
			WithDetail("revision", rev)
	}
	return hash.String(), nil
}

// UpstreamURL picks the remote the build host should fetch rev from:
// the upstream tracked by rev's branch (HEAD means the current branch),
// else gitSrc when set, else the origin remote.
func (r *Repo) UpstreamURL(rev, gitSrc string) (string, error) {
	if name := r.trackedRemote(rev); name != "" {
		if url, err := r.remoteURL(name); err == nil {
			return url, nil
		}
	}
	if gitSrc != "" {
		return gitSrc, nil
	}
	url, err := r.remoteURL(DefaultRemote)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrConfiguration,
			"no upstream remote: set git_src or add an origin remote")
	}
	return url, nil
}

func (r *Repo) trackedRemote(rev string) string {
	branch := rev
	if rev == "" || rev == "HEAD" {
		head, err := r.repo.Head()
		if err != nil || !head.Name().IsBranch() {
			return ""
		}
		branch = head.Name().Short()
	}

	cfg, err := r.repo.Config()
	if err != nil {
		return ""
	}
	b, ok := cfg.Branches[branch]
	if !ok || b.Remote == "" || b.Remote == "." {
		return ""
	}
	return b.Remote
}

func (r *Repo) remoteURL(name string) (string, error) {
	rem, err := r.repo.Remote(name)
	if err != nil {
		return "", err
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", errors.Newf(errors.ErrConfiguration, "remote %q has no URL", name)
	}
	return urls[0], nil
}
