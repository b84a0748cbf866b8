package vcs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/vcs"
)

func initRepo(t *testing.T) (string, *git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, repo, hash.String()
}

func addRemote(t *testing.T, repo *git.Repository, name, url string) {
	t.Helper()
	_, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}})
	require.NoError(t, err)
}

func TestResolveShort(t *testing.T) {
	dir, _, full := initRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))

	repo, err := vcs.Open(filepath.Join(dir, "sub"))
	require.NoError(t, err)

	short, err := repo.ResolveShort("HEAD")
	require.NoError(t, err)
	assert.Equal(t, full[:7], short)

	short, err = repo.ResolveShort("")
	require.NoError(t, err)
	assert.Equal(t, full[:7], short)

	_, err = repo.ResolveShort("no-such-branch")
	assert.True(t, errors.IsErrorCode(err, errors.ErrRevision))
}

func TestOpenOutsideRepository(t *testing.T) {
	_, err := vcs.Open(t.TempDir())
	assert.True(t, errors.IsErrorCode(err, errors.ErrRevision))
}

func TestUpstreamURL(t *testing.T) {
	t.Run("tracked upstream wins", func(t *testing.T) {
		dir, repo, _ := initRepo(t)
		addRemote(t, repo, "origin", "git@github.com:me/fork.git")
		addRemote(t, repo, "upstream", "git@github.com:acme/shop.git")

		head, err := repo.Head()
		require.NoError(t, err)
		branch := head.Name().Short()
		cfg, err := repo.Config()
		require.NoError(t, err)
		cfg.Branches[branch] = &gitconfig.Branch{Name: branch, Remote: "upstream", Merge: head.Name()}
		require.NoError(t, repo.SetConfig(cfg))

		r, err := vcs.Open(dir)
		require.NoError(t, err)

		url, err := r.UpstreamURL("HEAD", "https://example.org/other.git")
		require.NoError(t, err)
		assert.Equal(t, "git@github.com:acme/shop.git", url)

		url, err = r.UpstreamURL(branch, "")
		require.NoError(t, err)
		assert.Equal(t, "git@github.com:acme/shop.git", url)
	})

	t.Run("git_src when nothing is tracked", func(t *testing.T) {
		dir, repo, _ := initRepo(t)
		addRemote(t, repo, "origin", "git@github.com:me/fork.git")

		r, err := vcs.Open(dir)
		require.NoError(t, err)

		url, err := r.UpstreamURL("HEAD", "https://example.org/shop.git")
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/shop.git", url)
	})

	t.Run("origin as last resort", func(t *testing.T) {
		dir, repo, _ := initRepo(t)
		addRemote(t, repo, "origin", "git@github.com:me/fork.git")

		r, err := vcs.Open(dir)
		require.NoError(t, err)

		url, err := r.UpstreamURL("HEAD", "")
		require.NoError(t, err)
		assert.Equal(t, "git@github.com:me/fork.git", url)
	})

	t.Run("no remotes at all", func(t *testing.T) {
		dir, _, _ := initRepo(t)
		r, err := vcs.Open(dir)
		require.NoError(t, err)

		_, err = r.UpstreamURL("HEAD", "")
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfiguration))
	})
}
