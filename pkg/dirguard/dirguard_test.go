package dirguard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/rollout/pkg/dirguard"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/filesystem"
	"github.com/arthur-debert/rollout/pkg/testutil"
)

func TestEnsureRemoteIsMemoizedPerHostAndPath(t *testing.T) {
	journal := &testutil.Journal{}
	web1 := testutil.NewFakeSession("web1", journal)
	web2 := testutil.NewFakeSession("web2", journal)
	guard := dirguard.New(filesystem.NewMemory())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, guard.EnsureRemote(ctx, web1, "/opt/shop/releases"))
		require.NoError(t, guard.EnsureRemote(ctx, web2, "/opt/shop/releases"))
		require.NoError(t, guard.EnsureRemote(ctx, web1, "/opt/shop/deploys"))
	}

	assert.Equal(t, []string{
		dirguard.MkdirCommand("/opt/shop/releases"),
		dirguard.MkdirCommand("/opt/shop/deploys"),
	}, journal.Commands("web1"))
	assert.Equal(t, []string{dirguard.MkdirCommand("/opt/shop/releases")}, journal.Commands("web2"))
}

func TestEnsureRemoteFailure(t *testing.T) {
	s := testutil.NewFakeSession("web1", nil).OnOnce("mkdir", testutil.Response{ExitStatus: 1, Stderr: "Permission denied"})
	guard := dirguard.New(filesystem.NewMemory())
	ctx := context.Background()

	err := guard.EnsureRemote(ctx, s, "/opt/shop")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResource))
	assert.Equal(t, "web1", errors.DetailString(err, "host"))

	// failures are not remembered, so a later attempt retries
	require.NoError(t, guard.EnsureRemote(ctx, s, "/opt/shop"))
	assert.Len(t, s.Journal.Commands("web1"), 2)
}

func TestEnsureLocal(t *testing.T) {
	fsys := filesystem.NewMemory()
	guard := dirguard.New(fsys)

	require.NoError(t, guard.EnsureLocal("/tmp/artifacts/nested"))
	info, err := fsys.Stat("/tmp/artifacts/nested")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// once ensured, the directory is not checked again even if removed
	require.NoError(t, fsys.RemoveAll("/tmp/artifacts"))
	require.NoError(t, guard.EnsureLocal("/tmp/artifacts/nested"))
	_, err = fsys.Stat("/tmp/artifacts/nested")
	assert.Error(t, err)
}

func TestMkdirCommand(t *testing.T) {
	tests := map[string]string{
		"~/.rollout/shop":  "if [ ! -d ~/.rollout/shop ] ; then mkdir -p ~/.rollout/shop ; fi",
		"/srv/my shop/rel": "if [ ! -d '/srv/my shop/rel' ] ; then mkdir -p '/srv/my shop/rel' ; fi",
		"~/my apps":        "if [ ! -d ~/'my apps' ] ; then mkdir -p ~/'my apps' ; fi",
	}
	for dir, want := range tests {
		assert.Equal(t, want, dirguard.MkdirCommand(dir), dir)
	}
}
