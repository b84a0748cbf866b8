package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arthur-debert/rollout/pkg/errors"
)

func TestOptionsDefaults(t *testing.T) {
	t.Setenv("USER", "alice")

	opts := Options{Host: "web1"}.withDefaults()

	assert.Equal(t, 22, opts.Port)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, "alice", opts.User)
	assert.Equal(t, "web1:22", opts.Address())

	custom := Options{Host: "web1:2222", User: "deploy", ConnectTimeout: time.Second}.withDefaults()
	assert.Equal(t, "web1:2222", custom.Address())
	assert.Equal(t, "deploy", custom.User)
	assert.Equal(t, time.Second, custom.ConnectTimeout)
}

func TestNewCommandError(t *testing.T) {
	err := NewCommandError("web1", "tar -xzf x.tar.gz", &Result{
		Stdout:     "partial\n",
		Stderr:     "tar: Error is not recoverable\n",
		ExitStatus: 2,
	})

	assert.True(t, errors.IsErrorCode(err, errors.ErrCommand))
	assert.Contains(t, err.Error(), "web1")
	assert.Contains(t, err.Error(), "exit status 2")
	assert.Equal(t, "tar: Error is not recoverable", errors.DetailString(err, "stderr"))
	assert.Equal(t, "partial", errors.DetailString(err, "stdout"))
	assert.Equal(t, 2, errors.GetErrorDetails(err)["exit_status"])
}

func TestProxyArgs(t *testing.T) {
	tests := []struct {
		proxy string
		want  []string
	}{
		{"bastion", []string{"-W", "web1:22", "-o", "BatchMode=yes", "bastion"}},
		{"jump@bastion", []string{"-W", "web1:22", "-o", "BatchMode=yes", "jump@bastion"}},
		{"jump@bastion:2200", []string{"-W", "web1:22", "-o", "BatchMode=yes", "-p", "2200", "jump@bastion"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, proxyArgs(tt.proxy, "web1:22"), tt.proxy)
	}
}

func TestSFTPPath(t *testing.T) {
	assert.Equal(t, ".rollout/shop/package/a.tar.gz", sftpPath("~/.rollout/shop/package/a.tar.gz"))
	assert.Equal(t, ".", sftpPath("~"))
	assert.Equal(t, "/opt/shop/releases/", sftpPath("/opt/shop/releases/"))
}

func TestSplitUser(t *testing.T) {
	user, host := splitUser("deploy@web1")
	assert.Equal(t, "deploy", user)
	assert.Equal(t, "web1", host)

	user, host = splitUser("web1")
	assert.Empty(t, user)
	assert.Equal(t, "web1", host)
}

func TestResultSuccess(t *testing.T) {
	assert.True(t, (&Result{}).Success())
	assert.False(t, (&Result{ExitStatus: 1}).Success())
}
