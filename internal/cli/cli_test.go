package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/filesystem"
	"github.com/arthur-debert/rollout/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rolloutfile = `
project = "shop"
git_src = "git@github.com:acme/shop.git"

package {
  build_host  = "builder"
  destination = "/tmp/artifacts"
  run         = ["make"]
}

deploy {
  hosts = ["web1", "web2"]
}
`

type resolver struct{}

func (resolver) Root() (string, error)                      { return "/repo", nil }
func (resolver) ResolveShort(string) (string, error)        { return "abcd123", nil }
func (resolver) UpstreamURL(string, string) (string, error) { return "git@github.com:acme/shop.git", nil }

type harness struct {
	fleet  *testutil.Fleet
	deps   Deps
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll("/repo", 0755))
	require.NoError(t, fsys.WriteFile("/repo/Rolloutfile.hcl", []byte(rolloutfile), 0644))

	fleet := testutil.NewFleet()
	return &harness{
		fleet: fleet,
		deps: Deps{
			WorkDir:        "/repo",
			UserConfigPath: "/nonexistent/rollout/config.toml",
			FileSystem:     fsys,
			Runner:         &testutil.FakeRunner{},
			Opener:         fleet.Opener(),
			Clock:          testutil.FixedClock(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)),
			Resolver:       resolver{},
		},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

// run executes args and, like main, renders a returned error.
func (h *harness) run(args ...string) error {
	rootCmd := NewRootCmdWithDeps(h.deps)
	rootCmd.SetOut(h.stdout)
	rootCmd.SetErr(h.stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		RenderError(rootCmd, err)
	}
	return err
}

func TestRootHelpListsCommands(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("--help"))

	for _, want := range []string{"COMMANDS:", "package", "deploy", "rollback", "MISC:", "config", "version", "help topics"} {
		assert.Contains(t, h.stdout.String(), want)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("version"))
	assert.Contains(t, h.stdout.String(), "rollout version dev")
}

func TestDeploy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("deploy", "/tmp/20261018120000-abcd123.tar.gz", "--format", "text"))

	out := h.stdout.String()
	assert.Contains(t, out, `[web1] Executing "upload"...`)
	assert.Contains(t, out, `[web2] Executing "link"...`)
	assert.Contains(t, out, "Successfully deployed /tmp/20261018120000-abcd123.tar.gz to web1, web2.")
	assert.Contains(t, out, "release: /opt/shop/releases/20261018120000-abcd123")
	assert.Empty(t, h.stderr.String())
}

func TestDeployHostsFlag(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("deploy", "/tmp/a.tar.gz", "--hosts", "canary1", "--base-dir", "/srv"))

	assert.Contains(t, h.stdout.String(), "to canary1.")
	assert.True(t, h.fleet.Journal.Contains("/srv/shop/releases"))
	assert.False(t, h.fleet.Journal.Contains("/opt/shop"))
}

func TestDeployFailureReportsReverts(t *testing.T) {
	h := newHarness(t)
	h.fleet.Session("web2").Fail("tar -xzf")

	err := h.run("deploy", "/tmp/20261018120000-abcd123.tar.gz")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDeployFailed))

	out := h.stdout.String()
	assert.Contains(t, out, `[web2] Reverting "upload"...`)
	assert.Contains(t, out, `Deployment failed at "extract" on web2.`)
	assert.Contains(t, out, "Reverted:")
	assert.Contains(t, h.stderr.String(), "Error: [DEPLOY_FAILED]")
	assert.Contains(t, h.stderr.String(), "command: ")
}

func TestDeployNeedsArtifact(t *testing.T) {
	h := newHarness(t)
	err := h.run("deploy")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	assert.Contains(t, h.stderr.String(), "you must specify the artifact to be deployed")
	assert.Empty(t, h.fleet.Opened())
}

func TestRollbackWithoutPreviousDeploy(t *testing.T) {
	h := newHarness(t)
	h.fleet.Session("web1").Reply("cd deploys && ls -1", "2026-10-18_110000")

	err := h.run("rollback")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNoRollback))
}

func TestPackageJSON(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("package", "--format", "json"))

	var res struct {
		Command string `json:"command"`
		Package struct {
			Name   string `json:"name"`
			Commit string `json:"commit"`
		} `json:"package"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &res))
	assert.Equal(t, "package", res.Command)
	assert.Equal(t, "20261018120000-abcd123.tar.gz", res.Package.Name)
	assert.True(t, h.fleet.Journal.Contains("make"))
}

func TestConfigCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("config", "--keep", "4"))

	out := h.stdout.String()
	assert.Contains(t, out, "# /repo/Rolloutfile.hcl")
	assert.Regexp(t, `project = ['"]shop['"]`, out)
	assert.Contains(t, out, "keep = 4")
	assert.Empty(t, h.fleet.Opened())
}

func TestConfigCommandYAML(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("config", "--format", "yaml"))
	assert.Contains(t, h.stdout.String(), "project: shop")
}

func TestUnknownFormat(t *testing.T) {
	h := newHarness(t)
	err := h.run("deploy", "/tmp/a.tar.gz", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
	assert.Empty(t, h.fleet.Opened())
}

func TestCompletion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("completion", "bash"))
	assert.Contains(t, h.stdout.String(), "rollout")
}

func TestHelpTopics(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("help", "topics"))

	out := h.stdout.String()
	for _, want := range []string{"rolloutfile", "phases", "layout", "environments", "--keep", "--parallel", "--format"} {
		assert.Contains(t, out, want)
	}
}
