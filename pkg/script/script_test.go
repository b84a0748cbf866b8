package script_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/rollout/pkg/app"
	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/filesystem"
	"github.com/arthur-debert/rollout/pkg/release"
	"github.com/arthur-debert/rollout/pkg/script"
	"github.com/arthur-debert/rollout/pkg/testutil"
	"github.com/arthur-debert/rollout/pkg/types"
)

const rolloutfile = `
project = "shop"
git_src = "git@github.com:acme/shop.git"
user    = "deploy"

ssh {
  connect_timeout = "30s"
  port            = 2222
}

package {
  build_host = "builder.internal"
  exclude    = ["*.log", "tmp"]
  run        = ["npm ci", "npm run build"]

  container "web" {
    dockerfile = "build/Dockerfile"
    outputs    = ["dist"]
    build_args = { NODE_ENV = "production" }
  }
}

environment "production" {
  hosts      = ["web1", "web2"]
  deploy_via = "bastion"
}

environment "staging" {
  hosts = ["stage1"]
}

deploy {
  hosts    = ["localhost"]
  base_dir = "/srv"
  keep     = env == "production" ? 10 : 2
  run      = ["./bin/restart"]
  phases   = ["upload", "extract", "migrate", "link", "hooks", "cleanup"]

  phase "migrate" {
    run   = ["./bin/migrate up"]
    fail  = ["./bin/migrate down"]
    hosts = ["web1"]
    limit = 1
  }
}
`

func writeScript(t *testing.T, body string) types.FS {
	t.Helper()
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll("/repo", 0755))
	require.NoError(t, fsys.WriteFile("/repo/Rolloutfile", []byte(body), 0644))
	return fsys
}

func finalize(t *testing.T, body string, vars script.Vars) *app.App {
	t.Helper()
	s, err := script.Load(writeScript(t, body), "/repo/Rolloutfile", vars)
	require.NoError(t, err)

	b := app.NewBuilder()
	require.NoError(t, s.Apply(b))
	a, err := b.Finalize(config.Sources{})
	require.NoError(t, err)
	return a
}

func TestApplyRegistersConfig(t *testing.T) {
	a := finalize(t, rolloutfile, script.Vars{Env: "production"})
	cfg := a.Config

	assert.Equal(t, "shop", cfg.Project)
	assert.Equal(t, "git@github.com:acme/shop.git", cfg.GitSrc)
	assert.Equal(t, "deploy", cfg.User)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, "30s", cfg.SSH.ConnectTimeout.String())
	assert.Equal(t, "builder.internal", cfg.Package.BuildHost)
	assert.Equal(t, []string{"*.log", "tmp"}, cfg.Package.Exclude)
	assert.Equal(t, "/srv", cfg.Deploy.BaseDir)

	require.Len(t, cfg.Package.Containers, 1)
	ct := cfg.Package.Containers[0]
	assert.Equal(t, "web", ct.Name)
	assert.Equal(t, "build/Dockerfile", ct.Dockerfile)
	assert.Equal(t, []string{"dist"}, ct.Outputs)
	assert.Equal(t, map[string]string{"NODE_ENV": "production"}, ct.BuildArgs)

	assert.Len(t, a.PackageHooks, 2)
}

func TestEnvironmentSelection(t *testing.T) {
	tests := []struct {
		env       string
		hosts     []string
		deployVia string
		keep      int
	}{
		{"production", []string{"web1", "web2"}, "bastion", 10},
		{"staging", []string{"stage1"}, "", 2},
		{"", []string{"localhost"}, "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := finalize(t, rolloutfile, script.Vars{Env: tt.env}).Config
			assert.Equal(t, tt.hosts, cfg.Deploy.Hosts)
			assert.Equal(t, tt.deployVia, cfg.Deploy.DeployVia)
			assert.Equal(t, tt.keep, cfg.Deploy.Keep)
		})
	}
}

func TestUnknownEnvironment(t *testing.T) {
	s, err := script.Load(writeScript(t, rolloutfile), "/repo/Rolloutfile", script.Vars{Env: "qa"})
	require.NoError(t, err)

	err = s.Apply(app.NewBuilder())
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfiguration))
	assert.Equal(t, []string{"production", "staging"}, s.Environments())
}

func TestPhasesAndOrder(t *testing.T) {
	a := finalize(t, rolloutfile, script.Vars{Env: "production"})

	assert.Equal(t, []string{"upload", "extract", "migrate", "link", "hooks", "cleanup"}, a.Order)
	migrate, err := a.Phases.Get("migrate")
	require.NoError(t, err)
	assert.Equal(t, 1, migrate.Limit)
	assert.NotNil(t, migrate.Run)
	assert.NotNil(t, migrate.Fail)
	assert.True(t, a.Phases.Has(release.PhaseHooks))
}

func TestScriptPhasesRunInReleaseDir(t *testing.T) {
	a := finalize(t, rolloutfile, script.Vars{Env: "production"})
	a.Config.Deploy.Artifact = "/tmp/20240101000000-abcd123.tar.gz"

	fleet := testutil.NewFleet()
	ec := execution.New(execution.Options{
		Config: a.Config,
		Opener: fleet.Opener(),
		Runner: &testutil.FakeRunner{},
		FS:     filesystem.NewMemory(),
	})
	_, err := release.New(release.Options{Exec: ec, Phases: a.Phases, Order: a.Order}).Run(context.Background())
	require.NoError(t, err)

	rel := "/srv/shop/releases/20240101000000-abcd123"
	assert.Equal(t, []string{"web1: cd " + rel + " && ./bin/migrate up"}, fleet.Journal.Matching("migrate"))
	assert.Equal(t, []string{
		"web1: cd " + rel + " && ./bin/restart",
		"web2: cd " + rel + " && ./bin/restart",
	}, fleet.Journal.Matching("restart"))
}

func TestCommitVariable(t *testing.T) {
	body := `
project = "shop"
package {
  destination = format("/artifacts/%s", commit)
}
`
	cfg := finalize(t, body, script.Vars{Commit: "v1.2.0"}).Config
	assert.Equal(t, "/artifacts/v1.2.0", cfg.Package.Destination)
	assert.Equal(t, "HEAD", cfg.Package.Commit, "unset values keep their defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := script.Load(filesystem.NewMemory(), "/repo/Rolloutfile", script.Vars{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfiguration))

	_, err = script.Load(writeScript(t, "project = \n"), "/repo/Rolloutfile", script.Vars{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
	assert.Equal(t, "/repo/Rolloutfile", errors.DetailString(err, "path"))

	_, err = script.Load(writeScript(t, "unknown_attr = 1\n"), "/repo/Rolloutfile", script.Vars{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
}
