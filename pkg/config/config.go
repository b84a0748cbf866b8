package config

import (
	"time"

	"github.com/arthur-debert/rollout/pkg/errors"
)

// Build modes.
const (
	ModeHost      = "host"
	ModeContainer = "container"
)

// Config is the complete, typed configuration for one invocation.
type Config struct {
	Project string `koanf:"project"`
	GitSrc  string `koanf:"git_src"`
	User    string `koanf:"user"`
	Debug   bool   `koanf:"debug"`
	Format  string `koanf:"format"`

	SSH     SSH     `koanf:"ssh"`
	Package Package `koanf:"package"`
	Deploy  Deploy  `koanf:"deploy"`
}

// SSH controls how sessions are established.
type SSH struct {
	IdentityFile          string        `koanf:"identity_file"`
	KnownHostsFile        string        `koanf:"known_hosts_file"`
	StrictHostKeyChecking bool          `koanf:"strict_host_key_checking"`
	ForwardAgent          bool          `koanf:"forward_agent"`
	ConnectTimeout        time.Duration `koanf:"connect_timeout"`
	Port                  int           `koanf:"port"`
}

// Package configures the build pipeline.
type Package struct {
	BuildHost   string      `koanf:"build_host"`
	BuildUser   string      `koanf:"build_user"`
	Commit      string      `koanf:"commit"`
	Purge       bool        `koanf:"purge"`
	Destination string      `koanf:"destination"`
	RemoteDir   string      `koanf:"remote_dir"`
	Exclude     []string    `koanf:"exclude"`
	Mode        string      `koanf:"mode"`
	Docker      string      `koanf:"docker"`
	Containers  []Container `koanf:"containers"`
}

// Container describes one containerized build step.
type Container struct {
	Name       string            `koanf:"name"`
	Dockerfile string            `koanf:"dockerfile"`
	Context    string            `koanf:"context"`
	Outputs    []string          `koanf:"outputs"`
	BuildArgs  map[string]string `koanf:"build_args"`
}

// Deploy configures the release engine.
type Deploy struct {
	Hosts     []string `koanf:"hosts"`
	Env       string   `koanf:"env"`
	BaseDir   string   `koanf:"base_dir"`
	DeployVia string   `koanf:"deploy_via"`
	Keep      int      `koanf:"keep"`
	Parallel  int      `koanf:"parallel"`
	Artifact  string   `koanf:"artifact"`
	Rollback  bool     `koanf:"rollback"`
}

// Validate checks the fields every action relies on.
func (c *Config) Validate() error {
	if c.Project == "" {
		return errors.New(errors.ErrConfiguration, "project name is not set").
			WithDetail("key", "project")
	}
	switch c.Package.Mode {
	case ModeHost, ModeContainer:
	default:
		return errors.Newf(errors.ErrConfiguration, "unknown build mode %q", c.Package.Mode).
			WithDetail("key", "package.mode")
	}
	if c.Deploy.Keep < 0 {
		return errors.Newf(errors.ErrConfiguration, "deploy.keep must not be negative, got %d", c.Deploy.Keep)
	}
	if c.Deploy.Parallel < 0 {
		return errors.Newf(errors.ErrConfiguration, "deploy.parallel must not be negative, got %d", c.Deploy.Parallel)
	}
	seen := make(map[string]bool, len(c.Package.Containers))
	for _, ct := range c.Package.Containers {
		if ct.Name == "" {
			return errors.New(errors.ErrConfiguration, "container build is missing a name")
		}
		if seen[ct.Name] {
			return errors.Newf(errors.ErrConfiguration, "container build %q declared twice", ct.Name)
		}
		seen[ct.Name] = true
	}
	return nil
}
