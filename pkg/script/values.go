package script

import (
	"github.com/arthur-debert/rollout/pkg/errors"
)

type values map[string]interface{}

func setString(v values, key string, s *string) {
	if s != nil {
		v[key] = *s
	}
}

func setBool(v values, key string, b *bool) {
	if b != nil {
		v[key] = *b
	}
}

func setInt(v values, key string, i *int) {
	if i != nil {
		v[key] = *i
	}
}

func setList(v values, key string, l []string) {
	if l != nil {
		v[key] = l
	}
}

// configValues flattens everything the file sets into dotted config keys.
func (s *Script) configValues() (map[string]interface{}, error) {
	v := values{}
	f := s.file

	setString(v, "project", f.Project)
	setString(v, "git_src", f.GitSrc)
	setString(v, "user", f.User)

	if ssh := f.SSH; ssh != nil {
		setString(v, "ssh.identity_file", ssh.IdentityFile)
		setString(v, "ssh.known_hosts_file", ssh.KnownHostsFile)
		setBool(v, "ssh.strict_host_key_checking", ssh.StrictHostKeyChecking)
		setBool(v, "ssh.forward_agent", ssh.ForwardAgent)
		setString(v, "ssh.connect_timeout", ssh.ConnectTimeout)
		setInt(v, "ssh.port", ssh.Port)
	}

	if pkg := f.Package; pkg != nil {
		setString(v, "package.build_host", pkg.BuildHost)
		setString(v, "package.build_user", pkg.BuildUser)
		setString(v, "package.commit", pkg.Commit)
		setBool(v, "package.purge", pkg.Purge)
		setString(v, "package.destination", pkg.Destination)
		setString(v, "package.remote_dir", pkg.RemoteDir)
		setList(v, "package.exclude", pkg.Exclude)
		setString(v, "package.mode", pkg.Mode)
		setString(v, "package.docker", pkg.Docker)

		if len(pkg.Containers) > 0 {
			containers := make([]interface{}, 0, len(pkg.Containers))
			for _, c := range pkg.Containers {
				ct := values{"name": c.Name}
				setString(ct, "dockerfile", c.Dockerfile)
				setString(ct, "context", c.Context)
				setList(ct, "outputs", c.Outputs)
				if c.BuildArgs != nil {
					ct["build_args"] = c.BuildArgs
				}
				containers = append(containers, map[string]interface{}(ct))
			}
			v["package.containers"] = containers
		}
	}

	if dep := f.Deploy; dep != nil {
		setList(v, "deploy.hosts", dep.Hosts)
		setString(v, "deploy.base_dir", dep.BaseDir)
		setString(v, "deploy.deploy_via", dep.DeployVia)
		setInt(v, "deploy.keep", dep.Keep)
		setInt(v, "deploy.parallel", dep.Parallel)
	}

	if err := s.applyEnvironment(v); err != nil {
		return nil, err
	}
	return v, nil
}

// applyEnvironment layers the block matching the selected environment over
// the deploy block.
func (s *Script) applyEnvironment(v values) error {
	if len(s.file.Environments) == 0 || s.Vars.Env == "" {
		return nil
	}
	for _, e := range s.file.Environments {
		if e.Name != s.Vars.Env {
			continue
		}
		setList(v, "deploy.hosts", e.Hosts)
		setString(v, "deploy.deploy_via", e.DeployVia)
		setString(v, "deploy.base_dir", e.BaseDir)
		return nil
	}

	return errors.Newf(errors.ErrConfiguration, "unknown environment %q", s.Vars.Env).
		WithDetail("environments", s.Environments())
}

// Environments lists the declared environment names.
func (s *Script) Environments() []string {
	names := make([]string, 0, len(s.file.Environments))
	for _, e := range s.file.Environments {
		names = append(names, e.Name)
	}
	return names
}
