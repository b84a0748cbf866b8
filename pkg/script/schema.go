package script

// Optional attributes are pointers (or nil slices) so that only values
// the Rolloutfile actually sets reach the config layer.

type fileSchema struct {
	Project *string `hcl:"project,optional"`
	GitSrc  *string `hcl:"git_src,optional"`
	User    *string `hcl:"user,optional"`

	SSH          *sshBlock           `hcl:"ssh,block"`
	Package      *packageBlock       `hcl:"package,block"`
	Deploy       *deployBlock        `hcl:"deploy,block"`
	Environments []*environmentBlock `hcl:"environment,block"`
}

type sshBlock struct {
	IdentityFile          *string `hcl:"identity_file,optional"`
	KnownHostsFile        *string `hcl:"known_hosts_file,optional"`
	StrictHostKeyChecking *bool   `hcl:"strict_host_key_checking,optional"`
	ForwardAgent          *bool   `hcl:"forward_agent,optional"`
	ConnectTimeout        *string `hcl:"connect_timeout,optional"`
	Port                  *int    `hcl:"port,optional"`
}

type packageBlock struct {
	BuildHost   *string  `hcl:"build_host,optional"`
	BuildUser   *string  `hcl:"build_user,optional"`
	Commit      *string  `hcl:"commit,optional"`
	Purge       *bool    `hcl:"purge,optional"`
	Destination *string  `hcl:"destination,optional"`
	RemoteDir   *string  `hcl:"remote_dir,optional"`
	Exclude     []string `hcl:"exclude,optional"`
	Mode        *string  `hcl:"mode,optional"`
	Docker      *string  `hcl:"docker,optional"`

	// Run lists build hook commands, executed in the build directory.
	Run []string `hcl:"run,optional"`

	Containers []*containerBlock `hcl:"container,block"`
}

type containerBlock struct {
	Name       string            `hcl:"name,label"`
	Dockerfile *string           `hcl:"dockerfile,optional"`
	Context    *string           `hcl:"context,optional"`
	Outputs    []string          `hcl:"outputs,optional"`
	BuildArgs  map[string]string `hcl:"build_args,optional"`
}

type deployBlock struct {
	Hosts     []string `hcl:"hosts,optional"`
	BaseDir   *string  `hcl:"base_dir,optional"`
	DeployVia *string  `hcl:"deploy_via,optional"`
	Keep      *int     `hcl:"keep,optional"`
	Parallel  *int     `hcl:"parallel,optional"`

	// Phases replaces the default phase order.
	Phases []string `hcl:"phases,optional"`
	// Run lists deploy hook commands, executed in the release directory.
	Run []string `hcl:"run,optional"`

	Phase []*phaseBlock `hcl:"phase,block"`
}

type phaseBlock struct {
	Name        string   `hcl:"name,label"`
	Run         []string `hcl:"run,optional"`
	Fail        []string `hcl:"fail,optional"`
	Hosts       []string `hcl:"hosts,optional"`
	ExceptHosts []string `hcl:"except_hosts,optional"`
	Limit       *int     `hcl:"limit,optional"`
}

type environmentBlock struct {
	Name      string   `hcl:"name,label"`
	Hosts     []string `hcl:"hosts,optional"`
	DeployVia *string  `hcl:"deploy_via,optional"`
	BaseDir   *string  `hcl:"base_dir,optional"`
}
