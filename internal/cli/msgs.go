package cli

import (
	_ "embed"
	"strings"
)

// Short messages
const (
	MsgRootShort       = "Package a project and deploy it to a fleet of hosts"
	MsgPackageShort    = "Build a release artifact from a commit"
	MsgDeployShort     = "Deploy an artifact to every host"
	MsgRollbackShort   = "Switch every host back to the previous deploy"
	MsgConfigShort     = "Print the merged configuration"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Flag descriptions
	MsgFlagVerbose      = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDebug        = "Log every command run locally and on remote hosts"
	MsgFlagFormat       = "Output format: auto, term, text, json or yaml"
	MsgFlagIdentityFile = "Private key to authenticate SSH sessions with"
	MsgFlagBuildHost    = "Host to build the artifact on"
	MsgFlagBuildUser    = "User to log in to the build host as"
	MsgFlagCommit       = "Commit, branch or tag to package"
	MsgFlagPurge        = "Remove the build directory from the build host afterwards"
	MsgFlagDestination  = "Where to put the artifact: a directory or user@host:path"
	MsgFlagRemoteDir    = "Working directory on the build host"
	MsgFlagMode         = "Build mode: host or container"
	MsgFlagHosts        = "Hosts to deploy to, replacing the Rolloutfile's"
	MsgFlagEnv          = "Environment block of the Rolloutfile to apply"
	MsgFlagBaseDir      = "Directory holding the project on each host"
	MsgFlagKeep         = "Number of deploys to keep on each host, 0 keeps all"
	MsgFlagParallel     = "Number of hosts to run each phase on at once"

	// Version output
	MsgVersionFormat = "rollout version %s\n  commit: %s\n  built:  %s\n"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/package-long.txt
	msgPackageLongRaw string
	MsgPackageLong    = strings.TrimSpace(msgPackageLongRaw)

	//go:embed msgs/package-example.txt
	msgPackageExampleRaw string
	MsgPackageExample    = strings.TrimRight(msgPackageExampleRaw, "\n")

	//go:embed msgs/deploy-long.txt
	msgDeployLongRaw string
	MsgDeployLong    = strings.TrimSpace(msgDeployLongRaw)

	//go:embed msgs/deploy-example.txt
	msgDeployExampleRaw string
	MsgDeployExample    = strings.TrimRight(msgDeployExampleRaw, "\n")

	//go:embed msgs/rollback-long.txt
	msgRollbackLongRaw string
	MsgRollbackLong    = strings.TrimSpace(msgRollbackLongRaw)

	//go:embed msgs/config-long.txt
	msgConfigLongRaw string
	MsgConfigLong    = strings.TrimSpace(msgConfigLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw)
)
