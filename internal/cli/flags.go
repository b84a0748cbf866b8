package cli

import (
	"github.com/arthur-debert/rollout/pkg/config"
	"github.com/spf13/cobra"
)

// Flags here are named after config.FlagKeys. Their defaults are only
// shown in help: the config loader reads flags the user changed.

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.Bool("debug", false, MsgFlagDebug)
	flags.String("format", "auto", MsgFlagFormat)
	flags.String("identity-file", "", MsgFlagIdentityFile)
}

func addPackageFlags(cmd *cobra.Command) {
	defaults := config.Default().Package
	flags := cmd.Flags()
	flags.String("build-host", "", MsgFlagBuildHost)
	flags.String("build-user", "", MsgFlagBuildUser)
	flags.String("commit", defaults.Commit, MsgFlagCommit)
	flags.Bool("purge", false, MsgFlagPurge)
	flags.String("destination", defaults.Destination, MsgFlagDestination)
	flags.String("remote-dir", defaults.RemoteDir, MsgFlagRemoteDir)
	flags.String("mode", defaults.Mode, MsgFlagMode)
}

func addDeployFlags(cmd *cobra.Command) {
	defaults := config.Default().Deploy
	flags := cmd.Flags()
	flags.StringSlice("hosts", nil, MsgFlagHosts)
	flags.String("env", "", MsgFlagEnv)
	flags.String("base-dir", defaults.BaseDir, MsgFlagBaseDir)
	flags.Int("keep", defaults.Keep, MsgFlagKeep)
	flags.Int("parallel", defaults.Parallel, MsgFlagParallel)
}
