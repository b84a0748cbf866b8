package cli

import (
	"embed"
	"io/fs"
	"time"

	"github.com/arthur-debert/rollout/internal/version"
	"github.com/arthur-debert/rollout/pkg/build"
	"github.com/arthur-debert/rollout/pkg/cobrax/topics"
	"github.com/arthur-debert/rollout/pkg/execution"
	"github.com/arthur-debert/rollout/pkg/logging"
	"github.com/arthur-debert/rollout/pkg/remote"
	"github.com/arthur-debert/rollout/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed topics
var topicFiles embed.FS

// Deps are the process-level collaborators of the commands. Zero values
// select the real implementations.
type Deps struct {
	// WorkDir is where the Rolloutfile search starts. Defaults to the
	// current directory.
	WorkDir string
	// UserConfigPath defaults to config.toml in rollout's XDG config dir.
	UserConfigPath string

	FileSystem types.FS
	Runner     execution.Runner
	Opener     remote.Opener
	Clock      func() time.Time
	Resolver   build.Resolver
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(Deps{})
}

// NewRootCmdWithDeps creates the root command with injected collaborators.
func NewRootCmdWithDeps(deps Deps) *cobra.Command {
	initTemplateFormatting()

	var verbosity int

	rootCmd := &cobra.Command{
		Use:     "rollout",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := verbosity
			if debug, _ := cmd.Flags().GetBool("debug"); debug && level < 2 {
				level = 2
			}
			logging.SetupLogger(level)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	addGlobalFlags(rootCmd)

	// The help command comes from topics
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newPackageCmd(deps))
	rootCmd.AddCommand(newDeployCmd(deps))
	rootCmd.AddCommand(newRollbackCmd(deps))
	rootCmd.AddCommand(newConfigCmd(deps))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	sub, err := fs.Sub(topicFiles, "topics")
	if err == nil {
		opts := topics.Options{Renderer: topics.Markdown(0)}
		if _, err := topics.InitializeWithOptions(rootCmd, sub, opts); err != nil {
			log.Warn().Err(err).Msg("Help topics unavailable")
		}
	}

	return rootCmd
}
