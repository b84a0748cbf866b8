package cli

import (
	"fmt"
	"os"

	"github.com/arthur-debert/rollout/internal/version"
	"github.com/arthur-debert/rollout/pkg/dispatcher"
	"github.com/arthur-debert/rollout/pkg/paths"
	"github.com/arthur-debert/rollout/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPackageCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "package",
		Short:   MsgPackageShort,
		Long:    MsgPackageLong,
		Example: MsgPackageExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, deps, dispatcher.CommandPackage, "")
		},
	}
	addPackageFlags(cmd)
	return cmd
}

func newDeployCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deploy <artifact>",
		Short:   MsgDeployShort,
		Long:    MsgDeployLong,
		Example: MsgDeployExample,
		GroupID: "core",
		// A missing artifact is reported by the dispatcher
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var artifact string
			if len(args) > 0 {
				artifact = args[0]
			}
			return runAction(cmd, deps, dispatcher.CommandDeploy, artifact)
		},
	}
	addDeployFlags(cmd)
	return cmd
}

func newRollbackCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rollback",
		Short:   MsgRollbackShort,
		Long:    MsgRollbackLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, deps, dispatcher.CommandRollback, "")
		},
	}
	addDeployFlags(cmd)
	return cmd
}

func newConfigCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		Long:    MsgConfigLong,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			opts, err := dispatchOptions(cmd, deps, "")
			if err != nil {
				return err
			}
			prepared, err := dispatcher.Prepare(dispatcher.CommandConfig, opts)
			if err != nil {
				return err
			}

			loaded := prepared.App.Loaded
			if format == ui.FormatJSON || format == ui.FormatYAML {
				renderer, err := ui.NewRenderer(format, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return renderer.RenderResult(loaded.All())
			}

			out, err := loaded.TOML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", prepared.ScriptPath, out)
			return err
		},
	}
	addPackageFlags(cmd)
	addDeployFlags(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// runAction dispatches action and renders its result. A failed deploy
// still renders what was reverted before the error is returned.
func runAction(cmd *cobra.Command, deps Deps, action dispatcher.CommandType, artifact string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	renderer, err := ui.NewRenderer(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	opts, err := dispatchOptions(cmd, deps, artifact)
	if err != nil {
		return err
	}
	opts.Notify = ui.NewProgress(format, cmd.OutOrStdout())

	log.Info().Str("action", string(action)).Str("workDir", opts.WorkDir).Msg("Running action")
	res, err := dispatcher.Dispatch(cmd.Context(), action, opts)
	if err != nil {
		if res != nil && res.Deploy != nil && res.Deploy.Failed != nil {
			if rerr := renderer.RenderResult(res); rerr != nil {
				log.Warn().Err(rerr).Msg("Failed to render partial result")
			}
		}
		return err
	}
	return renderer.RenderResult(res)
}

func dispatchOptions(cmd *cobra.Command, deps Deps, artifact string) (dispatcher.Options, error) {
	workDir := deps.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return dispatcher.Options{}, err
		}
		workDir = wd
	}
	userConfig := deps.UserConfigPath
	if userConfig == "" {
		userConfig = paths.UserConfigPath()
	}

	return dispatcher.Options{
		WorkDir:        workDir,
		UserConfigPath: userConfig,
		Flags:          cmd.Flags(),
		Artifact:       artifact,
		FileSystem:     deps.FileSystem,
		Runner:         deps.Runner,
		Opener:         deps.Opener,
		Clock:          deps.Clock,
		Resolver:       deps.Resolver,
	}, nil
}

func outputFormat(cmd *cobra.Command) (ui.Format, error) {
	name, err := cmd.Flags().GetString("format")
	if err != nil {
		return ui.FormatAuto, err
	}
	return ui.ParseFormat(name)
}

// RenderError reports err on the root command's error output, in the
// format selected by --format.
func RenderError(rootCmd *cobra.Command, err error) {
	format := ui.FormatAuto
	if name, ferr := rootCmd.PersistentFlags().GetString("format"); ferr == nil {
		if parsed, perr := ui.ParseFormat(name); perr == nil {
			format = parsed
		}
	}
	renderer, rerr := ui.NewRenderer(format, rootCmd.ErrOrStderr())
	if rerr != nil {
		_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	_ = renderer.RenderError(err)
}
