// Command cedulabot runs the Telegram identification lookup bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/cedulabot/core/bootstrap"
	"github.com/m3rciful/cedulabot/core/buildinfo"
	corecmd "github.com/m3rciful/cedulabot/core/cmd"
	coreconfig "github.com/m3rciful/cedulabot/core/config"
	coretelegram "github.com/m3rciful/cedulabot/core/telegram"
	"github.com/m3rciful/cedulabot/internal/app"
)

// Process exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitConflict = 3
)

func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:]))
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return exitCode(err)
}

// exitCode maps a run error to the process status. A conflict with another
// getUpdates consumer gets its own code so supervisors can tell it apart.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, coretelegram.ErrTransportConflict):
		return exitConflict
	default:
		return exitFailure
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot and block until it stops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(configPath)
		},
	}

	root := &cobra.Command{
		Use:           "cedulabot",
		Short:         "cedulabot: Telegram bot for identification number lookups",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand starts the bot.
		RunE: runCmd.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $CONFIG_PATH)")

	root.AddCommand(runCmd, newCheckCmd(&configPath), newVersionCmd())
	return root
}

func runBot(configPath string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath: configPath,
		NewApp: func(ctx context.Context, cfg *coreconfig.Config, infra *bootstrap.Result) (corecmd.TelegramApp, error) {
			return app.New(ctx, cfg, infra)
		},
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

// newCheckCmd validates configuration without contacting Telegram.
func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Same sources as run: .env first, then file and environment.
			if err := corecmd.LoadEnvFiles(nil); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			path := *configPath
			if path == "" {
				path = os.Getenv("CONFIG_PATH")
			}
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_mode: %s\n", cfg.Telegram.RunMode)
			fmt.Fprintf(out, "lookup_timeout_seconds: %d\n", cfg.Lookup.TimeoutSeconds)
			fmt.Fprintf(out, "idle_timeout_seconds: %d\n", cfg.Conversation.IdleTimeoutSeconds)
			fmt.Fprintf(out, "restricted: %t (%d ids)\n", cfg.Access.Restricted(), len(cfg.Access.AllowedIDs))
			fmt.Fprintf(out, "database: %t\n", cfg.Database.Enabled())
			fmt.Fprintf(out, "metrics: %q\n", cfg.Metrics.Listen)
			return nil
		},
	}
}
