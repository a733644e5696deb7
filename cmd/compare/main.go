// Package main provides the llm-compare command line client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"llm_compare/internal/app"
	"llm_compare/internal/config"
)

var (
	svc     *app.App
	noColor bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one command and always closes the app afterwards. cobra skips
// post-run hooks after a failed command, so history is flushed here.
func run(ctx context.Context, args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)

	if svc != nil {
		if closeErr := svc.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to close: %v\n", closeErr)
			err = errors.Join(err, closeErr)
		}
		svc = nil
	}
	return err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "llm-compare",
		Short: "Send one prompt to several LLM providers and compare the answers",
		Long: `llm-compare fans a prompt out to every provider that has credentials
and prints the answers side by side.

Credentials and model selections are stored according to KEY_STORE
(default: .api_keys and .current_models in SETTINGS_DIR).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app.ConfigureLogging(cfg)

			// only ask produces rounds worth keeping
			opts := app.Options{DisableHistory: cmd.Name() != "ask"}
			svc, err = app.New(cmd.Context(), cfg, opts)
			return err
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		askCmd(),
		modelsCmd(),
		selectCmd(),
		keysCmd(),
		providersCmd(),
	)
	return rootCmd
}
