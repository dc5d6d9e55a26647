// Command salescomposer serves and operates the sales composition pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"salescomposer/internal/app"
	"salescomposer/internal/config"
	"salescomposer/internal/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "salescomposer",
		Short:         "Compose shed insulation sales talking points with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml (overrides CONFIG_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "write JSON logs to stderr")

	root.AddCommand(
		newServeCmd(opts),
		newComposeCmd(opts),
		newFeedbackCmd(opts),
		newOverrideCmd(opts),
		newLogCmd(opts),
		newKBCmd(),
	)
	return root
}

// build loads configuration and wires the application. Callers must Close it.
func (o *rootOptions) build() (*app.App, error) {
	if o.configPath != "" {
		os.Setenv("CONFIG_PATH", o.configPath)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSONConsole: o.jsonLogs})
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}
