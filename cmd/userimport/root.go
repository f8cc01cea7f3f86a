package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/userimport/internal/backend"
	"github.com/JonMunkholm/userimport/internal/config"
	"github.com/JonMunkholm/userimport/internal/logging"
)

type globalOptions struct {
	local   bool
	backend string
	rules   string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "userimport",
		Short:         "Import user records from CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.local, "local", false, "Use the in-process backend (overrides USE_LOCAL_BACKEND)")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "User service address (overrides API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.rules, "rules", "", "Validation rules: strict or lenient (overrides VALIDATION_RULES)")

	cmd.AddCommand(newRunCmd(&opts), newListCmd(&opts), newGetCmd(&opts))
	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.local {
		cfg.Backend.UseLocal = true
	}
	if opts.backend != "" {
		cfg.Backend.APIBaseURL = opts.backend
		cfg.Backend.UseLocal = false
	}
	if opts.rules != "" {
		cfg.Upload.ValidationRules = opts.rules
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func openGateway(opts *globalOptions) (*config.Config, backend.Gateway, func() error, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	g, closeFn, err := backend.New(cfg, slog.Default())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, g, closeFn, nil
}
