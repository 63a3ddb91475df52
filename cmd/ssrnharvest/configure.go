package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-ssrn/config"
)

// loadConfig layers the run configuration: defaults, then SSRN_*
// environment variables, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if value, ok := config.EnvString("SSRN_CODE"); ok {
		cfg.JELCode = value
	}
	if value, ok := config.EnvString("SSRN_OUTPUT_DIR"); ok {
		cfg.OutputDir = value
	}
	if value, ok := config.EnvString("SSRN_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok := config.EnvString("SSRN_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok, err := config.EnvInt("SSRN_MAX_PAGES"); err != nil {
		return nil, err
	} else if ok {
		cfg.MaxPages = value
	}
	if value, ok, err := config.EnvDuration("SSRN_TIMEOUT"); err != nil {
		return nil, err
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok, err := config.EnvDuration("SSRN_PAGE_DELAY"); err != nil {
		return nil, err
	} else if ok {
		cfg.PageDelay = value
	}

	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	cfg.Verbose, _ = cmd.Flags().GetBool("verbose")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
