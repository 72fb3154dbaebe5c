// Package main is the entry point for the cfclearance binary.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"clearance-chromedp/clearance"
	"clearance-chromedp/config"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cfclearance",
		Short: "Harvest a clearance cookie and user agent with a real browser",
		Long: `Opens every URL in Chrome, waits for the selector and prints the clearance
cookie together with the browser's user agent as one JSON object per line.

Example:
  cfclearance --url https://nowsecure.nl/#relax --selector p.lead --intercept`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			return run(cfg, stdout, stderr)
		},
	}

	flags := rootCmd.Flags()
	flags.StringP("config", "c", "", "Path to configuration file (YAML)")
	flags.StringSliceP("url", "u", nil, "Target URL, repeatable")
	flags.StringP("selector", "s", "", "CSS selector that marks the page as ready")
	flags.Bool("intercept", false, "Block resource types outside --allow")
	flags.StringSlice("allow", nil, "Resource types let through when intercepting")
	flags.Bool("headless", false, "Run Chrome headless")
	flags.String("remote", "", "DevTools URL of a running browser")
	flags.Duration("timeout", 0, "How long to wait for the selector")
	flags.String("cookie", "", "Name of the clearance cookie")
	flags.Int("concurrency", 0, "Sessions run at the same time")
	flags.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	return rootCmd
}

// buildConfig loads the config file, then lets explicitly set flags override it.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if flags.Changed("url") {
		cfg.URLs, _ = flags.GetStringSlice("url")
	}
	if flags.Changed("selector") {
		cfg.Selector, _ = flags.GetString("selector")
	}
	if flags.Changed("intercept") {
		cfg.Intercept, _ = flags.GetBool("intercept")
	}
	if flags.Changed("allow") {
		cfg.Allow, _ = flags.GetStringSlice("allow")
	}
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("remote") {
		cfg.RemoteURL, _ = flags.GetString("remote")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("cookie") {
		cfg.CookieName, _ = flags.GetString("cookie")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("no target url, use --url or urls in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, stdout, stderr io.Writer) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(level)

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	provider := &clearance.ChromeProvider{
		Headless:  cfg.Headless,
		RemoteURL: cfg.RemoteURL,
		UserAgent: cfg.UserAgent,
		Flags:     cfg.Flags,
		Logger:    logger,
	}
	h := clearance.New(provider,
		clearance.WithCookieName(cfg.CookieName),
		clearance.WithTimeout(cfg.Timeout),
		clearance.WithLogger(logger),
	)

	targets := make([]clearance.Target, 0, len(cfg.URLs))
	for _, u := range cfg.URLs {
		targets = append(targets, clearance.Target{URL: u, Selector: cfg.Selector, Policy: policy})
	}

	failed := 0
	enc := json.NewEncoder(stdout)
	for _, res := range h.HarvestAll(targets, cfg.Concurrency) {
		if res.Err != nil {
			failed++
			color.New(color.FgRed).Fprintf(stderr, "%s: %v\n", res.URL, res.Err)
			continue
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}
