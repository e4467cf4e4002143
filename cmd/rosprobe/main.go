package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/rosprobe/internal/exporter"
	"github.com/ethpandaops/rosprobe/internal/version"
)

var (
	cfgFile    string
	logLevel   string
	listenAddr string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rosprobe",
		Short: "MikroTik RouterOS Prometheus probe exporter",
		Long: `rosprobe polls MikroTik devices over the RouterOS API on demand and
streams their state as Prometheus metrics. Point a scrape job at
/probe?target=<host[:port]>, optionally with module=full.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().StringVar(
		&cfgFile, "config", "",
		"path to config file (optional)",
	)
	cmd.Flags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)
	cmd.Flags().StringVar(
		&listenAddr, "listen", "",
		"override listen address",
	)

	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func loadConfig() (*exporter.Config, error) {
	cfg := exporter.DefaultConfig()

	if cfgFile != "" {
		loaded, err := exporter.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	// CLI flags override config file.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	e, err := exporter.New(log, cfg)
	if err != nil {
		return fmt.Errorf("creating exporter: %w", err)
	}

	log.Info("Starting rosprobe")

	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("starting exporter: %w", err)
	}

	<-ctx.Done()

	log.Info("Shutting down rosprobe")

	if err := e.Stop(); err != nil {
		log.WithError(err).Error("Error during shutdown")
		return fmt.Errorf("stopping exporter: %w", err)
	}

	log.Info("Shutdown complete")

	return nil
}
