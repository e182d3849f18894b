// Kai daemon - serves voice commands over HTTP and WebSocket
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kaiassist/kai/internal/app"
	"github.com/kaiassist/kai/internal/config"
	"github.com/kaiassist/kai/internal/logging"
)

var (
	configPath string
	dataDir    string
	host       string
	port       int
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "kai",
		Short:        "Kai - voice assistant backend",
		SilenceUsage: true,
		RunE:         runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kai, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer kai.Close()

	if err := kai.Start(ctx); err != nil {
		return err
	}

	server, err := kai.NewServer()
	if err != nil {
		return err
	}

	logging.WithFields(map[string]interface{}{
		"data_dir": cfg.DataDir,
		"backend":  cfg.Storage.Backend,
		"mode":     string(kai.State.Mode()),
	}).Info("kai started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Reminders are not re-armed across restarts
	if pending := kai.Scheduler.Pending(); pending > 0 {
		logging.Warn("%d pending reminders dropped", pending)
	}
	return nil
}
