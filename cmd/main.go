package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/blindtest/internal/config"
	"github.com/victornm/blindtest/internal/server"
	"github.com/victornm/blindtest/internal/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "blindtest",
	Short: "Team blind test games for chat communities",
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return config.LoadDotEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	RunE: func(*cobra.Command, []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		if err := telemetry.SetupLogger(os.Stderr, c.Log); err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

		s, err := server.Init(c)
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}

		errc := make(chan error, 1)
		go func() { errc <- s.Start() }()

		select {
		case <-shutdown:
		case err := <-errc:
			if err != nil {
				slog.Error("server: stopped", "error", err)
			}
		}

		s.Shutdown()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"),
		"config file, defaults to $CONFIG_PATH")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddGroup(questionsGroup)
	rootCmd.AddCommand(questionsCmd)
}

func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	if err := config.Load(configPath, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
