// Command focus runs the attention tracking server and its tooling.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-focus/internal/config"
	"github.com/teslashibe/go-focus/internal/log"
)

var version = "3.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	env       string
	configDir string
	envFile   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "focus",
		Short:         "Webcam attention tracking server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", envOr("FOCUS_ENV", "development"), "configuration environment")
	root.PersistentFlags().StringVar(&opts.configDir, "config", "./configs", "directory holding config.<env>.yaml")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newReplayCmd())
	root.AddCommand(newTokenCmd(opts))
	return root
}

// loadConfig reads the dotenv file, if any, then the viper configuration.
func loadConfig(opts *rootOptions) (*config.AppConfig, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}
	cfg, err := config.Load(opts.env, opts.configDir, ".")
	if err != nil {
		return nil, err
	}
	log.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
