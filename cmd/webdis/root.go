package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mercator-hq/webdis/pkg/cli"
	"mercator-hq/webdis/pkg/config"
)

const defaultConfigFile = "webdis.json"

var (
	// Global flags
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "webdis [config]",
	Short: "Webdis - HTTP and WebSocket gateway for Redis",
	Long: `Webdis exposes a Redis server over HTTP.

Commands are sent as URL paths (GET /SET/key/value) or as JSON arrays over
a WebSocket, and replies come back as JSON, raw bytes, MessagePack or JSONP.
SUBSCRIBE and PSUBSCRIBE stream messages as Server-Sent Events.

Running webdis without a subcommand is the same as "webdis run".`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runServer,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before WEBDIS_* overrides; missing file is ignored")
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return cli.NewConfigError("env-file", fmt.Sprintf("failed to load %s: %v", path, err))
	}
	slog.Debug("loaded environment file", "path", path)
	return nil
}

// configPath returns the positional config argument if present, else the
// --config flag.
func configPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return cfgFile
}

// loadConfig reads path with WEBDIS_* overrides and installs the result as
// the process configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.WrapConfigError(path, err)
	}
	config.SetConfig(cfg)
	return cfg, nil
}
