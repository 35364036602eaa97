package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/webdis/pkg/acl"
	"mercator-hq/webdis/pkg/cli"
	"mercator-hq/webdis/pkg/config"
	webdistls "mercator-hq/webdis/pkg/security/tls"
)

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate [config]",
	Short: "Validate a configuration file",
	Long: `Load a configuration file with WEBDIS_* environment overrides applied,
check every setting and compile the ACL rules, without connecting to Redis
or opening a listener.

Examples:
  # Validate webdis.json in the working directory
  webdis validate

  # Validate a specific file and print a JSON summary
  webdis validate /etc/webdis/webdis.json --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	f, err := cli.NewFormatter(validateFlags.output)
	if err != nil {
		return err
	}

	path := configPath(args)
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	engine, err := acl.New(cfg.ACL)
	if err != nil {
		return cli.NewConfigError("acl", err.Error())
	}

	if _, err := webdistls.ServerConfig(&cfg.Server.TLS); err != nil {
		return cli.NewConfigError("server.tls", err.Error())
	}
	if cfg.SSL.Enabled {
		_, reloader, err := webdistls.ClientConfig(&cfg.SSL, cfg.RedisHost)
		if err != nil {
			return cli.NewConfigError("ssl", err.Error())
		}
		if reloader != nil {
			_ = reloader.Close()
		}
	}

	return f.FormatTo(cmd.OutOrStdout(), summarize(path, cfg, engine.Len()))
}

func summarize(path string, cfg *config.Config, aclRules int) map[string]string {
	return map[string]string{
		"config":      path,
		"status":      "valid",
		"backend":     cfg.BackendAddress(),
		"listen":      cfg.ListenAddress(),
		"workers":     fmt.Sprint(cfg.HTTPThreads),
		"pool_size":   fmt.Sprint(cfg.HTTPThreads * cfg.PoolSizePerThread),
		"acl_rules":   fmt.Sprint(aclRules),
		"websockets":  fmt.Sprint(cfg.Websockets),
		"backend_tls": fmt.Sprint(cfg.SSL.Enabled),
	}
}
