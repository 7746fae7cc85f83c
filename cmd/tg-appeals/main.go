// Command tg-appeals runs the moderation appeals bot.
//
// serve - run the bot (default)
// migrate - create, inspect or reset the appeals table
// healthcheck - probe the health endpoint of a running bot
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"tg-appeals/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "tg-appeals",
	Short:         "Telegram bot for ban appeals",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

func main() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath,
		"path to the configuration file; environment variables override it")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(healthcheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads cfgFile. A missing default file falls back to the
// environment so container deployments need no file at all.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}
