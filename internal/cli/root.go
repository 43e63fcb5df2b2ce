// Package cli define os comandos cobra do visitortracker.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"visitor-tracker/internal/config"
	"visitor-tracker/internal/logger"
)

type rootFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

// NewRootCmd monta a árvore de comandos.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "visitortracker",
		Short:         "Visitor tracker with sliding-window rate limiting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded if present")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "overrides log_level (debug|info|warn|error)")

	root.AddCommand(newServeCmd(flags), newRateLimitCmd(flags))
	return root
}

// Execute roda o comando raiz e termina o processo com código 1 em erro.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (f *rootFlags) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(config.Options{File: f.configFile, EnvFile: f.envFile})
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
