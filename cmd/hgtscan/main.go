// Package main provides the hgtscan command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "hgtscan",
		Short: "Flag horizontal gene transfer candidates from Diamond/BLAST hits",
		Long: `hgtscan classifies sequence-similarity search hits by taxonomic origin
and computes per-query HGT evidence scores (HGT Index, Alien Index,
Consensus Hit Support) to flag candidate horizontal gene transfer events.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newScanCmd(&verbose))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig loads ~/.hgtscan.yaml and HGTSCAN_* environment variables into
// viper; flags stay authoritative when set explicitly.
func initConfig() {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".hgtscan")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("hgtscan")
	viper.AutomaticEnv()

	// A missing config file is fine; anything else is worth surfacing.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	}
}

// newLogger builds the CLI logger: console output on stderr, debug level
// when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
