// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bismark-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bismark-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the bismark-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "bismark-engine",
	Short: "Run the Bismark bisulfite methylation pipeline from parameter records",
	Long: `bismark-engine runs Bismark genome preparation, alignment, and methylation
extraction inside a container. Each stage takes an open parameter record
(JSON or YAML) and returns an open result record; fields the stage does not
declare travel along unchanged and are kept in the call journal.

Stages can be run directly (prepare, align, extract, cli) or through
KBase-style job files (job run).`,
	SilenceUsage: true,
}

// configFlags maps persistent flags to config keys.
var configFlags = map[string]string{
	"data-dir":     "data_dir",
	"scratch-dir":  "scratch_dir",
	"db-dir":       "db_dir",
	"threads":      "threads",
	"image":        "container.image",
	"runtime":      "container.runtime",
	"timeout":      "container.timeout",
	"metrics-file": "metrics_file",
}

func init() {
	cobra.OnInitialize(initConfig)

	def := types.DefaultEngineConfig()
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./bismark-engine.yaml or ~/.config/bismark-engine/config.yaml)")
	pf.String("data-dir", def.DataDir, "directory relative references are resolved in")
	pf.String("scratch-dir", def.ScratchDir, "directory for index, alignment, and extraction output")
	pf.String("db-dir", def.DBDir, "directory holding bismark.db")
	pf.Int("threads", def.Threads, "parallel instances passed to bismark")
	pf.String("image", def.Container.Image, "container image with the Bismark tools")
	pf.String("runtime", "", "container runtime: docker or podman (default: detect)")
	pf.Duration("timeout", def.Container.Timeout, "limit for a single tool run (0 = none)")
	pf.String("metrics-file", "", "write Prometheus textfile metrics here after each command")

	for flag, key := range configFlags {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bismark-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bismark-engine"))
		}
	}

	viper.SetEnvPrefix("BISMARK_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig returns the settings from flags, environment, and config
// file, in that order of precedence, over the defaults.
func engineConfig() (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.EngineConfig{}, fmt.Errorf("reading config: %w", err)
	}
	if cfg.Container.Image == "" {
		cfg.Container.Image = types.DefaultImage
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
