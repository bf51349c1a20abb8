package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "grindsync",
	Short: "Coding-practice tracker with awareness scoring and cloud sync",
	Long: `grindsync tracks your coding-practice problem sets, scores how much
each solved problem has decayed from memory, and keeps progress in sync
across devices.

Problem sets are TSV files in the sets directory; progress lives in a
local SQLite database and, when a remote endpoint is configured, in your
cloud account. A problem appearing in several sets is one logical
problem: solving it anywhere marks it solved everywhere.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.grindsync/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default $HOME/.grindsync)")
	rootCmd.PersistentFlags().String("sets-dir", "", "problem-set directory (default <data-dir>/sets)")
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("sets_dir", rootCmd.PersistentFlags().Lookup("sets-dir"))

	rootCmd.AddGroup(
		&cobra.Group{ID: "track", Title: "Tracking commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "data", Title: "Data commands:"},
	)
}

func initConfig() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultDataDir := filepath.Join(home, ".grindsync")

	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("remote.url", "")
	viper.SetDefault("remote.token", "")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(defaultDataDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GRINDSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; everything has a default.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: cannot read config file: %v\n", err)
		}
	}

	if viper.GetString("sets_dir") == "" {
		viper.Set("sets_dir", filepath.Join(viper.GetString("data_dir"), "sets"))
	}
}
