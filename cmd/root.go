// Package cmd provides the command-line interface for codepad.
//
// Configuration is resolved with this precedence, highest first:
//  1. Command-line flags (--port, --storage, ...)
//  2. Environment variables (CODEPAD_SERVER_PORT, CODEPAD_STORAGE_DRIVER, ...)
//  3. The configuration file: --config, then CODEPAD_CONFIG_FILE, then
//     .codepad.yml in the working directory
//  4. Built-in defaults
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/codepad/internal/config"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "codepad",
	Short: "A live HTML/CSS/JavaScript playground",
	Long: `Codepad serves a browser code playground: three source buffers (HTML,
CSS or SCSS, JavaScript or TypeScript) rendered live in a sandboxed preview.

Quick Start:
  codepad serve                   Start the playground on localhost:8080
  codepad serve --dir ./site      Keep the playground in sync with a directory
  codepad projects                List saved projects
  codepad export --out site.zip   Export the last saved project`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .codepad.yml, can also use CODEPAD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the configuration file and enables CODEPAD_
// environment overrides. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.FileName, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the effective configuration and a logger built from it.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewLogger(cfg.LoggerConfig()), nil
}
