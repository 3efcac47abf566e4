package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/codepad/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	configFormat string
	configFile   string
	configOutput string
	configForce  bool
	configStrict bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage codepad configuration",
	Long: `Manage codepad configuration files and settings.

Examples:
  codepad config init                  # Write the defaults to .codepad.yml
  codepad config show                  # Show the effective configuration
  codepad config show --format json
  codepad config validate --file .codepad.yml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after loading the file, applying CODEPAD_
environment overrides and filling in defaults.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a codepad configuration file and report every problem found.

Examples:
  codepad config validate                     # Validate .codepad.yml
  codepad config validate --file other.yml
  codepad config validate --strict            # Treat warnings as errors`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")

	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", config.FileName, "File to write")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configValidateCmd.Flags().StringVar(&configFile, "file", "", "Configuration file to validate")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configOutput); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configOutput)
	}

	f, err := os.Create(configOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", configOutput, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# codepad configuration"); err != nil {
		return err
	}
	if err := writeConfig(f, config.Default(), "yaml"); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", configOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	target := configFile
	if target == "" {
		target = config.FileName
	}
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", target)
	}

	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	result := config.ValidateConfigWithDetails(&cfg)
	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintf(out, "%s is valid\n", target)
		return nil
	}

	fmt.Fprint(out, result.String())
	if result.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(result.Errors))
	}
	if configStrict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(result.Warnings))
	}
	fmt.Fprintf(out, "%s is valid with %d warnings\n", target, len(result.Warnings))
	return nil
}
