// Package config provides configuration management for codepad using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the CODEPAD_ prefix, and validation. It covers the HTTP server, the
// preview channel, the compilers, keystroke sound, auto-typing, project
// storage, editor defaults, directory sync, logging and websocket limits.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/i18n"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/sound"
	"github.com/conneroisu/codepad/internal/workspace"
	"github.com/spf13/viper"
)

// FileName is the configuration file searched for in the working directory.
const FileName = ".codepad.yml"

// EnvPrefix prefixes every environment override, e.g. CODEPAD_SERVER_PORT.
const EnvPrefix = "CODEPAD"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Preview   PreviewConfig   `mapstructure:"preview" yaml:"preview" json:"preview"`
	Compiler  CompilerConfig  `mapstructure:"compiler" yaml:"compiler" json:"compiler"`
	Sound     SoundConfig     `mapstructure:"sound" yaml:"sound" json:"sound"`
	Autotype  AutotypeConfig  `mapstructure:"autotype" yaml:"autotype" json:"autotype"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Editor    EditorConfig    `mapstructure:"editor" yaml:"editor" json:"editor"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch" json:"watch"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging" json:"logging"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket" json:"websocket"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	Open           bool     `mapstructure:"open" yaml:"open" json:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	Environment    string   `mapstructure:"environment" yaml:"environment" json:"environment"`
}

// Addr joins host and port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PreviewConfig struct {
	Libraries        []string `mapstructure:"libraries" yaml:"libraries" json:"libraries"`
	MaxDocumentBytes int      `mapstructure:"max_document_bytes" yaml:"max_document_bytes" json:"max_document_bytes"`
}

type CompilerConfig struct {
	CacheEntries int           `mapstructure:"cache_entries" yaml:"cache_entries" json:"cache_entries"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"`
	ScriptTarget string        `mapstructure:"script_target" yaml:"script_target" json:"script_target"`
}

// Options converts the section into compiler options.
func (c CompilerConfig) Options() compiler.Options {
	return compiler.Options{
		CacheEntries: c.CacheEntries,
		CacheTTL:     c.CacheTTL,
		ScriptTarget: c.ScriptTarget,
	}
}

type SoundConfig struct {
	Type       string  `mapstructure:"type" yaml:"type" json:"type"`
	Volume     float64 `mapstructure:"volume" yaml:"volume" json:"volume"`
	Muted      bool    `mapstructure:"muted" yaml:"muted" json:"muted"`
	SampleRate int     `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
}

// Settings returns the sound settings the editor starts with. Type must
// already be validated.
func (s SoundConfig) Settings() sound.Settings {
	kind, err := sound.ParseKind(s.Type)
	if err != nil {
		kind = sound.DefaultSettings().Kind
	}
	return sound.Settings{Kind: kind, Volume: s.Volume, Muted: s.Muted}
}

type AutotypeConfig struct {
	CharsPerSecond int `mapstructure:"chars_per_second" yaml:"chars_per_second" json:"chars_per_second"`
	MaxScriptBytes int `mapstructure:"max_script_bytes" yaml:"max_script_bytes" json:"max_script_bytes"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	Path   string `mapstructure:"path" yaml:"path" json:"path"`
}

type EditorConfig struct {
	Theme      string `mapstructure:"theme" yaml:"theme" json:"theme"`
	FontSize   int    `mapstructure:"font_size" yaml:"font_size" json:"font_size"`
	FontFamily string `mapstructure:"font_family" yaml:"font_family" json:"font_family"`
	Language   string `mapstructure:"language" yaml:"language" json:"language"`
}

type WatchConfig struct {
	Dir      string        `mapstructure:"dir" yaml:"dir" json:"dir"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// Enabled reports whether directory sync should run.
func (w WatchConfig) Enabled() bool { return w.Dir != "" }

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

type WebSocketConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second" json:"messages_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	comp := compiler.DefaultOptions()
	snd := sound.DefaultSettings()
	ed := workspace.DefaultSettings()

	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{},
			Environment:    "development",
		},
		Preview: PreviewConfig{
			Libraries:        []string{},
			MaxDocumentBytes: 1 << 20,
		},
		Compiler: CompilerConfig{
			CacheEntries: comp.CacheEntries,
			CacheTTL:     comp.CacheTTL,
			ScriptTarget: comp.ScriptTarget,
		},
		Sound: SoundConfig{
			Type:       string(snd.Kind),
			Volume:     snd.Volume,
			SampleRate: sound.DefaultSampleRate,
		},
		Autotype: AutotypeConfig{
			CharsPerSecond: 5,
			MaxScriptBytes: 256 << 10,
		},
		Storage: StorageConfig{
			Driver: project.DriverFile,
			Path:   filepath.Join(".codepad", "projects.json"),
		},
		Editor: EditorConfig{
			Theme:      ed.Theme,
			FontSize:   ed.FontSize,
			FontFamily: ed.FontFamily,
			Language:   string(i18n.Default),
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		WebSocket: WebSocketConfig{
			MessagesPerSecond: 50,
			Burst:             100,
		},
	}
}

// SetDefaults registers every default with v so that environment variables
// for unset keys are still picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.open", d.Server.Open)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("preview.libraries", d.Preview.Libraries)
	v.SetDefault("preview.max_document_bytes", d.Preview.MaxDocumentBytes)
	v.SetDefault("compiler.cache_entries", d.Compiler.CacheEntries)
	v.SetDefault("compiler.cache_ttl", d.Compiler.CacheTTL)
	v.SetDefault("compiler.script_target", d.Compiler.ScriptTarget)
	v.SetDefault("sound.type", d.Sound.Type)
	v.SetDefault("sound.volume", d.Sound.Volume)
	v.SetDefault("sound.muted", d.Sound.Muted)
	v.SetDefault("sound.sample_rate", d.Sound.SampleRate)
	v.SetDefault("autotype.chars_per_second", d.Autotype.CharsPerSecond)
	v.SetDefault("autotype.max_script_bytes", d.Autotype.MaxScriptBytes)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("editor.theme", d.Editor.Theme)
	v.SetDefault("editor.font_size", d.Editor.FontSize)
	v.SetDefault("editor.font_family", d.Editor.FontFamily)
	v.SetDefault("editor.language", d.Editor.Language)
	v.SetDefault("watch.dir", d.Watch.Dir)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("websocket.messages_per_second", d.WebSocket.MessagesPerSecond)
	v.SetDefault("websocket.burst", d.WebSocket.Burst)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot decode configuration").Wrap(err)
	}

	// Slices set through env vars arrive as a single space separated string.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("preview.libraries") && len(config.Preview.Libraries) == 0 {
		config.Preview.Libraries = v.GetStringSlice("preview.libraries")
	}

	config.normalize()

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Sound.Type = strings.ToLower(strings.TrimSpace(c.Sound.Type))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// EditorSettings returns the workspace settings the editor starts with.
func (c *Config) EditorSettings() workspace.Settings {
	return workspace.Settings{
		Theme:      c.Editor.Theme,
		FontSize:   c.Editor.FontSize,
		FontFamily: c.Editor.FontFamily,
		Sound:      c.Sound.Settings(),
	}
}

// LoggerConfig builds the logger configuration. Level must already be
// validated.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Logging.Format
	return lc
}

// AutotypeOptions converts the autotype section.
func (c *Config) AutotypeOptions() autotype.Options {
	return autotype.Options{MaxScriptBytes: c.Autotype.MaxScriptBytes}
}

// validateConfig validates configuration values and reports the first
// offending field.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]
	problems := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		problems = append(problems, e.Error())
	}

	return errors.NewConfigError(errors.ErrCodeConfigInvalid,
		fmt.Sprintf("invalid configuration: %s", first.Error())).
		WithContext("field", first.Field).
		WithContext("problems", problems)
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
