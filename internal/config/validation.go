package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/i18n"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/sound"
	"github.com/conneroisu/codepad/internal/workspace"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) warn(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validatePreviewConfigDetails(&config.Preview, result)
	validateCompilerConfigDetails(&config.Compiler, result)
	validateSoundConfigDetails(&config.Sound, result)
	validateAutotypeConfigDetails(&config.Autotype, result)
	validateStorageConfigDetails(&config.Storage, result)
	validateEditorConfigDetails(&config.Editor, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLoggingConfigDetails(&config.Logging, result)
	validateWebSocketConfigDetails(&config.WebSocket, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system pick one, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		result.fail("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port",
		)
	} else if config.Port > 0 && config.Port < 1024 {
		result.warn("server.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development",
		)
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.fail("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces",
			)
		}
	}

	validEnvs := []string{"development", "production", "testing"}
	if config.Environment != "" && !slices.Contains(validEnvs, config.Environment) {
		result.warn("server.environment", config.Environment, "unknown environment type",
			"Available environments: "+strings.Join(validEnvs, ", "),
		)
	}

	for i, origin := range config.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			result.fail(fmt.Sprintf("server.allowed_origins[%d]", i), origin, "empty origin pattern")
		}
	}
}

func validatePreviewConfigDetails(config *PreviewConfig, result *ValidationResult) {
	seen := make(map[string]bool, len(config.Libraries))
	for i, lib := range config.Libraries {
		field := fmt.Sprintf("preview.libraries[%d]", i)
		if err := preview.ValidateLibrary(lib); err != nil {
			result.fail(field, lib, err.Error(),
				"Use an absolute http(s) URL such as https://cdn.tailwindcss.com",
			)
			continue
		}
		if seen[lib] {
			result.warn(field, lib, "duplicate library is ignored")
		}
		seen[lib] = true
	}

	if config.MaxDocumentBytes <= 0 {
		result.fail("preview.max_document_bytes", config.MaxDocumentBytes,
			"max_document_bytes must be positive",
			"The default of 1048576 (1 MiB) fits any hand-written page",
		)
	}
}

func validateCompilerConfigDetails(config *CompilerConfig, result *ValidationResult) {
	if config.CacheEntries <= 0 {
		result.fail("compiler.cache_entries", config.CacheEntries, "cache_entries must be positive")
	}
	if config.CacheTTL <= 0 {
		result.fail("compiler.cache_ttl", config.CacheTTL, "cache_ttl must be positive",
			"Use a Go duration such as 10m",
		)
	}
	if _, err := compiler.ParseTarget(config.ScriptTarget); err != nil {
		result.fail("compiler.script_target", config.ScriptTarget, err.Error(),
			"Use an ECMAScript target such as es2015, es2020 or esnext",
		)
	}
}

func validateSoundConfigDetails(config *SoundConfig, result *ValidationResult) {
	if _, err := sound.ParseKind(config.Type); err != nil {
		names := make([]string, 0, len(sound.Kinds()))
		for _, k := range sound.Kinds() {
			names = append(names, string(k))
		}
		result.fail("sound.type", config.Type, err.Error(),
			"Available sounds: "+strings.Join(names, ", "),
		)
	}
	if config.Volume < 0 || config.Volume > 1 {
		result.fail("sound.volume", config.Volume,
			fmt.Sprintf("volume %g is not in range 0-1", config.Volume))
	}
	if config.SampleRate < 8000 || config.SampleRate > 192000 {
		result.fail("sound.sample_rate", config.SampleRate,
			fmt.Sprintf("sample rate %d is not in range 8000-192000", config.SampleRate),
			"22050 is plenty for short clicks",
		)
	}
}

func validateAutotypeConfigDetails(config *AutotypeConfig, result *ValidationResult) {
	if config.CharsPerSecond < autotype.MinCharsPerSecond || config.CharsPerSecond > autotype.MaxCharsPerSecond {
		result.fail("autotype.chars_per_second", config.CharsPerSecond,
			fmt.Sprintf("chars_per_second must be between %d and %d", autotype.MinCharsPerSecond, autotype.MaxCharsPerSecond),
		)
	}
	if config.MaxScriptBytes <= 0 {
		result.fail("autotype.max_script_bytes", config.MaxScriptBytes, "max_script_bytes must be positive")
	}
}

func validateStorageConfigDetails(config *StorageConfig, result *ValidationResult) {
	drivers := []string{project.DriverFile, project.DriverSQLite}
	if !slices.Contains(drivers, config.Driver) {
		result.fail("storage.driver", config.Driver,
			fmt.Sprintf("unknown storage driver %q", config.Driver),
			"Available drivers: "+strings.Join(drivers, ", "),
		)
	}
	if err := validatePath(config.Path); err != nil {
		result.fail("storage.path", config.Path, err.Error(),
			"Use a path such as .codepad/projects.json",
		)
	}
}

func validateEditorConfigDetails(config *EditorConfig, result *ValidationResult) {
	if config.Theme != "light" && config.Theme != "dark" {
		result.fail("editor.theme", config.Theme, "theme must be light or dark")
	}
	if config.FontSize < workspace.MinFontSize || config.FontSize > workspace.MaxFontSize {
		result.fail("editor.font_size", config.FontSize,
			fmt.Sprintf("font size must be between %d and %d", workspace.MinFontSize, workspace.MaxFontSize),
		)
	}
	if !slices.Contains(workspace.FontFamilies, config.FontFamily) {
		result.fail("editor.font_family", config.FontFamily,
			fmt.Sprintf("unsupported font family %q", config.FontFamily),
			"Available fonts: "+strings.Join(workspace.FontFamilies, ", "),
		)
	}
	if _, err := i18n.ParseLanguage(config.Language); err != nil {
		langs := make([]string, 0, 2)
		for _, l := range i18n.Supported() {
			langs = append(langs, string(l))
		}
		result.fail("editor.language", config.Language, err.Error(),
			"Available languages: "+strings.Join(langs, ", "),
		)
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Dir == "" {
		return
	}
	if err := validatePath(config.Dir); err != nil {
		result.fail("watch.dir", config.Dir, err.Error())
		return
	}
	if info, err := os.Stat(config.Dir); err != nil || !info.IsDir() {
		result.warn("watch.dir", config.Dir, "directory does not exist",
			"Create the directory: mkdir -p "+config.Dir,
		)
	}
	if config.Debounce <= 0 {
		result.fail("watch.debounce", config.Debounce, "debounce must be positive")
	}
}

func validateLoggingConfigDetails(config *LoggingConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.fail("logging.level", config.Level, err.Error(),
			"Use one of debug, info, warn, error",
		)
	}
	if config.Format != "text" && config.Format != "json" {
		result.fail("logging.format", config.Format, "format must be text or json")
	}
}

func validateWebSocketConfigDetails(config *WebSocketConfig, result *ValidationResult) {
	if config.MessagesPerSecond <= 0 {
		result.fail("websocket.messages_per_second", config.MessagesPerSecond, "messages_per_second must be positive")
	}
	if config.Burst <= 0 {
		result.fail("websocket.burst", config.Burst, "burst must be positive")
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
