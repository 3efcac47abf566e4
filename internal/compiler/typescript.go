package compiler

import (
	"fmt"
	"strings"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/evanw/esbuild/pkg/api"
)

var scriptTargets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a config value such as "es2020" to an esbuild target.
// The empty string selects es2020.
func ParseTarget(s string) (api.Target, error) {
	if s == "" {
		return api.ES2020, nil
	}
	target, ok := scriptTargets[strings.ToLower(s)]
	if !ok {
		return api.DefaultTarget, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported script target %q", s))
	}
	return target, nil
}

// compileTypeScript strips type syntax and lowers the script to target.
func compileTypeScript(src string, target api.Target) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:     api.LoaderTS,
		Sourcefile: "script.ts",
		Target:     target,
		LogLevel:   api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			} else {
				msgs = append(msgs, m.Text)
			}
		}
		return "", fmt.Errorf("typescript: %s", strings.Join(msgs, "; "))
	}

	return string(result.Code), nil
}
