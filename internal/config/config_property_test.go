//go:build property
// +build property

package config

import (
	"testing"

	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/workspace"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigurationProperties tests validation over generated ranges.
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("in-range values validate", prop.ForAll(
		func(port, fontSize, cps int, volume float64) bool {
			c := Default()
			c.Server.Port = port
			c.Editor.FontSize = fontSize
			c.Autotype.CharsPerSecond = cps
			c.Sound.Volume = volume
			return validateConfig(c) == nil
		},
		gen.IntRange(1024, 65535),
		gen.IntRange(workspace.MinFontSize, workspace.MaxFontSize),
		gen.IntRange(autotype.MinCharsPerSecond, autotype.MaxCharsPerSecond),
		gen.Float64Range(0, 1),
	))

	properties.Property("out-of-range font size is rejected", prop.ForAll(
		func(fontSize int) bool {
			c := Default()
			c.Editor.FontSize = fontSize
			return validateConfig(c) != nil
		},
		gen.OneGenOf(
			gen.IntRange(-100, workspace.MinFontSize-1),
			gen.IntRange(workspace.MaxFontSize+1, 200),
		),
	))

	properties.Property("out-of-range port is rejected", prop.ForAll(
		func(port int) bool {
			c := Default()
			c.Server.Port = port
			return validateConfig(c) != nil
		},
		gen.OneGenOf(gen.IntRange(-10000, -1), gen.IntRange(65536, 200000)),
	))

	properties.TestingRun(t)
}
