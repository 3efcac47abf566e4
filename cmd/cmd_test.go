package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/config"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCommandsAreRegistered(t *testing.T) {
	want := []string{"config", "export", "projects", "serve", "version"}
	var got []string
	for _, c := range rootCmd.Commands() {
		for _, name := range want {
			if c.Name() == name {
				got = append(got, name)
			}
		}
	}
	sort.Strings(got)
	assert.Equal(t, want, got)

	for _, flag := range []string{"port", "host", "open", "dir", "storage", "storage-path"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "p", serveCmd.Flags().Lookup("port").Shorthand)
}

func TestWriteConfig(t *testing.T) {
	cfg := config.Default()

	var out bytes.Buffer
	require.NoError(t, writeConfig(&out, cfg, "yaml"))

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 8080, decoded["server"]["port"])
	assert.Equal(t, "10m0s", decoded["compiler"]["cache_ttl"])
	assert.Equal(t, "mechanical", decoded["sound"]["type"])

	out.Reset()
	require.NoError(t, writeConfig(&out, cfg, "json"))
	var asJSON config.Config
	require.NoError(t, json.Unmarshal(out.Bytes(), &asJSON))
	assert.Equal(t, cfg.Editor, asJSON.Editor)

	assert.Error(t, writeConfig(&out, cfg, "toml"))
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	configOutput, configForce = path, false
	t.Cleanup(func() { configOutput, configForce = config.FileName, false })

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runConfigInit(cmd, nil))
	assert.Error(t, runConfigInit(cmd, nil), "existing file without --force")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Server.Addr(), cfg.Server.Addr())
	assert.Equal(t, config.Default().Editor, cfg.Editor)
	assert.Equal(t, config.Default().Compiler.CacheTTL, cfg.Compiler.CacheTTL)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yml")
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(good, []byte("server:\n  port: 9000\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("editor:\n  font_size: 40\n"), 0o644))
	t.Cleanup(func() { configFile, configStrict = "", false })

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	configFile = good
	require.NoError(t, runConfigValidate(cmd, nil))
	assert.Contains(t, out.String(), "is valid")

	out.Reset()
	configFile = bad
	assert.Error(t, runConfigValidate(cmd, nil))
	assert.Contains(t, out.String(), "editor.font_size")

	configFile = filepath.Join(dir, "missing.yml")
	assert.Error(t, runConfigValidate(cmd, nil))
}

func TestPrintProjects(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printProjects(&out, nil, false))
	assert.Contains(t, out.String(), "No saved projects")

	snap := workspace.Snapshot{
		Document:  workspace.DefaultDocument(),
		Libraries: []string{"https://cdn.example.com/a.js"},
		Settings:  workspace.DefaultSettings(),
	}
	recs := []project.Record{project.FromSnapshot("demo", snap, time.Now())}

	out.Reset()
	require.NoError(t, printProjects(&out, recs, false))
	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "demo")

	out.Reset()
	require.NoError(t, printProjects(&out, recs, true))
	var decoded []project.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "demo", decoded[0].Name)
}

func TestWriteArchive(t *testing.T) {
	snap := workspace.Snapshot{Document: workspace.DefaultDocument(), Settings: workspace.DefaultSettings()}
	rec := project.FromSnapshot("demo", snap, time.Now())
	comp, err := compiler.New(compiler.DefaultOptions(), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, writeArchive(context.Background(), path, rec, comp))
	assert.NoFileExists(t, path+".tmp")

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{project.IndexFile, project.StyleFile, project.ScriptFile}, names)
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 8080, "")
	fs.String("unbound", "", "")
	bindFlags(fs, map[string]string{"port": "test_bind.port"})
	t.Cleanup(viper.Reset)

	require.NoError(t, fs.Parse([]string{"--port", "9999", "--unbound", "x"}))
	assert.Equal(t, 9999, viper.GetInt("test_bind.port"))
	assert.False(t, viper.IsSet("unbound"))
}
