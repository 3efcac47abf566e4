package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the playground server",
	Long: `Start the playground server. The editor is served at / and the live
preview runs in a sandboxed iframe fed over WebSocket.

Examples:
  codepad serve                        # Serve on localhost:8080
  codepad serve -p 3000 --open         # Serve on port 3000 and open a browser
  codepad serve --dir ./site           # Seed from and follow ./site
  codepad serve --storage sqlite --storage-path projects.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open the editor in a browser")
	serveCmd.Flags().String("dir", "", "Directory to keep the workspace in sync with")
	serveCmd.Flags().String("storage", project.DriverFile, "Project storage driver (file, sqlite)")
	serveCmd.Flags().String("storage-path", "", "Project storage location")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":         "server.port",
		"host":         "server.host",
		"open":         "server.open",
		"dir":          "watch.dir",
		"storage":      "storage.driver",
		"storage-path": "storage.path",
	})
}

// bindFlags binds each named flag in fs to its configuration key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	fs.VisitAll(func(f *pflag.Flag) {
		if key, ok := keys[f.Name]; ok {
			_ = viper.BindPFlag(key, f)
		}
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := project.OpenStore(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting codepad at http://%s\n", cfg.Server.Addr())
	if cfg.Watch.Enabled() {
		fmt.Fprintf(cmd.OutOrStdout(), "Syncing with %s\n", cfg.Watch.Dir)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
