package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/config"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/spf13/cobra"
)

var (
	exportOut    string
	projectsJSON bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the last saved project as a ZIP archive",
	Long: `Export the most recently saved project to a ZIP archive containing
index.html, style.css and script.js. SCSS and TypeScript are compiled the same
way the live preview compiles them.

Examples:
  codepad export                  # Writes project.zip
  codepad export --out site.zip`,
	RunE: runExport,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List saved projects",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(projectsCmd)

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", project.ArchiveName, "Output file")
	projectsCmd.Flags().BoolVar(&projectsJSON, "json", false, "Output as JSON")
}

func openStore(cfg *config.Config) (project.Store, error) {
	return project.OpenStore(cfg.Storage.Driver, cfg.Storage.Path)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	rec, err := store.Last(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNoProjects) {
			return fmt.Errorf("no saved projects in %s", cfg.Storage.Path)
		}
		return err
	}

	comp, err := compiler.New(cfg.Compiler.Options(), logger)
	if err != nil {
		return err
	}

	if err := writeArchive(ctx, exportOut, rec, comp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", rec.Name, exportOut)
	return nil
}

// writeArchive writes next to path and renames on success, so a failed
// export never leaves a partial archive behind.
func writeArchive(ctx context.Context, path string, rec project.Record, comp *compiler.Compiler) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := project.ExportRecord(ctx, f, rec, comp); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(context.Background())
	if err != nil {
		return err
	}
	return printProjects(cmd.OutOrStdout(), recs, projectsJSON)
}

func printProjects(w io.Writer, recs []project.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No saved projects")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tSAVED\tLIBRARIES")
	for i, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, r.Name, r.SavedAt().Local().Format(time.DateTime), len(r.Libraries))
	}
	return tw.Flush()
}
