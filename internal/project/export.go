package project

import (
	"archive/zip"
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/workspace"
)

// Archive member names.
const (
	IndexFile  = "index.html"
	StyleFile  = "style.css"
	ScriptFile = "script.js"
)

// ArchiveName is the suggested download name.
const ArchiveName = "project.zip"

// IndexDocument is the standalone page of an exported project. It links
// style.css and script.js and carries the library tags of the preview.
func IndexDocument(markup string, libraries []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, indexHead); err != nil {
			return err
		}
		if err := preview.LibraryTags(libraries, "\n  ").Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n</head>\n<body>\n"+markup+"\n"); err != nil {
			return err
		}
		_, err := io.WriteString(w, indexTail)
		return err
	})
}

const indexHead = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>My Project</title>
  <link rel="stylesheet" href="` + StyleFile + `">
  `

const indexTail = `  <script src="` + ScriptFile + `"></script>
</body>
</html>`

// Export writes snap as a ZIP archive with index.html, style.css (the
// effective style) and script.js (the effective script).
func Export(ctx context.Context, w io.Writer, snap workspace.Snapshot, artifact workspace.Artifact) error {
	var index bytes.Buffer
	if err := IndexDocument(snap.Document.HTML, snap.Libraries).Render(ctx, &index); err != nil {
		return exportError("rendering index.html", err)
	}

	zw := zip.NewWriter(w)
	members := []struct {
		name string
		data []byte
	}{
		{IndexFile, index.Bytes()},
		{StyleFile, []byte(artifact.CSS)},
		{ScriptFile, []byte(artifact.JS)},
	}
	for _, m := range members {
		f, err := zw.Create(m.name)
		if err != nil {
			return exportError("adding "+m.name, err)
		}
		if _, err := f.Write(m.data); err != nil {
			return exportError("writing "+m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return exportError("finishing archive", err)
	}
	return nil
}

// ExportRecord exports a saved record, compiling its secondary languages
// with comp (nil uses the default compiler).
func ExportRecord(ctx context.Context, w io.Writer, r Record, comp workspace.Compiler) error {
	snap := r.Snapshot()
	return Export(ctx, w, snap, workspace.Effective(snap.Document, comp))
}

func exportError(op string, err error) *errors.CodepadError {
	return errors.NewPersistenceError(errors.ErrCodeExport, op, err)
}
