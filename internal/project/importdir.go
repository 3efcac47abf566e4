package project

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/workspace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Source files recognised in a project directory, by buffer.
var sourceFiles = map[string]workspace.Buffer{
	IndexFile:    workspace.BufferHTML,
	StyleFile:    workspace.BufferCSS,
	"style.scss": workspace.BufferSCSS,
	ScriptFile:   workspace.BufferJavaScript,
	"script.ts":  workspace.BufferTypeScript,
}

// BufferForFile maps a project file name onto its buffer.
func BufferForFile(name string) (workspace.Buffer, bool) {
	b, ok := sourceFiles[strings.ToLower(filepath.Base(name))]
	return b, ok
}

// SourceFileNames lists the file names ImportDir reads.
func SourceFileNames() []string {
	return []string{IndexFile, StyleFile, "style.scss", ScriptFile, "script.ts"}
}

// Imported is the result of reading a project directory.
type Imported struct {
	Document  workspace.Document
	Libraries []string
	Found     []string
}

// ImportDir reads every recognised source file in dir. Missing files leave
// their buffer empty. A full index.html contributes its body as the html
// buffer and its absolute stylesheet and script references as libraries.
func ImportDir(dir string) (Imported, error) {
	var out Imported
	for _, name := range SourceFileNames() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return Imported{}, storageError("reading "+name, err).WithContext("dir", dir)
		}
		out.Found = append(out.Found, name)

		b, _ := BufferForFile(name)
		if b == workspace.BufferHTML {
			markup, libs, err := ParseIndex(data)
			if err != nil {
				return Imported{}, storageError("parsing "+name, err).WithContext("dir", dir)
			}
			out.Document.HTML = markup
			out.Libraries = libs
			continue
		}
		setBuffer(&out.Document, b, string(data))
	}
	if out.Libraries == nil {
		out.Libraries = []string{}
	}
	return out, nil
}

// ImportFile reads one recognised file and returns its buffer and text.
func ImportFile(path string) (workspace.Buffer, string, error) {
	b, ok := BufferForFile(path)
	if !ok {
		return "", "", storageError("unrecognised project file", nil).WithContext("path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", storageError("reading project file", err).WithContext("path", path)
	}
	if b != workspace.BufferHTML {
		return b, string(data), nil
	}
	markup, _, err := ParseIndex(data)
	if err != nil {
		return "", "", storageError("parsing project file", err).WithContext("path", path)
	}
	return b, markup, nil
}

// ParseIndex extracts the markup and library references of an index page.
// Input without a <body> element is a fragment and is returned verbatim.
// The script.js include written by Export is dropped from the markup, and
// surrounding whitespace is trimmed.
func ParseIndex(data []byte) (string, []string, error) {
	if !bytes.Contains(bytes.ToLower(data), []byte("<body")) {
		return string(data), []string{}, nil
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}

	libs := []string{}
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Body:
				if body == nil {
					body = n
				}
			case atom.Link:
				if attr(n, "rel") == "stylesheet" {
					libs = appendLibrary(libs, attr(n, "href"))
				}
			case atom.Script:
				libs = appendLibrary(libs, attr(n, "src"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if body == nil {
		return "", libs, nil
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Script && attr(c, "src") == ScriptFile {
			continue
		}
		if err := html.Render(&buf, c); err != nil {
			return "", nil, err
		}
	}
	return strings.TrimSpace(buf.String()), libs, nil
}

// appendLibrary keeps only absolute references the preview can load.
func appendLibrary(libs []string, ref string) []string {
	if ref == "" || preview.ValidateLibrary(ref) != nil {
		return libs
	}
	for _, l := range libs {
		if l == ref {
			return libs
		}
	}
	return append(libs, ref)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setBuffer(d *workspace.Document, b workspace.Buffer, text string) {
	switch b {
	case workspace.BufferCSS:
		d.CSS = text
	case workspace.BufferSCSS:
		d.SCSS = text
	case workspace.BufferJavaScript:
		d.JavaScript = text
	case workspace.BufferTypeScript:
		d.TypeScript = text
	}
}
