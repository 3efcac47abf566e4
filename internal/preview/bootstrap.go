package preview

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// Element ids of the three mutable slots of the bootstrap document.
const (
	StyleSlotID  = "user-styles"
	MarkupSlotID = "root"
	ScriptSlotID = "user-script"
)

// LibraryTags renders the inclusion tags for libraries in order. References
// that are neither stylesheets nor scripts render nothing.
func LibraryTags(libraries []string, sep string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		first := true
		for _, lib := range libraries {
			var tag string
			switch ClassifyLibrary(lib) {
			case LibraryStylesheet:
				tag = `<link rel="stylesheet" href="` + templ.EscapeString(lib) + `">`
			case LibraryScript:
				tag = `<script src="` + templ.EscapeString(lib) + `"></script>`
			default:
				continue
			}
			if !first {
				if _, err := io.WriteString(w, sep); err != nil {
					return err
				}
			}
			first = false
			if _, err := io.WriteString(w, tag); err != nil {
				return err
			}
		}
		return nil
	})
}

// BootstrapDocument is the document bound to every rendering context: the
// library tags, a style slot, a markup root, a script slot, and the resident
// script that applies update messages. The script reaches the server at
// /ws + its own path, so the document does not depend on the context id.
func BootstrapDocument(libraries []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, bootstrapHead); err != nil {
			return err
		}
		if err := LibraryTags(libraries, "\n  ").Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, bootstrapTail)
		return err
	})
}

// RenderBootstrap renders BootstrapDocument into memory.
func RenderBootstrap(ctx context.Context, libraries []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := BootstrapDocument(libraries).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const bootstrapHead = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Preview</title>
  `

const bootstrapTail = `
  <style>
    * { margin: 0; padding: 0; }
    html, body { width: 100%; height: 100%; }
    body { background-color: transparent; overflow: auto; }
  </style>
  <style id="` + StyleSlotID + `"></style>
</head>
<body>
  <div id="` + MarkupSlotID + `"></div>
  <script id="` + ScriptSlotID + `"></script>
  <script>
  (function () {
    var styleEl = document.getElementById('` + StyleSlotID + `');
    var rootEl = document.getElementById('` + MarkupSlotID + `');
    var scriptEl = document.getElementById('` + ScriptSlotID + `');

    window.updatePreview = function (data) {
      if (typeof data.styleText === 'string') styleEl.textContent = data.styleText;
      if (typeof data.markupText === 'string') rootEl.innerHTML = data.markupText;
      if (typeof data.scriptText === 'string') {
        scriptEl.textContent = data.scriptText;
        try { (0, eval)(data.scriptText); } catch (e) { console.error(e); }
      }
    };

    function receive(data) {
      if (data && data.type === 'update') window.updatePreview(data);
    }

    window.addEventListener('message', function (e) { receive(e.data); }, false);

    var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var socket = new WebSocket(proto + '//' + location.host + '/ws' + location.pathname);
    socket.onmessage = function (e) {
      var data;
      try { data = JSON.parse(e.data); } catch (err) { console.error(err); return; }
      receive(data);
    };
    var opened = new Promise(function (resolve) { socket.onopen = resolve; });
    window.addEventListener('load', function () {
      opened.then(function () { socket.send(JSON.stringify({ type: 'ready' })); });
    }, { once: true });
  })();
  </script>
</body>
</html>
`
