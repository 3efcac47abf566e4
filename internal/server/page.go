package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/i18n"
	"github.com/conneroisu/codepad/internal/sound"
	"github.com/conneroisu/codepad/internal/workspace"
)

// pageLanguage picks the UI language: ?lang= first, then Accept-Language,
// then the configured default.
func (s *Server) pageLanguage(r *http.Request) i18n.Language {
	if q := r.URL.Query().Get("lang"); q != "" {
		if lang, err := i18n.ParseLanguage(q); err == nil {
			return lang
		}
	}
	if h := r.Header.Get("Accept-Language"); h != "" {
		return i18n.Match(h)
	}
	return s.lang
}

func (s *Server) handleEditorPage(w http.ResponseWriter, r *http.Request) {
	lang := s.pageLanguage(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := EditorPage(lang, s.workspace.Settings()).Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to render editor page")
	}
}

// EditorPage renders the editor shell. Buffers, libraries and the preview
// location arrive over the editor socket once it connects.
func EditorPage(lang i18n.Language, settings workspace.Settings) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t := func(key string) string { return templ.EscapeString(i18n.T(lang, key)) }

		catalog, err := json.Marshal(i18n.Catalog(lang))
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html>
<html lang="` + string(lang) + `" dir="` + i18n.Direction(lang) + `" data-theme="` + templ.EscapeString(settings.Theme) + `">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Codepad</title>
<style>` + editorStyles + `</style>
</head>
<body>
<header class="toolbar">
  <button data-action="save">` + t("toolbar.save") + `</button>
  <button data-action="load">` + t("toolbar.load") + `</button>
  <button data-action="download">` + t("toolbar.download") + `</button>
  <label>` + t("editor.theme") + `
    <select data-setting="theme">
      <option value="light">` + t("editor.lightMode") + `</option>
      <option value="dark">` + t("editor.darkMode") + `</option>
    </select>
  </label>
  <label>` + t("editor.fontSize") + `
    <input type="number" data-setting="fontSize" min="` + strconv.Itoa(workspace.MinFontSize) + `" max="` + strconv.Itoa(workspace.MaxFontSize) + `">
  </label>
  <label>` + t("editor.fontFamily") + `
    <select data-setting="fontFamily">`)
		for _, f := range workspace.FontFamilies {
			b.WriteString(`<option value="` + templ.EscapeString(f) + `">` + templ.EscapeString(f) + `</option>`)
		}
		b.WriteString(`</select>
  </label>
</header>
<main class="panes">
  <section class="editors">
    <nav class="tabs">
      <button data-tab="html">` + t("tabs.html") + `</button>
      <button data-tab="css">` + t("tabs.css") + `</button>
      <button data-tab="javascript">` + t("tabs.javascript") + `</button>
    </nav>
`)
		for _, buf := range workspace.Buffers() {
			name := string(buf)
			b.WriteString(`    <textarea class="buffer" spellcheck="false" data-buffer="` + name + `" data-tab-group="` + tabGroup(buf) + `"></textarea>` + "\n")
		}
		b.WriteString(`  </section>
  <section class="preview">
    <h2>` + t("preview.title") + `</h2>
    <iframe id="preview" sandbox="allow-scripts allow-modals" title="` + t("preview.title") + `"></iframe>
    <p id="preview-degraded" hidden></p>
  </section>
  <aside class="side">
    <h3>` + t("preview.libraries") + `</h3>
    <ul id="libraries"></ul>
    <select id="library-catalog"></select>
    <button data-action="add-library">+</button>
    <h3>` + t("sounds.title") + `</h3>
    <label>` + t("sounds.type") + `
      <select data-sound="soundType">`)
		for _, k := range sound.Kinds() {
			b.WriteString(`<option value="` + string(k) + `">` + t("sounds."+string(k)) + `</option>`)
		}
		b.WriteString(`</select>
    </label>
    <label>` + t("sounds.volume") + ` <input type="range" min="0" max="1" step="0.05" data-sound="soundVolume"></label>
    <label><input type="checkbox" data-sound="soundMuted"> ` + t("sounds.mute") + `</label>
    <h3>` + t("autoTyping.title") + `</h3>
    <textarea id="autotype-script" placeholder="` + t("autoTyping.code") + `"></textarea>
    <label>` + t("autoTyping.speed") + ` <input id="autotype-speed" type="number" min="` + strconv.Itoa(autotype.MinCharsPerSecond) + `" max="` + strconv.Itoa(autotype.MaxCharsPerSecond) + `" value="5"></label>
    <label>` + t("autoTyping.target") + `
      <select id="autotype-target">`)
		for _, buf := range workspace.Buffers() {
			b.WriteString(`<option value="` + string(buf) + `">` + string(buf) + `</option>`)
		}
		b.WriteString(`</select>
    </label>
    <button data-action="autotype-start">` + t("autoTyping.play") + `</button>
    <button data-action="autotype-pause">` + t("autoTyping.pause") + `</button>
    <button data-action="autotype-stop">` + t("autoTyping.stop") + `</button>
  </aside>
</main>
<div id="toasts"></div>
<script>window.CODEPAD_MESSAGES = ` + string(catalog) + `;</script>
<script>` + editorScript + `</script>
</body>
</html>
`)
		_, err = io.WriteString(w, b.String())
		return err
	})
}

func tabGroup(b workspace.Buffer) string {
	switch b {
	case workspace.BufferCSS, workspace.BufferSCSS:
		return "css"
	case workspace.BufferJavaScript, workspace.BufferTypeScript:
		return "javascript"
	default:
		return "html"
	}
}

const editorStyles = `
:root { --bg: #1e1e1e; --fg: #ddd; --panel: #252526; --accent: #0e639c; }
[data-theme="light"] { --bg: #fff; --fg: #222; --panel: #f3f3f3; --accent: #0366d6; }
* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, sans-serif; background: var(--bg); color: var(--fg); }
.toolbar { display: flex; gap: .5rem; align-items: center; padding: .5rem; background: var(--panel); }
.panes { display: grid; grid-template-columns: 1fr 1fr 260px; height: calc(100vh - 48px); }
.editors, .preview, .side { display: flex; flex-direction: column; padding: .5rem; overflow: auto; }
.buffer { flex: 1; width: 100%; min-height: 8rem; background: var(--bg); color: var(--fg); font-family: var(--font-family, monospace); font-size: var(--font-size, 14px); }
.buffer[hidden] { display: none; }
iframe { flex: 1; width: 100%; border: 1px solid var(--panel); background: #fff; }
#toasts { position: fixed; bottom: 1rem; inset-inline-end: 1rem; display: flex; flex-direction: column; gap: .5rem; }
.toast { padding: .5rem 1rem; border-radius: 4px; background: var(--accent); color: #fff; }
.toast.error { background: #b00020; }
`

const editorScript = `
(function () {
  var messages = window.CODEPAD_MESSAGES || {};
  var clientId = "";
  var buffers = {};
  document.querySelectorAll("[data-buffer]").forEach(function (el) { buffers[el.dataset.buffer] = el; });

  function toast(level, key, fallback) {
    var el = document.createElement("div");
    el.className = "toast " + level;
    el.textContent = messages[key] || fallback || key;
    document.getElementById("toasts").appendChild(el);
    setTimeout(function () { el.remove(); }, 3000);
  }

  function api(method, path, body) {
    var opts = { method: method, headers: { "Content-Type": "application/json" } };
    if (body !== undefined) opts.body = JSON.stringify(body);
    return fetch(path, opts);
  }

  function showTab(group) {
    document.querySelectorAll("[data-buffer]").forEach(function (el) { el.hidden = el.dataset.tabGroup !== group; });
  }

  function applySettings(s) {
    document.documentElement.dataset.theme = s.theme;
    document.documentElement.style.setProperty("--font-size", s.fontSize + "px");
    document.documentElement.style.setProperty("--font-family", s.fontFamily);
    document.querySelector("[data-setting=theme]").value = s.theme;
    document.querySelector("[data-setting=fontSize]").value = s.fontSize;
    document.querySelector("[data-setting=fontFamily]").value = s.fontFamily;
    if (s.sound) {
      document.querySelector("[data-sound=soundType]").value = s.sound.soundType;
      document.querySelector("[data-sound=soundVolume]").value = s.sound.soundVolume;
      document.querySelector("[data-sound=soundMuted]").checked = s.sound.soundMuted;
    }
  }

  function renderLibraries(libs) {
    var list = document.getElementById("libraries");
    list.innerHTML = "";
    (libs || []).forEach(function (url) {
      var li = document.createElement("li");
      li.textContent = url;
      var rm = document.createElement("button");
      rm.textContent = "x";
      rm.onclick = function () { api("DELETE", "/api/libraries", { url: url }); };
      li.appendChild(rm);
      list.appendChild(li);
    });
  }

  function setPreview(url) {
    var frame = document.getElementById("preview");
    var degraded = document.getElementById("preview-degraded");
    degraded.hidden = true;
    if (url && frame.getAttribute("src") !== url) frame.setAttribute("src", url);
  }

  function applyState(msg) {
    if (msg.clientId) clientId = msg.clientId;
    var doc = msg.document || {};
    Object.keys(buffers).forEach(function (name) {
      if (doc[name] !== undefined && buffers[name].value !== doc[name]) buffers[name].value = doc[name];
    });
    renderLibraries(msg.libraries);
    if (msg.settings) applySettings(msg.settings);
    if (msg.preview && msg.preview.url) setPreview(msg.preview.url);
  }

  function playSound(msg) {
    try {
      var audio = new Audio("data:audio/wav;base64," + msg.wav);
      audio.play().catch(function () {});
    } catch (e) {}
  }

  var socket;
  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    socket = new WebSocket(proto + "//" + location.host + "/ws/editor");
    socket.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      switch (msg.type) {
        case "state": applyState(msg); break;
        case "buffer":
          if (msg.origin && msg.origin === clientId) break;
          if (buffers[msg.buffer] && buffers[msg.buffer].value !== msg.text) buffers[msg.buffer].value = msg.text;
          break;
        case "preview_context": setPreview(msg.url); break;
        case "preview_degraded":
          var d = document.getElementById("preview-degraded");
          d.textContent = messages["preview.degraded"] || msg.message;
          d.hidden = false;
          break;
        case "notification": toast(msg.level, msg.key, msg.message); break;
        case "sound": playSound(msg); break;
      }
    };
    socket.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();

  Object.keys(buffers).forEach(function (name) {
    buffers[name].addEventListener("input", function () {
      if (socket && socket.readyState === WebSocket.OPEN) {
        socket.send(JSON.stringify({ type: "edit", buffer: name, text: buffers[name].value }));
      }
    });
  });

  document.querySelectorAll("[data-tab]").forEach(function (el) {
    el.onclick = function () { showTab(el.dataset.tab); };
  });
  showTab("html");

  function currentSettings() {
    return {
      theme: document.querySelector("[data-setting=theme]").value,
      fontSize: parseInt(document.querySelector("[data-setting=fontSize]").value, 10),
      fontFamily: document.querySelector("[data-setting=fontFamily]").value,
      sound: {
        soundType: document.querySelector("[data-sound=soundType]").value,
        soundVolume: parseFloat(document.querySelector("[data-sound=soundVolume]").value),
        soundMuted: document.querySelector("[data-sound=soundMuted]").checked
      }
    };
  }
  document.querySelectorAll("[data-setting],[data-sound]").forEach(function (el) {
    el.addEventListener("change", function () { api("PUT", "/api/settings", currentSettings()); });
  });

  fetch("/api/libraries/catalog").then(function (r) { return r.json(); }).then(function (libs) {
    var sel = document.getElementById("library-catalog");
    libs.forEach(function (lib) {
      var opt = document.createElement("option");
      opt.value = lib.url;
      opt.textContent = lib.name;
      sel.appendChild(opt);
    });
  });

  var actions = {
    "save": function () { api("POST", "/api/project/save", {}); },
    "load": function () { api("POST", "/api/project/load"); },
    "download": function () { window.location = "/api/export"; },
    "add-library": function () { api("POST", "/api/libraries", { url: document.getElementById("library-catalog").value }); },
    "autotype-start": function () {
      api("POST", "/api/autotype/start", {
        script: document.getElementById("autotype-script").value,
        target: document.getElementById("autotype-target").value,
        charsPerSecond: parseInt(document.getElementById("autotype-speed").value, 10)
      });
    },
    "autotype-pause": function () { api("POST", "/api/autotype/pause"); },
    "autotype-stop": function () { api("POST", "/api/autotype/stop"); }
  };
  document.querySelectorAll("[data-action]").forEach(function (el) {
    el.onclick = actions[el.dataset.action];
  });
})();
`
