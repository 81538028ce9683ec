package view

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/livescript/livescript/internal/httputil"
	"github.com/livescript/livescript/internal/resolver"
)

type pageConfig struct {
	Variant string `json:"variant"`
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Audio   bool   `json:"audio"`
	Control bool   `json:"control"`
	// Conference is set on a group's control page, which adds the
	// presentation switcher and share links.
	Conference     bool        `json:"conference"`
	RedirectPrefix string       `json:"redirectPrefix,omitempty"`
	Defaults       Preferences  `json:"defaults"`
	Fonts          FontControls `json:"fonts"`
	// MutedKey is where an audio page keeps the mute toggle.
	MutedKey string `json:"mutedKey,omitempty"`
}

type pageData struct {
	Label  string
	Nonce  string
	Config pageConfig
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Label}} · livescript</title>
    <style nonce="{{.Nonce}}">
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            background: #000;
            color: #fff;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Hiragino Sans", sans-serif;
            min-height: 100vh;
        }
        .corner { position: fixed; padding: 12px; color: #9ca3af; font-size: 12px; }
        .top-left { top: 0; left: 0; }
        .top-right { top: 0; right: 0; }
        .bottom-left { bottom: 0; left: 0; }
        .bottom-right { bottom: 0; right: 0; display: flex; gap: 8px; }
        #stage {
            position: fixed; top: 50%; left: 50%; transform: translate(-50%, -50%);
            width: 90%; text-align: center; line-height: 1.8; font-weight: bold;
        }
        #stage .sub { color: #9ca3af; font-weight: normal; }
        #stage.waiting { color: #4b5563; font-weight: normal; }
        #lines { list-style: none; padding: 56px 16px 96px; max-width: 960px; margin: 0 auto; }
        #lines li { border: 1px solid #374151; border-radius: 8px; padding: 8px 12px; margin-bottom: 8px; }
        #lines li.active { border: 2px solid #22c55e; font-weight: bold; }
        #lines li .meta { color: #6b7280; font-size: 12px; display: flex; gap: 12px; }
        #lines li .sub { color: #9ca3af; }
        .control #lines li { cursor: pointer; }
        .speaker #stage { display: none; }
        .speaker #lines { padding-top: 30vh; }
        .speaker #lines li { border: none; color: #6b7280; }
        .speaker #lines li.active { color: #fff; border: none; }
        button, input {
            background: transparent; color: #fff; border: 1px solid #6b7280;
            border-radius: 8px; padding: 4px 10px; font-size: 14px;
        }
        button.primary { background: #3b82f6; border-color: #3b82f6; }
        button.muted { color: #6b7280; }
        input { width: 64px; }
        .overlay {
            position: fixed; inset: 0; z-index: 10; background: #000;
            display: flex; flex-direction: column; gap: 16px; align-items: center; justify-content: center;
        }
        .hidden { display: none !important; }
        #panel {
            position: fixed; top: 40px; right: 12px; width: 280px; z-index: 5;
            background: #111827; border: 1px solid #374151; border-radius: 8px; padding: 12px;
            display: flex; flex-direction: column; gap: 8px; font-size: 13px;
        }
        #panel .live { color: #22c55e; }
        #panel .selected { font-weight: bold; text-decoration: underline; }
    </style>
</head>
<body class="{{.Config.Variant}}{{if .Config.Control}} control{{end}}">
    <div class="corner top-left"><span id="title"></span></div>
    <div class="corner top-right"><span id="order"></span></div>
    <div class="corner bottom-left"><span id="sync"></span></div>
    <div class="corner bottom-right">
        {{if .Config.Audio}}<button id="mute" type="button">Sound on</button>{{end}}
        {{if eq .Config.Variant "speaker"}}
        <input id="main-size" type="number" step="0.1" min="0.5" aria-label="Main font size">
        <input id="sub-size" type="number" step="0.1" min="0.5" aria-label="Sub font size">
        {{else}}
        <button id="font-down" type="button" aria-label="Smaller text">A-</button>
        <button id="font-up" type="button" aria-label="Larger text">A+</button>
        {{end}}
        {{if .Config.Control}}<button id="reset" type="button">Clear</button>{{end}}
    </div>

    <div id="stage" class="waiting"><p id="text"></p><p id="sub" class="sub"></p></div>
    <ul id="lines"></ul>

    {{if .Config.Audio}}
    <div id="gate" class="overlay hidden">
        <p>Tap to enable audio on this device.</p>
        <button id="load-audio" class="primary" type="button">Load audio</button>
        <button id="skip-audio" type="button">Continue without audio</button>
        <p id="gate-progress" class="hidden"></p>
    </div>
    {{end}}

    {{if .Config.Control}}
    <div id="login" class="overlay hidden">
        <p>Operator password</p>
        <input id="password" type="password" autocomplete="current-password">
        <button id="login-submit" class="primary" type="button">Sign in</button>
        <p id="login-error"></p>
    </div>
    {{end}}

    {{if .Config.Conference}}
    <div id="panel">
        <strong>Presentations</strong>
        <div id="switcher"></div>
        <button id="promote" class="primary hidden" type="button">Show to audience</button>
        <strong>Share links</strong>
        <div id="links"></div>
    </div>
    {{end}}

    <script nonce="{{.Nonce}}">
    (function () {
        var cfg = {{.Config}};
        var ws = null;
        var audios = {};
        var audioURLs = {};
        var model = null;
        var selected = cfg.conference ? "" : cfg.id;
        var token = localStorage.getItem("operatorToken") || "";
        var $ = function (id) { return document.getElementById(id); };

        var prefs = {};
        Object.keys(cfg.defaults).forEach(function (key) {
            var stored = parseFloat(localStorage.getItem(cfg.fonts.keys[key]));
            prefs[key] = isNaN(stored) ? cfg.defaults[key] : stored;
        });

        function savePref(key, value) {
            prefs[key] = Math.round(value * 10) / 10;
            localStorage.setItem(cfg.fonts.keys[key], String(prefs[key]));
            applyPrefs();
        }

        function applyPrefs() {
            if (cfg.variant === "speaker") {
                document.querySelectorAll("#lines li").forEach(function (li) {
                    li.style.fontSize = (li.classList.contains("active") ? prefs.mainFontSize : prefs.subFontSize) + "rem";
                });
                return;
            }
            $("stage").style.fontSize = prefs.fontSize + "rem";
        }

        function send(msg) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(msg));
            }
        }

        function connect(kind, id) {
            if (ws) {
                var old = ws;
                ws = null;
                old.close();
            }
            var proto = location.protocol === "https:" ? "wss://" : "ws://";
            var url = proto + location.host + "/api/live/" + kind + "/" +
                encodeURIComponent(id) + "?variant=" + encodeURIComponent(cfg.variant);
            if (cfg.mutedKey && localStorage.getItem(cfg.mutedKey) === "1") { url += "&muted=1"; }
            var sock = new WebSocket(url);
            sock.onmessage = function (ev) { handle(JSON.parse(ev.data)); };
            sock.onclose = function () {
                if (ws === sock) {
                    setTimeout(function () { if (ws === sock) { connect(kind, id); } }, 2000);
                }
            };
            ws = sock;
        }

        function handle(msg) {
            switch (msg.type) {
            case "state": render(msg.model); break;
            case "redirect":
                if (cfg.redirectPrefix) { location.replace(cfg.redirectPrefix + encodeURIComponent(msg.id)); }
                break;
            case "gate": renderGate(msg.progress, msg.queued); break;
            case "preload": preload(msg.id, msg.url); break;
            case "play": play(msg.id, msg.url, msg.rate); break;
            case "pause": if (audios[msg.id]) { audios[msg.id].pause(); } break;
            }
        }

        function audioFor(id, url) {
            if (!audios[id] || audioURLs[id] !== url) {
                var a = new Audio(url);
                a.onerror = function () { send({ type: "failed", id: id }); };
                audios[id] = a;
                audioURLs[id] = url;
            }
            return audios[id];
        }

        function preload(id, url) {
            var a = audioFor(id, url);
            var reported = false;
            a.preload = "auto";
            a.oncanplaythrough = function () {
                if (!reported) { reported = true; send({ type: "ready", id: id }); }
            };
            a.load();
        }

        function play(id, url, rate) {
            var a = audioFor(id, url);
            a.playbackRate = rate;
            a.currentTime = 0;
            var p = a.play();
            if (p && p.catch) { p.catch(function () {}); }
        }

        function renderGate(p, queued) {
            var gate = $("gate");
            if (!gate) { return; }
            gate.classList.toggle("hidden", p.state !== "locked" && p.state !== "loading");
            var progress = $("gate-progress");
            progress.classList.toggle("hidden", p.state !== "loading" && !queued);
            progress.textContent = queued ? "Audio will load when the presentation starts" : "Loading audio " + p.percent + "%";
            $("load-audio").disabled = p.state === "loading" || !!queued;
            var mute = $("mute");
            if (mute) {
                mute.classList.toggle("hidden", p.state === "no_audio");
                mute.classList.toggle("muted", p.muted);
                mute.textContent = p.muted ? "Sound off" : "Sound on";
                mute.dataset.muted = p.muted ? "1" : "";
                if (cfg.mutedKey) { localStorage.setItem(cfg.mutedKey, p.muted ? "1" : ""); }
            }
        }

        function render(m) {
            model = m;
            $("title").textContent = m.title;
            $("order").textContent = m.waiting ? "" : String(m.order);
            $("sync").textContent = m.syncId ? "ID : " + m.syncId : "";
            var stage = $("stage");
            stage.classList.toggle("waiting", m.waiting);
            $("text").textContent = m.waiting ? (m.loading ? "Loading…" : "Waiting…") : m.text;
            $("sub").textContent = m.waiting ? "" : (m.sub || "");

            var list = $("lines");
            list.textContent = "";
            m.lines.forEach(function (line) {
                var li = document.createElement("li");
                li.classList.toggle("active", line.active);
                if (cfg.control) {
                    var meta = document.createElement("div");
                    meta.className = "meta";
                    meta.textContent = line.order + (line.voice ? "  " + line.voice : "");
                    li.appendChild(meta);
                }
                var text = document.createElement("p");
                text.textContent = line.text;
                li.appendChild(text);
                if (cfg.variant === "presenter") {
                    var sub = document.createElement("p");
                    sub.className = "sub";
                    sub.textContent = line.sub || "No script";
                    li.appendChild(sub);
                }
                if (cfg.control) {
                    li.onclick = function () { api("POST", "/api/presentations/" + enc(selected) + "/jump", { transcriptId: line.id }); };
                }
                list.appendChild(li);
                if (line.active && cfg.control) { li.scrollIntoView({ block: "center" }); }
            });
            applyPrefs();
        }

        function enc(s) { return encodeURIComponent(s); }

        function api(method, path, body) {
            return fetch(path, {
                method: method,
                headers: { "Content-Type": "application/json", "Authorization": "Bearer " + token },
                body: body ? JSON.stringify(body) : undefined
            }).then(function (res) {
                if (res.status === 401) { showLogin(); throw new Error("unauthorized"); }
                if (res.status === 204) { return null; }
                return res.json();
            });
        }

        function showLogin() {
            var login = $("login");
            if (login) { login.classList.remove("hidden"); }
        }

        function loadSwitcher() {
            return api("GET", "/api/groups/" + enc(cfg.id) + "/presentations").then(function (items) {
                var live = "";
                items.forEach(function (it) { if (it.live) { live = it.id; } });
                if (!selected && items.length) { selected = live || items[0].id; connect("presentation", selected); }
                var box = $("switcher");
                box.textContent = "";
                items.forEach(function (it) {
                    var b = document.createElement("button");
                    b.type = "button";
                    b.textContent = it.title || it.id;
                    b.classList.toggle("live", it.live);
                    b.classList.toggle("selected", it.id === selected);
                    b.onclick = function () { selected = it.id; connect("presentation", selected); loadSwitcher(); };
                    box.appendChild(b);
                });
                $("promote").classList.toggle("hidden", !selected || selected === live);
            });
        }

        function loadLinks() {
            return api("GET", "/api/groups/" + enc(cfg.id) + "/links").then(function (links) {
                var box = $("links");
                box.textContent = "";
                [["Control", links.control], ["Audience", links.audience], ["Screen", links.screen], ["Speaker", links.speaker]].forEach(function (item) {
                    var b = document.createElement("button");
                    b.type = "button";
                    b.textContent = item[0];
                    b.onclick = function () {
                        navigator.clipboard.writeText(item[1]).then(function () { b.textContent = item[0] + " copied"; });
                    };
                    box.appendChild(b);
                });
            });
        }

        function startControl() {
            if (cfg.conference) {
                loadSwitcher().catch(function () {});
                loadLinks().catch(function () {});
            }
        }

        if ($("font-up")) {
            $("font-up").onclick = function () { savePref("fontSize", prefs.fontSize + cfg.fonts.step); };
            $("font-down").onclick = function () {
                if (prefs.fontSize <= cfg.fonts.min) { return; }
                savePref("fontSize", Math.max(cfg.fonts.min, prefs.fontSize - cfg.fonts.step));
            };
        }
        if ($("main-size")) {
            $("main-size").value = prefs.mainFontSize;
            $("sub-size").value = prefs.subFontSize;
            $("main-size").onchange = function (e) { savePref("mainFontSize", parseFloat(e.target.value) || cfg.defaults.mainFontSize); };
            $("sub-size").onchange = function (e) { savePref("subFontSize", parseFloat(e.target.value) || cfg.defaults.subFontSize); };
        }
        if ($("mute")) {
            $("mute").onclick = function () { send({ type: "mute", muted: !$("mute").dataset.muted }); };
            $("load-audio").onclick = function () { send({ type: "load_audio" }); };
            $("skip-audio").onclick = function () { send({ type: "skip_audio" }); };
        }
        if (cfg.control) {
            $("reset").onclick = function () { api("POST", "/api/presentations/" + enc(selected) + "/reset"); };
            $("login-submit").onclick = function () {
                fetch("/api/auth/login", {
                    method: "POST",
                    headers: { "Content-Type": "application/json" },
                    body: JSON.stringify({ password: $("password").value })
                }).then(function (res) {
                    if (!res.ok) { throw new Error("login failed"); }
                    return res.json();
                }).then(function (body) {
                    token = body.accessToken;
                    localStorage.setItem("operatorToken", token);
                    $("login").classList.add("hidden");
                    startControl();
                }).catch(function () { $("login-error").textContent = "Wrong password"; });
            };
            document.addEventListener("keydown", function (e) {
                if (!selected || e.target.tagName === "INPUT") { return; }
                var dir = "";
                if (e.key === "ArrowDown" || e.key === "ArrowRight") { dir = "next"; }
                if (e.key === "ArrowUp" || e.key === "ArrowLeft") { dir = "previous"; }
                if (!dir) { return; }
                e.preventDefault();
                api("POST", "/api/presentations/" + enc(selected) + "/advance", { direction: dir });
            });
            if ($("promote")) {
                $("promote").onclick = function () {
                    var title = model && model.title ? model.title : selected;
                    if (!window.confirm("Show \"" + title + "\" to the audience?")) { return; }
                    api("POST", "/api/groups/" + enc(cfg.id) + "/promote", { presentationId: selected, confirm: true })
                        .then(loadSwitcher);
                };
            }
            if (!token) { showLogin(); } else { startControl(); }
        }

        applyPrefs();
        if (!cfg.conference) {
            connect(cfg.kind, cfg.id);
        }
    })();
    </script>
</body>
</html>`))

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Page serves the screen for variant v. kind says whether the {id} URL
// parameter names a presentation or a conference group. redirectPrefix is
// the path a presentation-addressed page moves to when its group goes live
// with another presentation; group-addressed pages pass "".
func (h *Handler) Page(v Variant, kind resolver.Kind, redirectPrefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.NotFound(w, r)
			return
		}
		data := pageData{
			Label: v.Label,
			Nonce: httputil.NonceFromContext(r.Context()),
			Config: pageConfig{
				Variant:    v.Name,
				Kind:       string(kind),
				ID:         id,
				Audio:      v.Audio,
				Control:    v.Control,
				Conference: v.Control && kind == resolver.KindGroup,
				Defaults:   DefaultPreferences(),
				Fonts:      DefaultFontControls(),
			},
		}
		if v.Audio {
			data.Config.MutedKey = MutedKey
		}
		if kind == resolver.KindPresentation && v.FollowGroup {
			data.Config.RedirectPrefix = redirectPrefix
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := pageTemplate.Execute(w, data); err != nil {
			slog.Error("view: failed to render page", "variant", v.Name, "error", err)
		}
	}
}
