package gate

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/giantswarm/invite-gate/probe"
	"github.com/giantswarm/invite-gate/resource"
	"github.com/giantswarm/invite-gate/security"
)

// notFoundPage mimics a stock nginx error page. It is served for unknown
// resources, rejected clients and rate-limited clients alike.
const notFoundPage = `<html>
<head><title>404 Not Found</title></head>
<body>
<center><h1>404 Not Found</h1></center>
<hr><center>nginx</center>
</body>
</html>
`

// bootstrapTemplate drives the two-phase exchange in the browser. Desktop
// clients are redirected as soon as the link arrives; mobile clients get a
// countdown button that opens the native app.
//
// SECURITY: inline script and style carry the per-response CSP nonce. The
// page never contains the resource secret; the link is only fetched after a
// successful redemption.
const bootstrapTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0, maximum-scale=1.0, user-scalable=no">
<title>{{.DisplayName}}</title>
<meta property="og:type" content="website">
<meta property="og:title" content="{{.DisplayName}}">
{{- if .Description}}
<meta property="og:description" content="{{.Description}}">
{{- end}}
{{- if .ImageURL}}
<meta property="og:image" content="{{.ImageURL}}">
{{- end}}
{{- if .PageURL}}
<meta property="og:url" content="{{.PageURL}}">
{{- end}}
<style nonce="{{.Nonce}}">
body { margin: 0; background: #17212b; color: #f5f5f5; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; }
.container { max-width: 420px; margin: 0 auto; padding: 60px 24px; text-align: center; }
.logo svg { width: 96px; height: 96px; fill: #2aabee; }
h1 { font-size: 22px; margin: 20px 0 8px; }
.desc { color: #8c9aa9; font-size: 15px; line-height: 1.5; }
.tip { margin-top: 16px; padding: 12px; border-radius: 8px; background: #232e3c; font-size: 13px; color: #8c9aa9; }
.tip a { color: #2aabee; }
.btn { margin-top: 24px; width: 100%; padding: 14px; border: 0; border-radius: 10px; background: #2aabee; color: #fff; font-size: 16px; }
.btn:disabled { opacity: .6; }
.footer-note { margin-top: 20px; font-size: 13px; color: #536375; }
</style>
</head>
<body>
{{- if .Mobile}}
<div class="container">
<div class="logo"><svg viewBox="0 0 24 24"><path d="M20.665 3.717l-17.73 6.837c-1.21.486-1.203 1.161-.222 1.462l4.552 1.42l10.532-6.645c.498-.303.953-.14.579.192l-8.533 7.701h-.002l.002.001l-.314 4.692c.46 0 .663-.211.921-.46l2.211-2.15l4.599 3.397c.848.467 1.457.227 1.668-.785l3.019-14.228c.309-1.239-.473-1.8-1.282-1.434z"/></svg></div>
<h1>{{.DisplayName}}</h1>
<div class="desc">Tap the button below to join.</div>
{{- if .HelpURL}}
<div class="tip">{{.Tip}} <a href="{{.HelpURL}}" target="_blank" rel="noopener noreferrer">See how &gt;&gt;</a></div>
{{- end}}
<button id="mainBtn" class="btn" disabled><span id="btnText">View in Telegram ({{.DelaySeconds}}s)</span></button>
<div class="footer-note">Telegram must be installed on this device.</div>
</div>
{{- end}}
<script nonce="{{.Nonce}}">{{.ProbeScript}}</script>
<script nonce="{{.Nonce}}">
(function() {
  var resourceId = {{.ResourceID}};
  var mobile = {{.Mobile}};
  var delaySeconds = {{.DelaySeconds}};

  function fail() { document.body.innerHTML = ''; }

  function post(path, body) {
    return fetch(path, {
      method: 'POST',
      credentials: 'same-origin',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(body)
    }).then(function(r) {
      if (!r.ok) { throw new Error('status ' + r.status); }
      return r.json();
    });
  }

  function open(link) {
    if (!mobile) {
      window.location.replace(link);
      return;
    }
    var btn = document.getElementById('mainBtn');
    var btnText = document.getElementById('btnText');
    var left = delaySeconds;
    btn.disabled = false;
    btn.onclick = function() { window.location.href = link; };
    var timer = setInterval(function() {
      left--;
      if (left > 0) {
        btnText.textContent = 'View in Telegram (' + left + 's)';
      } else {
        clearInterval(timer);
        btnText.textContent = 'Opening Telegram...';
        window.location.replace(link);
      }
    }, 1000);
  }

  var report = window.gateProbe ? window.gateProbe() : null;
  if (report && report.suspicious) { fail(); return; }

  var ts = Math.floor(Date.now() / 1000);
  post('/api/get-signature', { resourceId: resourceId, timestamp: ts, probe: report })
    .then(function(r) {
      return post('/api/get-link', { resourceId: resourceId, timestamp: ts, signature: r.signature });
    })
    .then(function(r) { open(r.link); })
    .catch(fail);
})();
</script>
</body>
</html>
`

// Device help tips shown next to the HelpURL link.
const (
	tipAndroid = "If the content is hidden, enable sensitive content in your Telegram settings."
	tipIOS     = "If the group is restricted on this device, follow the guide to lift the restriction."
)

type bootstrapData struct {
	ResourceID   string
	DisplayName  string
	Description  string
	ImageURL     string
	PageURL      string
	HelpURL      string
	Tip          string
	Mobile       bool
	DelaySeconds int
	Nonce        string
	ProbeScript  template.JS
}

type pageRenderer struct {
	bootstrap   *template.Template
	probeScript template.JS
	config      *Config
}

func newPageRenderer(config *Config) (*pageRenderer, error) {
	tmpl, err := template.New("bootstrap").Parse(bootstrapTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap template: %w", err)
	}
	script, err := probe.Script()
	if err != nil {
		return nil, err
	}
	return &pageRenderer{
		bootstrap: tmpl,
		// Rendered from the static check table, never from request data.
		probeScript: template.JS(script), // #nosec G203
		config:      config,
	}, nil
}

func (p *pageRenderer) bootstrapData(res resource.Resource, device security.DeviceClass, nonce string) bootstrapData {
	data := bootstrapData{
		ResourceID:   res.ID,
		DisplayName:  res.DisplayName,
		Description:  p.config.Page.Description,
		ImageURL:     p.config.Page.ImageURL,
		HelpURL:      p.config.Page.HelpURL,
		Mobile:       device.IsMobile(),
		DelaySeconds: int(p.config.Page.RedirectDelay.Seconds()),
		Nonce:        nonce,
		ProbeScript:  p.probeScript,
	}
	if data.DelaySeconds < 1 {
		data.DelaySeconds = 1
	}
	if p.config.ServerURL != "" {
		data.PageURL = p.config.ServerURL + "/" + res.ID
	}
	switch device {
	case security.DeviceAndroid:
		data.Tip = tipAndroid
	case security.DeviceIOS:
		data.Tip = tipIOS
	}
	return data
}

// writeBootstrap renders the page into a buffer first so a template error
// never produces a half-written 200.
func (p *pageRenderer) writeBootstrap(w http.ResponseWriter, res resource.Resource, device security.DeviceClass) error {
	nonce := security.GenerateNonce()
	var buf bytes.Buffer
	if err := p.bootstrap.Execute(&buf, p.bootstrapData(res, device, nonce)); err != nil {
		return fmt.Errorf("failed to render bootstrap page: %w", err)
	}
	security.SetPageSecurityHeaders(w, p.config.ServerURL, nonce)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}

// writeNotFoundPage writes the nginx-style page with the given status.
func writeNotFoundPage(w http.ResponseWriter, serverURL string, status int) {
	security.SetSecurityHeaders(w, serverURL)
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Server", "nginx")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(notFoundPage))
}
