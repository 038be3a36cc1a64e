package probe

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// The rendered script defines window.gateProbe, which returns
// {score, suspicious, signals} in the same shape as Report.
var scriptTemplate = template.Must(template.New("probe").Parse(`(function(){
  function run() {
    var signals = {};
    var score = 0;
{{- range .Checks}}
    try { signals.{{.Name}} = ({{.Expr}}); } catch (e) { signals.{{.Name}} = false; }
    if (signals.{{.Name}}) score += {{.Weight}};
{{- end}}
    return { score: score, suspicious: score >= {{.Threshold}}, signals: signals };
  }
  window.gateProbe = run;
})();
`))

var (
	scriptOnce sync.Once
	script     string
	scriptErr  error
)

// Script returns the JavaScript that evaluates Checks in the browser.
// It is rendered once and cached.
func Script() (string, error) {
	scriptOnce.Do(func() {
		var buf bytes.Buffer
		err := scriptTemplate.Execute(&buf, struct {
			Checks    []Check
			Threshold int
		}{Checks: Checks, Threshold: Threshold})
		if err != nil {
			scriptErr = fmt.Errorf("failed to render probe script: %w", err)
			return
		}
		script = buf.String()
	})
	return script, scriptErr
}
