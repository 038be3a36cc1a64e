// Package probe implements the client integrity probe: a small set of
// browser signals that hint at an automated client, scored with fixed
// weights against a threshold.
//
// The probe runs in the client and is trivially bypassed. The server treats a
// self-reported suspicious result as a reason to refuse, never a favourable
// one as a reason to trust.
package probe

// Threshold is the score at or above which a client is considered automated.
const Threshold = 8

// Signal names, as sent by the bootstrap page.
const (
	SignalWebDriver            = "webdriver"
	SignalNoPlugins            = "noPlugins"
	SignalHeadlessUserAgent    = "headlessUserAgent"
	SignalMissingChromeRuntime = "missingChromeRuntime"
	SignalNoLanguages          = "noLanguages"
)

// Check is one weighted signal together with the browser expression that
// detects it.
type Check struct {
	Name   string
	Weight int
	// Expr is a JavaScript boolean expression evaluated in the page.
	Expr string
}

// Checks is the signal table shared by Score and Script.
var Checks = []Check{
	{Name: SignalWebDriver, Weight: 5, Expr: `!!navigator.webdriver`},
	{Name: SignalNoPlugins, Weight: 3, Expr: `!!navigator.plugins && navigator.plugins.length === 0`},
	{Name: SignalHeadlessUserAgent, Weight: 5, Expr: `/HeadlessChrome|PhantomJS|Nightmare/i.test(navigator.userAgent || '')`},
	{Name: SignalMissingChromeRuntime, Weight: 3, Expr: `typeof window.chrome !== 'undefined' && !window.chrome.runtime`},
	{Name: SignalNoLanguages, Weight: 2, Expr: `!!navigator.languages && navigator.languages.length === 0`},
}

// Signals is the set of observations a client reports.
type Signals struct {
	WebDriver            bool `json:"webdriver"`
	NoPlugins            bool `json:"noPlugins"`
	HeadlessUserAgent    bool `json:"headlessUserAgent"`
	MissingChromeRuntime bool `json:"missingChromeRuntime"`
	NoLanguages          bool `json:"noLanguages"`
}

func (s Signals) has(name string) bool {
	switch name {
	case SignalWebDriver:
		return s.WebDriver
	case SignalNoPlugins:
		return s.NoPlugins
	case SignalHeadlessUserAgent:
		return s.HeadlessUserAgent
	case SignalMissingChromeRuntime:
		return s.MissingChromeRuntime
	case SignalNoLanguages:
		return s.NoLanguages
	}
	return false
}

// Score sums the weights of the signals that are set.
func Score(s Signals) int {
	score := 0
	for _, c := range Checks {
		if s.has(c.Name) {
			score += c.Weight
		}
	}
	return score
}

// Suspicious reports whether score reaches Threshold.
func Suspicious(score int) bool {
	return score >= Threshold
}

// Report is the optional probe object a client attaches to its issuance
// request.
type Report struct {
	Score   *int     `json:"score,omitempty"`
	Signals *Signals `json:"signals,omitempty"`
}

// Evaluate returns the effective score of a report and whether it is
// suspicious. The larger of the claimed score and the score recomputed from
// the reported signals wins, so a client cannot talk its score down while
// admitting to a signal. A nil report scores zero.
func (r *Report) Evaluate() (int, bool) {
	if r == nil {
		return 0, false
	}
	score := 0
	if r.Score != nil && *r.Score > 0 {
		score = *r.Score
	}
	if r.Signals != nil {
		if s := Score(*r.Signals); s > score {
			score = s
		}
	}
	return score, Suspicious(score)
}
