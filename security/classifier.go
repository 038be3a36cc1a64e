package security

import (
	"regexp"
	"unicode/utf8"
)

// Verdict is the two-valued outcome of traffic classification.
type Verdict int

const (
	// VerdictHuman means no automation indicator was found.
	VerdictHuman Verdict = iota
	// VerdictSuspectedBot means the identification string looks automated.
	VerdictSuspectedBot
)

// String returns the verdict label used in logs and span attributes.
func (v Verdict) String() string {
	if v == VerdictHuman {
		return "human"
	}
	return "suspected_bot"
}

// MinIdentificationLength is the shortest identification string a browser is
// expected to send. Anything shorter is treated as automated.
const MinIdentificationLength = 10

// RuleTooShort is the rule name reported for absent or short identification strings.
const RuleTooShort = "too-short"

// Rule is a named automation indicator.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultRules is the built-in rule set. All patterns are case-insensitive.
var DefaultRules = []Rule{
	{Name: "automation-terms", Pattern: regexp.MustCompile(`(?i)bot|spider|crawl|scrape`)},
	{Name: "scripted-clients", Pattern: regexp.MustCompile(`(?i)curl|wget|python|java|go-http`)},
	{Name: "headless-engines", Pattern: regexp.MustCompile(`(?i)headless|phantom|nightmare|selenium`)},
	{Name: "scraping-libraries", Pattern: regexp.MustCompile(`(?i)scrapy|beautifulsoup|mechanize`)},
}

// Classifier decides whether a client identification string (User-Agent)
// belongs to a person or to an automated client. It holds no mutable state
// and is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules, evaluated in order.
// With no rules, DefaultRules is used.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the verdict for an identification string.
func (c *Classifier) Classify(identification string) Verdict {
	v, _ := c.ClassifyWithReason(identification)
	return v
}

// ClassifyWithReason returns the verdict and, for VerdictSuspectedBot, the
// name of the first rule that matched.
func (c *Classifier) ClassifyWithReason(identification string) (Verdict, string) {
	if utf8.RuneCountInString(identification) < MinIdentificationLength {
		return VerdictSuspectedBot, RuleTooShort
	}
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(identification) {
			return VerdictSuspectedBot, rule.Name
		}
	}
	return VerdictHuman, ""
}
