// Package redirect defines the redirect rule the enforcer installs and the
// primitives that apply it.
package redirect

import "context"

// RuleID is the fixed id of the single redirect rule.
const RuleID = 1000

// Rule mirrors a browser declarativeNetRequest dynamic rule.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

type Action struct {
	Type     string   `json:"type"`
	Redirect Redirect `json:"redirect"`
}

type Redirect struct {
	URL string `json:"url"`
}

type Condition struct {
	URLFilter              string   `json:"urlFilter"`
	ResourceTypes          []string `json:"resourceTypes"`
	ExcludedRequestDomains []string `json:"excludedRequestDomains"`
}

// NewRule builds the rule that sends every top-level navigation to target,
// except navigations to the excluded domains.
func NewRule(target string, excluded []string) Rule {
	domains := append([]string(nil), excluded...)
	if domains == nil {
		domains = []string{}
	}
	return Rule{
		ID:       RuleID,
		Priority: 1,
		Action: Action{
			Type:     "redirect",
			Redirect: Redirect{URL: target},
		},
		Condition: Condition{
			URLFilter:              "|http",
			ResourceTypes:          []string{"main_frame"},
			ExcludedRequestDomains: domains,
		},
	}
}

// Primitive installs and removes the redirect rule. Implementations replace
// any previously installed rule.
type Primitive interface {
	Install(ctx context.Context, rule Rule) error
	Remove(ctx context.Context) error
}
