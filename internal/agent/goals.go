package agent

import (
	"strings"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// GoalMatcher evaluates goal rules against a clicked element and its
// ancestors.
type GoalMatcher struct {
	rules []domain.GoalRule
}

// NewGoalMatcher creates a matcher for rules. Rules are used as served;
// the collector only serves active ones.
func NewGoalMatcher(rules []domain.GoalRule) *GoalMatcher {
	return &GoalMatcher{rules: rules}
}

// Match walks from target up to, but not including, body and returns every
// (element, rule) hit in walk order. A rule matching several ancestors is
// returned once per ancestor.
func (m *GoalMatcher) Match(target *Element) []domain.GoalRule {
	if len(m.rules) == 0 {
		return nil
	}

	var hits []domain.GoalRule
	for el := target; el != nil && el.Tag != "body"; el = el.Parent {
		for _, rule := range m.rules {
			if ruleMatches(rule, el) {
				hits = append(hits, rule)
			}
		}
	}
	return hits
}

func ruleMatches(rule domain.GoalRule, el *Element) bool {
	switch rule.MatchType {
	case domain.MatchCSSClass:
		return el.HasClass(rule.MatchValue)
	case domain.MatchCSSID:
		return el.ID != "" && el.ID == rule.MatchValue
	case domain.MatchTextContains:
		text := el.InnerText()
		return text != "" && strings.Contains(text, rule.MatchValue)
	case domain.MatchHrefContains:
		return el.Href != "" && strings.Contains(el.Href, rule.MatchValue)
	default:
		return false
	}
}
