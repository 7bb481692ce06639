package rules

import (
	"regexp"
	"sort"
	"strings"
)

// Message is the normalized view of an inbound email the engine matches against
type Message struct {
	FromEmail string
	FromName  string
	Subject   string
	BodyText  string
	Snippet   string
}

// Engine evaluates a prioritized rule set against messages. It is immutable
// after construction and safe to share across concurrent evaluations; rule
// changes are applied by building a new engine.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine from a rule list, sorted by priority ascending.
// The sort is stable so rules with equal priority keep their definition order.
func NewEngine(ruleList []Rule) *Engine {
	sorted := make([]Rule, len(ruleList))
	copy(sorted, ruleList)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Engine{rules: sorted}
}

// Rules returns the engine's rules in evaluation order
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate returns the first active rule whose condition tree matches the
// message, or nil if no active rule matches.
func (e *Engine) Evaluate(msg Message) *Rule {
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.IsActive && matchGroup(msg, rule.Conditions) {
			return rule
		}
	}
	return nil
}

// EvaluateAll returns every active matching rule in priority order
func (e *Engine) EvaluateAll(msg Message) []Rule {
	var matched []Rule
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.IsActive && matchGroup(msg, rule.Conditions) {
			matched = append(matched, *rule)
		}
	}
	return matched
}

// matchGroup recursively evaluates a condition group. Empty groups never
// match, for AND as well as OR.
func matchGroup(msg Message, group Group) bool {
	if len(group.Children) == 0 {
		return false
	}

	switch group.Operator {
	case GroupAnd:
		for _, child := range group.Children {
			if !matchNode(msg, child) {
				return false
			}
		}
		return true
	case GroupOr:
		for _, child := range group.Children {
			if matchNode(msg, child) {
				return true
			}
		}
		return false
	}
	return false
}

func matchNode(msg Message, node Node) bool {
	switch n := node.(type) {
	case Group:
		return matchGroup(msg, n)
	case Condition:
		return matchCondition(msg, n)
	}
	return false
}

// matchCondition evaluates one leaf predicate. Data-shape problems (wrong
// value type for the operator, invalid regex) resolve to non-match rather
// than an error.
func matchCondition(msg Message, cond Condition) bool {
	fieldValue := fieldValueOf(msg, cond.Field)
	target := cond.Value

	if !cond.CaseSensitive {
		fieldValue = strings.ToLower(fieldValue)
		if target.IsList {
			lowered := make([]string, len(target.List))
			for i, item := range target.List {
				lowered[i] = strings.ToLower(item)
			}
			target.List = lowered
		} else {
			target.Str = strings.ToLower(target.Str)
		}
	}

	switch cond.Operator {
	case OpEquals:
		return !target.IsList && fieldValue == target.Str
	case OpNotEquals:
		return !target.IsList && fieldValue != target.Str
	case OpContains:
		return !target.IsList && strings.Contains(fieldValue, target.Str)
	case OpNotContains:
		return !target.IsList && !strings.Contains(fieldValue, target.Str)
	case OpStartsWith:
		return !target.IsList && strings.HasPrefix(fieldValue, target.Str)
	case OpEndsWith:
		return !target.IsList && strings.HasSuffix(fieldValue, target.Str)
	case OpMatchesRegex:
		if target.IsList {
			return false
		}
		re, err := regexp.Compile(target.Str)
		if err != nil {
			return false
		}
		return re.MatchString(fieldValue)
	case OpInList:
		if !target.IsList {
			return false
		}
		for _, item := range target.List {
			if fieldValue == item {
				return true
			}
		}
		return false
	}
	return false
}

// fieldValueOf extracts the named field from a message; unknown fields
// resolve to the empty string.
func fieldValueOf(msg Message, field Field) string {
	switch field {
	case FieldFromEmail:
		return msg.FromEmail
	case FieldFromName:
		return msg.FromName
	case FieldSubject:
		return msg.Subject
	case FieldBodyText:
		return msg.BodyText
	case FieldSnippet:
		return msg.Snippet
	}
	return ""
}
