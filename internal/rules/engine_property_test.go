package rules

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func condition(field Field, op FieldOperator, value string) Node {
	return Condition{
		Field:    field,
		Operator: op,
		Value:    ConditionValue{Str: value},
	}
}

func singleConditionRule(id uint, priority int, field Field, op FieldOperator, value string) Rule {
	return Rule{
		ID:       id,
		Name:     "rule",
		Priority: priority,
		Action:   ActionDraftOnly,
		Conditions: Group{
			Operator: GroupAnd,
			Children: []Node{condition(field, op, value)},
		},
		IsActive: true,
	}
}

// TestProperty_FirstMatchWins verifies that among matching rules, the one
// with the lowest priority value always wins, regardless of input order.
func TestProperty_FirstMatchWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("lowest_priority_matching_rule_wins", prop.ForAll(
		func(priorities []int) bool {
			if len(priorities) == 0 {
				return true
			}

			ruleList := make([]Rule, len(priorities))
			for i, p := range priorities {
				ruleList[i] = singleConditionRule(uint(i+1), p, FieldSubject, OpContains, "invoice")
			}

			engine := NewEngine(ruleList)
			matched := engine.Evaluate(Message{Subject: "Your invoice is ready"})
			if matched == nil {
				return false
			}

			for _, p := range priorities {
				if p < matched.Priority {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
	))

	properties.Property("ties_break_by_input_order", prop.ForAll(
		func(n int) bool {
			ruleList := make([]Rule, n)
			for i := 0; i < n; i++ {
				ruleList[i] = singleConditionRule(uint(i+1), 5, FieldSubject, OpContains, "invoice")
			}

			engine := NewEngine(ruleList)
			matched := engine.Evaluate(Message{Subject: "invoice attached"})
			return matched != nil && matched.ID == 1
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

// TestProperty_EmptyGroupsNeverMatch verifies that a rule whose condition
// group has no children cannot match any message, for both operators.
func TestProperty_EmptyGroupsNeverMatch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("empty_group_matches_nothing", prop.ForAll(
		func(subject string, useOr bool) bool {
			op := GroupAnd
			if useOr {
				op = GroupOr
			}
			rule := Rule{
				ID:         1,
				Priority:   0,
				Action:     ActionIgnore,
				Conditions: Group{Operator: op},
				IsActive:   true,
			}

			engine := NewEngine([]Rule{rule})
			return engine.Evaluate(Message{Subject: subject}) == nil
		},
		gen.AnyString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestProperty_CaseInsensitiveByDefault verifies that matching ignores case
// unless a condition opts into case sensitivity.
func TestProperty_CaseInsensitiveByDefault(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	wordGen := gen.SliceOfN(6, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("default_matching_ignores_case", prop.ForAll(
		func(word string) bool {
			rule := singleConditionRule(1, 0, FieldSubject, OpContains, strings.ToLower(word))
			engine := NewEngine([]Rule{rule})
			return engine.Evaluate(Message{Subject: strings.ToUpper(word)}) != nil
		},
		wordGen,
	))

	properties.Property("case_sensitive_rejects_wrong_case", prop.ForAll(
		func(word string) bool {
			lower := strings.ToLower(word)
			upper := strings.ToUpper(word)
			if lower == upper {
				return true
			}

			rule := Rule{
				ID:       1,
				Priority: 0,
				Action:   ActionDraftOnly,
				Conditions: Group{
					Operator: GroupAnd,
					Children: []Node{Condition{
						Field:         FieldSubject,
						Operator:      OpEquals,
						Value:         ConditionValue{Str: lower},
						CaseSensitive: true,
					}},
				},
				IsActive: true,
			}
			engine := NewEngine([]Rule{rule})
			return engine.Evaluate(Message{Subject: upper}) == nil &&
				engine.Evaluate(Message{Subject: lower}) != nil
		},
		wordGen,
	))

	properties.TestingRun(t)
}

func TestOperators(t *testing.T) {
	msg := Message{
		FromEmail: "alice@example.com",
		FromName:  "Alice Smith",
		Subject:   "Quarterly report attached",
		BodyText:  "Please find the quarterly report attached.",
		Snippet:   "Please find the quarterly...",
	}

	cases := []struct {
		name  string
		field Field
		op    FieldOperator
		value ConditionValue
		want  bool
	}{
		{"equals_match", FieldFromEmail, OpEquals, ConditionValue{Str: "ALICE@example.com"}, true},
		{"equals_miss", FieldFromEmail, OpEquals, ConditionValue{Str: "bob@example.com"}, false},
		{"not_equals", FieldFromEmail, OpNotEquals, ConditionValue{Str: "bob@example.com"}, true},
		{"contains", FieldSubject, OpContains, ConditionValue{Str: "report"}, true},
		{"not_contains", FieldSubject, OpNotContains, ConditionValue{Str: "urgent"}, true},
		{"starts_with", FieldSubject, OpStartsWith, ConditionValue{Str: "quarterly"}, true},
		{"ends_with", FieldSubject, OpEndsWith, ConditionValue{Str: "attached"}, true},
		{"matches_regex", FieldFromEmail, OpMatchesRegex, ConditionValue{Str: `^alice@.*\.com$`}, true},
		{"invalid_regex_never_matches", FieldFromEmail, OpMatchesRegex, ConditionValue{Str: `[unclosed`}, false},
		{"in_list", FieldFromEmail, OpInList, ConditionValue{List: []string{"BOB@x.com", "Alice@Example.com"}, IsList: true}, true},
		{"in_list_miss", FieldFromEmail, OpInList, ConditionValue{List: []string{"bob@x.com"}, IsList: true}, false},
		{"in_list_wrong_shape", FieldFromEmail, OpInList, ConditionValue{Str: "alice@example.com"}, false},
		{"equals_wrong_shape", FieldFromEmail, OpEquals, ConditionValue{List: []string{"alice@example.com"}, IsList: true}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := Rule{
				ID:       1,
				Priority: 0,
				Action:   ActionDraftOnly,
				Conditions: Group{
					Operator: GroupAnd,
					Children: []Node{Condition{Field: tc.field, Operator: tc.op, Value: tc.value}},
				},
				IsActive: true,
			}
			engine := NewEngine([]Rule{rule})
			got := engine.Evaluate(msg) != nil
			if got != tc.want {
				t.Errorf("%s: got match=%v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	// (from contains "boss" AND subject contains "urgent") OR subject contains "asap"
	rule := Rule{
		ID:       1,
		Priority: 0,
		Action:   ActionAutoRespond,
		Conditions: Group{
			Operator: GroupOr,
			Children: []Node{
				Group{
					Operator: GroupAnd,
					Children: []Node{
						condition(FieldFromEmail, OpContains, "boss"),
						condition(FieldSubject, OpContains, "urgent"),
					},
				},
				condition(FieldSubject, OpContains, "asap"),
			},
		},
		IsActive: true,
	}
	engine := NewEngine([]Rule{rule})

	if engine.Evaluate(Message{FromEmail: "boss@co.com", Subject: "urgent: budget"}) == nil {
		t.Error("expected nested AND branch to match")
	}
	if engine.Evaluate(Message{FromEmail: "peer@co.com", Subject: "need this ASAP"}) == nil {
		t.Error("expected OR fallback branch to match")
	}
	if engine.Evaluate(Message{FromEmail: "boss@co.com", Subject: "lunch?"}) != nil {
		t.Error("expected no match when neither branch holds")
	}
}

func TestInactiveRulesAreSkipped(t *testing.T) {
	inactive := singleConditionRule(1, 0, FieldSubject, OpContains, "invoice")
	inactive.IsActive = false
	active := singleConditionRule(2, 10, FieldSubject, OpContains, "invoice")

	engine := NewEngine([]Rule{inactive, active})
	matched := engine.Evaluate(Message{Subject: "invoice"})
	if matched == nil || matched.ID != 2 {
		t.Errorf("expected active rule 2 to match, got %+v", matched)
	}
}
