package rules

import (
	"errors"
	"testing"
)

func TestParseGroup(t *testing.T) {
	data := []byte(`{
		"operator": "AND",
		"rules": [
			{"field": "from_email", "operator": "ends_with", "value": "@example.com"},
			{
				"operator": "OR",
				"rules": [
					{"field": "subject", "operator": "contains", "value": "invoice"},
					{"field": "subject", "operator": "in_list", "value": ["billing", "payment"]}
				]
			}
		]
	}`)

	group, err := ParseGroup(data)
	if err != nil {
		t.Fatalf("ParseGroup failed: %v", err)
	}
	if group.Operator != GroupAnd {
		t.Errorf("expected AND, got %s", group.Operator)
	}
	if len(group.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(group.Children))
	}

	nested, ok := group.Children[1].(Group)
	if !ok {
		t.Fatalf("expected second child to be a nested group, got %T", group.Children[1])
	}
	if nested.Operator != GroupOr || len(nested.Children) != 2 {
		t.Errorf("nested group parsed wrong: %+v", nested)
	}

	leaf, ok := nested.Children[1].(Condition)
	if !ok {
		t.Fatalf("expected condition leaf, got %T", nested.Children[1])
	}
	if !leaf.Value.IsList || len(leaf.Value.List) != 2 {
		t.Errorf("list value parsed wrong: %+v", leaf.Value)
	}
}

func TestParseGroupRejectsUnknownNames(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{
			"unknown_field",
			`{"operator": "AND", "rules": [{"field": "cc_emails", "operator": "contains", "value": "x"}]}`,
			ErrUnknownField,
		},
		{
			"unknown_operator",
			`{"operator": "AND", "rules": [{"field": "subject", "operator": "fuzzy_match", "value": "x"}]}`,
			ErrUnknownOperator,
		},
		{
			"unknown_group_operator",
			`{"operator": "XOR", "rules": [{"field": "subject", "operator": "contains", "value": "x"}]}`,
			ErrUnknownGroupOperator,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGroup([]byte(tc.data))
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseRuleAction(t *testing.T) {
	for _, valid := range []string{"auto_respond", "draft_only", "ignore", "forward"} {
		if _, err := ParseRuleAction(valid); err != nil {
			t.Errorf("ParseRuleAction(%q) failed: %v", valid, err)
		}
	}

	if _, err := ParseRuleAction("archive"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestForwardTargets(t *testing.T) {
	single := ActionConfig{ForwardTo: ConditionValue{Str: "ops@example.com"}}
	if got := single.ForwardTargets(); len(got) != 1 || got[0] != "ops@example.com" {
		t.Errorf("single target: got %v", got)
	}

	list := ActionConfig{ForwardTo: ConditionValue{List: []string{"a@x.com", "  ", "b@x.com"}, IsList: true}}
	if got := list.ForwardTargets(); len(got) != 2 {
		t.Errorf("blank entries should be dropped: got %v", got)
	}

	empty := ActionConfig{}
	if got := empty.ForwardTargets(); got != nil {
		t.Errorf("empty config should have no targets: got %v", got)
	}
}
