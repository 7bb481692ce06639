package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownField indicates a condition references an unknown message field
	ErrUnknownField = errors.New("unknown condition field")
	// ErrUnknownOperator indicates a condition uses an unknown operator
	ErrUnknownOperator = errors.New("unknown condition operator")
	// ErrUnknownAction indicates a rule uses an unknown action
	ErrUnknownAction = errors.New("unknown rule action")
	// ErrUnknownGroupOperator indicates a group uses an operator other than AND/OR
	ErrUnknownGroupOperator = errors.New("unknown group operator")
	// ErrInvalidConditionTree indicates the stored condition tree is malformed
	ErrInvalidConditionTree = errors.New("invalid condition tree")
)

// Field identifies a message field a condition matches against
type Field string

const (
	FieldFromEmail Field = "from_email"
	FieldFromName  Field = "from_name"
	FieldSubject   Field = "subject"
	FieldBodyText  Field = "body_text"
	FieldSnippet   Field = "snippet"
)

// ParseField converts a raw field name, rejecting unknown values
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldFromEmail, FieldFromName, FieldSubject, FieldBodyText, FieldSnippet:
		return Field(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// FieldOperator is the comparison a condition applies
type FieldOperator string

const (
	OpEquals       FieldOperator = "equals"
	OpNotEquals    FieldOperator = "not_equals"
	OpContains     FieldOperator = "contains"
	OpNotContains  FieldOperator = "not_contains"
	OpStartsWith   FieldOperator = "starts_with"
	OpEndsWith     FieldOperator = "ends_with"
	OpMatchesRegex FieldOperator = "matches_regex"
	OpInList       FieldOperator = "in_list"
)

// ParseFieldOperator converts a raw operator name, rejecting unknown values
func ParseFieldOperator(s string) (FieldOperator, error) {
	switch FieldOperator(s) {
	case OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpStartsWith, OpEndsWith, OpMatchesRegex, OpInList:
		return FieldOperator(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

// RuleAction is what a matched rule does with the message
type RuleAction string

const (
	ActionAutoRespond RuleAction = "auto_respond"
	ActionDraftOnly   RuleAction = "draft_only"
	ActionIgnore      RuleAction = "ignore"
	ActionForward     RuleAction = "forward"
)

// ParseRuleAction converts a raw action name, rejecting unknown values
func ParseRuleAction(s string) (RuleAction, error) {
	switch RuleAction(s) {
	case ActionAutoRespond, ActionDraftOnly, ActionIgnore, ActionForward:
		return RuleAction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// GroupOperator combines the results of a group's children
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// ParseGroupOperator converts a raw group operator, rejecting unknown values
func ParseGroupOperator(s string) (GroupOperator, error) {
	switch GroupOperator(s) {
	case GroupAnd, GroupOr:
		return GroupOperator(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroupOperator, s)
}

// Node is either a Condition leaf or a nested Group
type Node interface {
	isNode()
}

// ConditionValue holds a condition's comparison value, which is either a
// single string or a list of strings depending on the operator.
type ConditionValue struct {
	Str    string
	List   []string
	IsList bool
}

// StringValue creates a single-string condition value
func StringValue(s string) ConditionValue {
	return ConditionValue{Str: s}
}

// ListValue creates a list-typed condition value
func ListValue(items ...string) ConditionValue {
	return ConditionValue{List: items, IsList: true}
}

// UnmarshalJSON accepts either a JSON string or an array of strings
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = ConditionValue{Str: s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ConditionValue{List: list, IsList: true}
		return nil
	}
	return fmt.Errorf("%w: condition value must be a string or list of strings", ErrInvalidConditionTree)
}

// MarshalJSON writes the value back in its original shape
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Str)
}

// Condition is a leaf predicate against one message field
type Condition struct {
	Field         Field
	Operator      FieldOperator
	Value         ConditionValue
	CaseSensitive bool
}

func (Condition) isNode() {}

// Group combines child nodes with AND/OR logic. An empty group never
// matches, so a rule with no conditions cannot match everything.
type Group struct {
	Operator GroupOperator
	Children []Node
}

func (Group) isNode() {}

// Rule is a parsed automation rule ready for evaluation
type Rule struct {
	ID           uint
	Name         string
	Priority     int
	Conditions   Group
	Action       RuleAction
	ActionConfig ActionConfig
	IsActive     bool
}

// ActionConfig carries per-action parameters attached to a rule
type ActionConfig struct {
	ForwardTo    ConditionValue `json:"forward_to"`
	CustomPrompt string         `json:"custom_prompt"`
}

// ForwardTargets resolves the forward_to value to a list of non-blank addresses
func (c ActionConfig) ForwardTargets() []string {
	if c.ForwardTo.IsList {
		targets := make([]string, 0, len(c.ForwardTo.List))
		for _, t := range c.ForwardTo.List {
			if strings.TrimSpace(t) != "" {
				targets = append(targets, t)
			}
		}
		return targets
	}
	if strings.TrimSpace(c.ForwardTo.Str) != "" {
		return []string{c.ForwardTo.Str}
	}
	return nil
}

// rawNode mirrors one node of the stored JSON condition tree. A node with
// both an operator and a rules key is a nested group; otherwise it is a leaf.
type rawNode struct {
	Operator      *string         `json:"operator"`
	Rules         json.RawMessage `json:"rules"`
	Field         string          `json:"field"`
	Value         *ConditionValue `json:"value"`
	CaseSensitive bool            `json:"case_sensitive"`
}

// ParseGroup parses a stored JSON condition tree into a Group.
// Unknown operators and fields are construction errors, not silent non-matches.
func ParseGroup(data []byte) (Group, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return Group{}, fmt.Errorf("%w: %v", ErrInvalidConditionTree, err)
	}
	return parseGroupNode(raw)
}

func parseGroupNode(raw rawNode) (Group, error) {
	op := string(GroupAnd)
	if raw.Operator != nil {
		op = *raw.Operator
	}
	groupOp, err := ParseGroupOperator(op)
	if err != nil {
		return Group{}, err
	}

	group := Group{Operator: groupOp}
	if len(raw.Rules) == 0 {
		return group, nil
	}

	var children []rawNode
	if err := json.Unmarshal(raw.Rules, &children); err != nil {
		return Group{}, fmt.Errorf("%w: %v", ErrInvalidConditionTree, err)
	}

	for _, child := range children {
		if child.Operator != nil && child.Rules != nil {
			nested, err := parseGroupNode(child)
			if err != nil {
				return Group{}, err
			}
			group.Children = append(group.Children, nested)
			continue
		}

		cond, err := parseConditionNode(child)
		if err != nil {
			return Group{}, err
		}
		group.Children = append(group.Children, cond)
	}

	return group, nil
}

func parseConditionNode(raw rawNode) (Condition, error) {
	field, err := ParseField(raw.Field)
	if err != nil {
		return Condition{}, err
	}

	op := ""
	if raw.Operator != nil {
		op = *raw.Operator
	}
	fieldOp, err := ParseFieldOperator(op)
	if err != nil {
		return Condition{}, err
	}

	if raw.Value == nil {
		return Condition{}, fmt.Errorf("%w: condition missing value", ErrInvalidConditionTree)
	}

	return Condition{
		Field:         field,
		Operator:      fieldOp,
		Value:         *raw.Value,
		CaseSensitive: raw.CaseSensitive,
	}, nil
}

