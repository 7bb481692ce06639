package guardrails

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func hasViolation(result Result, violationType ViolationType) bool {
	for _, v := range result.Violations {
		if v.Type == violationType {
			return true
		}
	}
	return false
}

// TestProperty_ConfidenceThreshold verifies the strict less-than boundary:
// confidence equal to the threshold passes, anything below fails.
func TestProperty_ConfidenceThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("below_threshold_fails_at_or_above_passes", prop.ForAll(
		func(confidencePct, thresholdPct int) bool {
			confidence := float64(confidencePct) / 100
			threshold := float64(thresholdPct) / 100

			config := DefaultConfig()
			config.ConfidenceThreshold = threshold
			engine := New(config)

			result := engine.Validate("Thank you for your message.", confidence)
			flagged := hasViolation(result, ViolationLowConfidence)
			return flagged == (confidence < threshold)
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// TestProperty_SensitiveContentNeverEchoed verifies that raw credit card and
// SSN digits never appear in the violation output.
func TestProperty_SensitiveContentNeverEchoed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	// Visa test numbers: 4 followed by 15 digits
	cardGen := gen.SliceOfN(15, gen.RuneRange('0', '9')).Map(func(digits []rune) string {
		return "4" + string(digits)
	})

	properties.Property("card_number_is_masked_in_output", prop.ForAll(
		func(card string) bool {
			engine := New(DefaultConfig())
			result := engine.Validate("Please charge card "+card+" for the order.", 1.0)

			if !hasViolation(result, ViolationPIICreditCard) {
				return false
			}
			for _, v := range result.Violations {
				if strings.Contains(v.MatchedText, card) || strings.Contains(v.Description, card) {
					return false
				}
				if v.Type == ViolationPIICreditCard && !strings.HasSuffix(v.MatchedText, card[len(card)-4:]) {
					return false
				}
			}
			return true
		},
		cardGen,
	))

	properties.TestingRun(t)
}

func TestSSNDetection(t *testing.T) {
	engine := New(DefaultConfig())

	cases := []struct {
		ssn  string
		want bool
	}{
		{"123-45-6789", true},
		{"856-45-6789", true},
		{"000-45-6789", false}, // invalid area
		{"666-45-6789", false}, // invalid area
		{"923-45-6789", false}, // area starting with 9
		{"123-00-6789", false}, // invalid group
		{"123-45-0000", false}, // invalid serial
	}

	for _, tc := range cases {
		t.Run(tc.ssn, func(t *testing.T) {
			result := engine.Validate("My SSN is "+tc.ssn+" for the form.", 1.0)
			got := hasViolation(result, ViolationPIISSN)
			if got != tc.want {
				t.Errorf("SSN %s: flagged=%v, want %v", tc.ssn, got, tc.want)
			}
			if tc.want {
				for _, v := range result.Violations {
					if v.Type == ViolationPIISSN && v.MatchedText != "***-**-"+tc.ssn[len(tc.ssn)-4:] {
						t.Errorf("SSN not masked correctly: %q", v.MatchedText)
					}
				}
			}
		})
	}
}

func TestPasswordRedaction(t *testing.T) {
	engine := New(DefaultConfig())

	result := engine.Validate("Your password: hunter2 should work now.", 1.0)
	if !hasViolation(result, ViolationPIIPassword) {
		t.Fatal("expected password violation")
	}
	for _, v := range result.Violations {
		if v.Type != ViolationPIIPassword {
			continue
		}
		if v.MatchedText != "[REDACTED]" {
			t.Errorf("password should always be [REDACTED], got %q", v.MatchedText)
		}
		if strings.Contains(v.Description, "hunter2") {
			t.Errorf("password leaked in description: %q", v.Description)
		}
	}
}

func TestProfanityMasking(t *testing.T) {
	engine := New(DefaultConfig())

	result := engine.Validate("That deadline is damn tight.", 1.0)
	if !hasViolation(result, ViolationProfanity) {
		t.Fatal("expected profanity violation")
	}
	for _, v := range result.Violations {
		if v.Type == ViolationProfanity && v.MatchedText != "d**n" {
			t.Errorf("expected first and last characters kept, got %q", v.MatchedText)
		}
	}
}

func TestCommitmentDetection(t *testing.T) {
	engine := New(DefaultConfig())

	result := engine.Validate("I guarantee this will ship by Friday.", 1.0)
	if !hasViolation(result, ViolationCommitmentWord) {
		t.Error("expected commitment violation")
	}

	clean := engine.Validate("We expect this to ship by Friday.", 1.0)
	if hasViolation(clean, ViolationCommitmentWord) {
		t.Errorf("unexpected commitment violation: %v", clean.Violations)
	}
}

func TestCustomKeywords(t *testing.T) {
	config := DefaultConfig()
	config.BlockedKeywords = []string{"Project Hermes", "acquisition"}
	engine := New(config)

	result := engine.Validate("We can discuss project hermes next week.", 1.0)
	if !hasViolation(result, ViolationCustomKeyword) {
		t.Error("expected custom keyword violation (case-insensitive)")
	}

	clean := engine.Validate("We can discuss the roadmap next week.", 1.0)
	if hasViolation(clean, ViolationCustomKeyword) {
		t.Errorf("unexpected custom keyword violation: %v", clean.Violations)
	}
}

func TestDisabledChecksAreSkipped(t *testing.T) {
	config := DefaultConfig()
	config.ProfanityEnabled = false
	config.PIIEnabled = false
	config.CommitmentEnabled = false
	config.CustomKeywordsEnabled = false
	config.ConfidenceThreshold = 0
	engine := New(config)

	result := engine.Validate("damn, card 4111111111111111, I promise to pay.", 1.0)
	if !result.Passed {
		t.Errorf("all checks disabled should pass, got %v", result.Violations)
	}
	if result.ShouldDowngradeToDraft {
		t.Error("passing result should not downgrade")
	}
}

func TestViolationOrdering(t *testing.T) {
	config := DefaultConfig()
	config.BlockedKeywords = []string{"hermes"}
	engine := New(config)

	content := "damn, my SSN is 123-45-6789, I promise hermes ships soon."
	result := engine.Validate(content, 0.1)

	if result.Passed {
		t.Fatal("expected failure")
	}
	if len(result.Violations) < 4 {
		t.Fatalf("expected at least 4 violations, got %d: %v", len(result.Violations), result.Violations)
	}

	// Confidence first, then profanity, then PII, then commitments, then custom
	order := map[ViolationType]int{
		ViolationLowConfidence:  0,
		ViolationProfanity:      1,
		ViolationPIICreditCard:  2,
		ViolationPIISSN:         2,
		ViolationPIIPassword:    2,
		ViolationCommitmentWord: 3,
		ViolationCustomKeyword:  4,
	}
	last := -1
	for _, v := range result.Violations {
		rank, ok := order[v.Type]
		if !ok {
			t.Fatalf("unknown violation type %s", v.Type)
		}
		if rank < last {
			t.Errorf("violation %s out of order in %v", v.Type, result.Violations)
		}
		last = rank
	}
}

func TestSummaryJoinsDescriptions(t *testing.T) {
	result := Result{
		Violations: []Violation{
			{Type: ViolationProfanity, Description: "first"},
			{Type: ViolationPIISSN, Description: "second"},
		},
	}
	if got := result.Summary(); got != "first; second" {
		t.Errorf("Summary() = %q", got)
	}

	var empty Result
	if got := empty.Summary(); got != "" {
		t.Errorf("empty Summary() = %q", got)
	}
}

func ExampleEngine_Validate() {
	engine := New(DefaultConfig())
	result := engine.Validate("I promise we can refund card 4111111111111111.", 0.9)
	fmt.Println(result.Passed)
	// Output: false
}
