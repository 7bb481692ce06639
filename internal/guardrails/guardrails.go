package guardrails

import (
	"fmt"
	"regexp"
	"strings"
)

// ViolationType categorizes a guardrail violation
type ViolationType string

const (
	ViolationProfanity      ViolationType = "profanity"
	ViolationPIICreditCard  ViolationType = "pii_credit_card"
	ViolationPIISSN         ViolationType = "pii_ssn"
	ViolationPIIPassword    ViolationType = "pii_password"
	ViolationCommitmentWord ViolationType = "commitment_word"
	ViolationCustomKeyword  ViolationType = "custom_keyword"
	ViolationLowConfidence  ViolationType = "low_confidence"
)

// Violation is a single guardrail finding. MatchedText never contains the raw
// sensitive substring for PII and secret categories.
type Violation struct {
	Type        ViolationType `json:"type"`
	MatchedText string        `json:"matched_text"`
	Description string        `json:"description"`
}

// Result is the outcome of validating one piece of content
type Result struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	// ShouldDowngradeToDraft is true iff validation failed
	ShouldDowngradeToDraft bool `json:"should_downgrade_to_draft"`
}

// Summary joins violation descriptions into one human-readable string
func (r Result) Summary() string {
	if len(r.Violations) == 0 {
		return ""
	}
	descriptions := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		descriptions[i] = v.Description
	}
	return strings.Join(descriptions, "; ")
}

// Config holds the guardrail feature toggles and thresholds
type Config struct {
	ProfanityEnabled      bool
	PIIEnabled            bool
	CommitmentEnabled     bool
	CustomKeywordsEnabled bool

	// ConfidenceThreshold is in [0,1]; a reported confidence strictly below
	// it is a violation, equal-to-threshold passes.
	ConfidenceThreshold float64

	// BlockedKeywords is the user-defined blocklist; entries may be
	// multi-word phrases.
	BlockedKeywords []string
}

// DefaultConfig returns the config with all checks enabled and the default
// confidence threshold.
func DefaultConfig() Config {
	return Config{
		ProfanityEnabled:      true,
		PIIEnabled:            true,
		CommitmentEnabled:     true,
		CustomKeywordsEnabled: true,
		ConfidenceThreshold:   0.7,
	}
}

// Seeded pattern sets. Kept deliberately small; this is pattern screening,
// not content understanding.
var (
	profanityPatterns = []string{
		`(?i)\b(damn|shit|fuck|ass|bitch|bastard|crap|hell)\b`,
		`(?i)\b(wtf|stfu|lmao|lmfao)\b`,
	}

	// Visa, Mastercard, Amex, Discover prefixes and lengths
	creditCardPattern = `\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`

	ssnPattern = `\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`

	passwordPatterns = []string{
		`(?i)password\s*[:=]\s*\S+`,
		`(?i)pwd\s*[:=]\s*\S+`,
		`(?i)secret\s*[:=]\s*\S+`,
		`(?i)api[_-]?key\s*[:=]\s*\S+`,
		`(?i)access[_-]?token\s*[:=]\s*\S+`,
	}

	commitmentPatterns = []string{
		`(?i)\b(i agree|i accept|i confirm|i approve)\b`,
		`(?i)\b(confirmed|approved|accepted|agreed)\b`,
		`(?i)\b(i('ll| will) pay|i('ll| will) send (the )?money)\b`,
		`(?i)\b(you have my (word|permission|approval))\b`,
		`(?i)\b(deal|it's a deal|we have a deal)\b`,
		`(?i)\b(i commit|i promise|i guarantee)\b`,
		`(?i)\b(binding|legally binding|contractually)\b`,
	}
)

// Engine validates content against the enabled guardrail checks. All patterns
// are compiled once at construction; the engine is immutable afterwards, so a
// config change means building a new engine and swapping it in. Validation is
// side-effect free and safe for concurrent use.
type Engine struct {
	config Config

	profanityRe  []*regexp.Regexp
	creditCardRe *regexp.Regexp
	ssnRe        *regexp.Regexp
	passwordRe   []*regexp.Regexp
	commitmentRe []*regexp.Regexp
	customRe     []*regexp.Regexp
}

// New creates an engine and pre-compiles all pattern sets
func New(config Config) *Engine {
	e := &Engine{config: config}

	e.profanityRe = compileAll(profanityPatterns)
	e.creditCardRe = regexp.MustCompile(creditCardPattern)
	e.ssnRe = regexp.MustCompile(ssnPattern)
	e.passwordRe = compileAll(passwordPatterns)
	e.commitmentRe = compileAll(commitmentPatterns)

	for _, kw := range config.BlockedKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		e.customRe = append(e.customRe, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}

	return e
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() Config {
	return e.config
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Validate runs all enabled checks over the content. Checks are independent;
// their violations are concatenated in a fixed category order (low confidence,
// profanity, PII, commitment, custom keyword) for deterministic output.
func (e *Engine) Validate(content string, confidence float64) Result {
	var violations []Violation

	if confidence < e.config.ConfidenceThreshold {
		violations = append(violations, Violation{
			Type:        ViolationLowConfidence,
			MatchedText: fmt.Sprintf("confidence=%.2f", confidence),
			Description: fmt.Sprintf("Low confidence (%.2f) below threshold (%g)", confidence, e.config.ConfidenceThreshold),
		})
	}

	if e.config.ProfanityEnabled {
		violations = append(violations, e.checkProfanity(content)...)
	}

	if e.config.PIIEnabled {
		violations = append(violations, e.checkPII(content)...)
	}

	if e.config.CommitmentEnabled {
		violations = append(violations, e.checkCommitments(content)...)
	}

	if e.config.CustomKeywordsEnabled && len(e.customRe) > 0 {
		violations = append(violations, e.checkCustomKeywords(content)...)
	}

	passed := len(violations) == 0
	return Result{
		Passed:                 passed,
		Violations:             violations,
		ShouldDowngradeToDraft: !passed,
	}
}

func (e *Engine) checkProfanity(content string) []Violation {
	var violations []Violation
	for _, re := range e.profanityRe {
		for _, match := range re.FindAllString(content, -1) {
			masked := maskText(match)
			violations = append(violations, Violation{
				Type:        ViolationProfanity,
				MatchedText: masked,
				Description: fmt.Sprintf("Profanity detected: %s", masked),
			})
		}
	}
	return violations
}

func (e *Engine) checkPII(content string) []Violation {
	var violations []Violation

	for _, match := range e.creditCardRe.FindAllString(content, -1) {
		masked := maskCreditCard(match)
		violations = append(violations, Violation{
			Type:        ViolationPIICreditCard,
			MatchedText: masked,
			Description: fmt.Sprintf("Credit card number detected: %s", masked),
		})
	}

	for _, match := range e.ssnRe.FindAllString(content, -1) {
		if !looksLikeSSN(match) {
			continue
		}
		violations = append(violations, Violation{
			Type:        ViolationPIISSN,
			MatchedText: "***-**-" + match[len(match)-4:],
			Description: "Social Security Number detected",
		})
	}

	for _, re := range e.passwordRe {
		for range re.FindAllString(content, -1) {
			violations = append(violations, Violation{
				Type:        ViolationPIIPassword,
				MatchedText: "[REDACTED]",
				Description: "Password or API key detected in content",
			})
		}
	}

	return violations
}

func (e *Engine) checkCommitments(content string) []Violation {
	var violations []Violation
	for _, re := range e.commitmentRe {
		for _, match := range re.FindAllString(content, -1) {
			violations = append(violations, Violation{
				Type:        ViolationCommitmentWord,
				MatchedText: match,
				Description: fmt.Sprintf("Commitment language detected: '%s'", match),
			})
		}
	}
	return violations
}

func (e *Engine) checkCustomKeywords(content string) []Violation {
	var violations []Violation
	for _, re := range e.customRe {
		for _, match := range re.FindAllString(content, -1) {
			violations = append(violations, Violation{
				Type:        ViolationCustomKeyword,
				MatchedText: match,
				Description: fmt.Sprintf("Blocked keyword detected: '%s'", match),
			})
		}
	}
	return violations
}

// maskText keeps the first and last character and masks the interior;
// strings of length <= 2 are fully masked.
func maskText(text string) string {
	if len(text) <= 2 {
		return strings.Repeat("*", len(text))
	}
	return text[:1] + strings.Repeat("*", len(text)-2) + text[len(text)-1:]
}

var nonDigitRe = regexp.MustCompile(`\D`)

// maskCreditCard shows only the last 4 digits
func maskCreditCard(number string) string {
	digits := nonDigitRe.ReplaceAllString(number, "")
	return "****-****-****-" + digits[len(digits)-4:]
}

// looksLikeSSN filters 9-digit patterns through SSA validity rules: the area
// cannot be 000, 666, or 900-999, the group cannot be 00, and the serial
// cannot be 0000.
func looksLikeSSN(text string) bool {
	digits := nonDigitRe.ReplaceAllString(text, "")
	if len(digits) != 9 {
		return false
	}
	area := digits[:3]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if digits[3:5] == "00" {
		return false
	}
	if digits[5:] == "0000" {
		return false
	}
	return true
}
