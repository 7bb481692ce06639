package agent

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/llm"
	"github.com/inboxpilot/core/internal/mailbox"
	"github.com/inboxpilot/core/internal/rules"
)

type fakeClassifier struct {
	needsResponse bool
	err           error
}

func (f *fakeClassifier) ShouldRespond(body, subject string) (bool, string, error) {
	return f.needsResponse, "test reason", f.err
}

type fakeGenerator struct {
	response llm.DraftResponse
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateDraft(ctx llm.DraftContext, model string, temperature float64) (*llm.DraftResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := f.response
	return &resp, nil
}

type fakeSender struct {
	sent []mailbox.SendRequest
	err  error
}

func (f *fakeSender) Send(req mailbox.SendRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, req)
	return "<generated@test>", nil
}

type statusUpdate struct {
	processed        bool
	requiresResponse *bool
}

type fakeEmailStore struct {
	emails  map[string]*models.Email
	updates map[string][]statusUpdate
}

func newFakeEmailStore() *fakeEmailStore {
	return &fakeEmailStore{
		emails:  make(map[string]*models.Email),
		updates: make(map[string][]statusUpdate),
	}
}

func (f *fakeEmailStore) add(sourceID string, id uint) {
	f.emails[sourceID] = &models.Email{ID: id, SourceID: sourceID}
}

func (f *fakeEmailStore) FindBySourceID(userID uint, sourceID string) (*models.Email, error) {
	email, ok := f.emails[sourceID]
	if !ok {
		return nil, errors.New("not found")
	}
	return email, nil
}

func (f *fakeEmailStore) UpdateProcessingStatus(userID uint, sourceID string, processed bool, requiresResponse *bool) error {
	f.updates[sourceID] = append(f.updates[sourceID], statusUpdate{processed, requiresResponse})
	return nil
}

func (f *fakeEmailStore) lastUpdate(sourceID string) (statusUpdate, bool) {
	updates := f.updates[sourceID]
	if len(updates) == 0 {
		return statusUpdate{}, false
	}
	return updates[len(updates)-1], true
}

type fakeDraftStore struct {
	mu       sync.Mutex
	drafts   []*models.Draft
	existing *models.Draft
}

func (f *fakeDraftStore) CreateDraft(draft *models.Draft) (*models.Draft, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existing != nil {
		return f.existing, false, nil
	}
	draft.ID = uint(len(f.drafts) + 1)
	f.drafts = append(f.drafts, draft)
	return draft, true, nil
}

type fakeActivityLog struct {
	mu      sync.Mutex
	entries []models.ActivityType
}

func (f *fakeActivityLog) Log(userID uint, activityType models.ActivityType, description string, emailID, draftID, ruleID *uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, activityType)
	return nil
}

type pipeline struct {
	processor  *Processor
	classifier *fakeClassifier
	generator  *fakeGenerator
	sender     *fakeSender
	emails     *fakeEmailStore
	drafts     *fakeDraftStore
	activities *fakeActivityLog
}

func newPipeline(ruleList []rules.Rule) *pipeline {
	p := &pipeline{
		classifier: &fakeClassifier{needsResponse: true},
		generator: &fakeGenerator{response: llm.DraftResponse{
			Body:       "Thanks, I'll take a look.",
			Reasoning:  "simple acknowledgment",
			Confidence: 0.9,
		}},
		sender:     &fakeSender{},
		emails:     newFakeEmailStore(),
		drafts:     &fakeDraftStore{},
		activities: &fakeActivityLog{},
	}
	p.emails.add("msg-1", 42)
	p.processor = NewProcessor(1, rules.NewEngine(ruleList), p.classifier, p.generator, p.sender, p.emails, p.drafts, p.activities)
	return p
}

func testMessage() mailbox.Message {
	return mailbox.Message{
		SourceID:   "msg-1",
		ThreadID:   "<thread@test>",
		MessageID:  "<orig@test>",
		FromEmail:  "alice@example.com",
		FromName:   "Alice",
		ToEmails:   []string{"me@example.com"},
		Subject:    "Question about the invoice",
		BodyText:   "Can you check invoice 1234?",
		ReceivedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func draftApprovalSettings() *models.UserSettings {
	return &models.UserSettings{
		UserID:                       1,
		ApprovalMode:                 string(models.ApprovalModeDraft),
		LLMModel:                     "test-model",
		LLMTemperature:               0.7,
		GuardrailConfidenceThreshold: 0.7,
	}
}

func matchAllRule(id uint, action rules.RuleAction) rules.Rule {
	return rules.Rule{
		ID:       id,
		Name:     "match subject",
		Priority: 0,
		Action:   action,
		Conditions: rules.Group{
			Operator: rules.GroupAnd,
			Children: []rules.Node{rules.Condition{
				Field:    rules.FieldSubject,
				Operator: rules.OpContains,
				Value:    rules.ConditionValue{Str: "invoice"},
			}},
		},
		IsActive: true,
	}
}

func TestNoResponseNeeded(t *testing.T) {
	p := newPipeline(nil)
	p.classifier.needsResponse = false

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeNoResponseNeeded {
		t.Fatalf("outcome = %s", outcome)
	}
	if p.generator.calls != 0 {
		t.Error("generator should not run when no response is needed")
	}
	update, ok := p.emails.lastUpdate("msg-1")
	if !ok || !update.processed || update.requiresResponse == nil || *update.requiresResponse {
		t.Errorf("expected processed with requiresResponse=false, got %+v", update)
	}
}

func TestIgnoreRule(t *testing.T) {
	p := newPipeline([]rules.Rule{matchAllRule(7, rules.ActionIgnore)})

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.sender.sent) != 0 || p.generator.calls != 0 {
		t.Error("ignored message must not generate or send anything")
	}
	if len(p.activities.entries) == 0 || p.activities.entries[0] != models.ActivityRuleIgnored {
		t.Errorf("expected rule_ignored activity, got %v", p.activities.entries)
	}
}

func TestForwardRule(t *testing.T) {
	rule := matchAllRule(3, rules.ActionForward)
	rule.ActionConfig = rules.ActionConfig{
		ForwardTo: rules.ConditionValue{Str: "ops@example.com"},
	}
	p := newPipeline([]rules.Rule{rule})

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeForwarded {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.sent()) != 1 {
		t.Fatalf("expected one send, got %d", len(p.sent()))
	}

	sent := p.sent()[0]
	if sent.Subject != "Fwd: Question about the invoice" {
		t.Errorf("subject = %q", sent.Subject)
	}
	if sent.To[0] != "ops@example.com" {
		t.Errorf("recipient = %v", sent.To)
	}
	if !strings.HasPrefix(sent.Body, "Forwarded message:") {
		t.Errorf("body missing forward header: %q", sent.Body)
	}
	if !strings.Contains(sent.Body, "From: Alice <alice@example.com>") {
		t.Errorf("body missing original sender: %q", sent.Body)
	}
	if p.generator.calls != 0 {
		t.Error("forward must not generate a draft")
	}
}

func (p *pipeline) sent() []mailbox.SendRequest { return p.sender.sent }

func TestForwardRuleWithoutTargets(t *testing.T) {
	p := newPipeline([]rules.Rule{matchAllRule(3, rules.ActionForward)})

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeError {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.sender.sent) != 0 {
		t.Error("misconfigured forward must not send")
	}
	// Still marked processed so the message is not retried forever
	update, ok := p.emails.lastUpdate("msg-1")
	if !ok || !update.processed {
		t.Errorf("expected processed, got %+v", update)
	}
}

func TestDraftApprovalCreatesPendingDraft(t *testing.T) {
	p := newPipeline(nil)

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeDraftCreated {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.sender.sent) != 0 {
		t.Error("draft approval mode must never send")
	}
	if len(p.drafts.drafts) != 1 {
		t.Fatalf("expected one draft, got %d", len(p.drafts.drafts))
	}

	draft := p.drafts.drafts[0]
	if draft.Status != string(models.DraftStatusPending) {
		t.Errorf("status = %s", draft.Status)
	}
	if draft.Subject != "Re: Question about the invoice" {
		t.Errorf("subject = %q", draft.Subject)
	}
	if draft.GuardrailFlagged {
		t.Error("clean content should not be flagged")
	}
	if draft.SentAt != nil {
		t.Error("pending draft must not have SentAt")
	}
}

func TestFullyAutomaticAutoSends(t *testing.T) {
	p := newPipeline(nil)
	settings := draftApprovalSettings()
	settings.ApprovalMode = string(models.ApprovalModeFullyAutomatic)

	outcome := p.processor.ProcessMessage(testMessage(), settings)
	if outcome != OutcomeAutoSent {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.sender.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(p.sender.sent))
	}

	sent := p.sender.sent[0]
	if sent.Subject != "Re: Question about the invoice" {
		t.Errorf("subject = %q", sent.Subject)
	}
	if sent.To[0] != "alice@example.com" {
		t.Errorf("recipient = %v", sent.To)
	}
	if sent.ReplyToID != "<orig@test>" {
		t.Errorf("reply threading lost: %q", sent.ReplyToID)
	}

	draft := p.drafts.drafts[0]
	if draft.Status != string(models.DraftStatusAutoSent) {
		t.Errorf("status = %s", draft.Status)
	}
	if draft.SentAt == nil {
		t.Error("auto-sent draft must record SentAt")
	}
}

func TestGuardrailsDowngradeAutoSend(t *testing.T) {
	p := newPipeline(nil)
	p.generator.response.Confidence = 0.4 // below the 0.7 threshold
	settings := draftApprovalSettings()
	settings.ApprovalMode = string(models.ApprovalModeFullyAutomatic)

	outcome := p.processor.ProcessMessage(testMessage(), settings)
	if outcome != OutcomeGuardrailBlocked {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.sender.sent) != 0 {
		t.Error("blocked auto-send must not deliver anything")
	}

	draft := p.drafts.drafts[0]
	if draft.Status != string(models.DraftStatusPending) {
		t.Errorf("status = %s", draft.Status)
	}
	if !draft.GuardrailFlagged || draft.GuardrailViolations == "" {
		t.Errorf("expected flagged draft with violations, got %+v", draft)
	}
}

func TestGuardrailFlagsAreAdvisoryInDraftMode(t *testing.T) {
	p := newPipeline(nil)
	p.generator.response.Confidence = 0.4

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeDraftCreated {
		t.Fatalf("outcome = %s", outcome)
	}

	draft := p.drafts.drafts[0]
	if !draft.GuardrailFlagged {
		t.Error("violations should still flag the draft for the reviewer")
	}
}

func TestAutoWithRulesRequiresAutoRespondRule(t *testing.T) {
	settings := draftApprovalSettings()
	settings.ApprovalMode = string(models.ApprovalModeAutoWithRules)

	withRule := newPipeline([]rules.Rule{matchAllRule(1, rules.ActionAutoRespond)})
	if outcome := withRule.processor.ProcessMessage(testMessage(), settings); outcome != OutcomeAutoSent {
		t.Errorf("with auto_respond rule: outcome = %s", outcome)
	}

	withoutRule := newPipeline(nil)
	if outcome := withoutRule.processor.ProcessMessage(testMessage(), settings); outcome != OutcomeDraftCreated {
		t.Errorf("without rule: outcome = %s", outcome)
	}
}

func TestExistingDraftIsReturnedUnchanged(t *testing.T) {
	p := newPipeline(nil)
	p.drafts.existing = &models.Draft{ID: 99, Status: string(models.DraftStatusApproved)}

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeDraftCreated {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(p.drafts.drafts) != 0 {
		t.Error("no new draft should be stored when one is active")
	}
	// No draft_created activity for a reused draft
	for _, entry := range p.activities.entries {
		if entry == models.ActivityDraftCreated {
			t.Error("reused draft must not log draft_created")
		}
	}
}

func TestErrorsAreContained(t *testing.T) {
	p := newPipeline(nil)
	p.classifier.err = errors.New("llm unavailable")

	outcome := p.processor.ProcessMessage(testMessage(), draftApprovalSettings())
	if outcome != OutcomeError {
		t.Fatalf("outcome = %s", outcome)
	}

	update, ok := p.emails.lastUpdate("msg-1")
	if !ok || update.processed {
		t.Errorf("failed message must stay unprocessed for retry, got %+v", update)
	}

	found := false
	for _, entry := range p.activities.entries {
		if entry == models.ActivityProcessingError {
			found = true
		}
	}
	if !found {
		t.Error("expected processing_error activity")
	}
}

func TestSendFailureLeavesMessageUnprocessed(t *testing.T) {
	p := newPipeline(nil)
	p.sender.err = errors.New("smtp down")
	settings := draftApprovalSettings()
	settings.ApprovalMode = string(models.ApprovalModeFullyAutomatic)

	outcome := p.processor.ProcessMessage(testMessage(), settings)
	if outcome != OutcomeError {
		t.Fatalf("outcome = %s", outcome)
	}
	update, ok := p.emails.lastUpdate("msg-1")
	if !ok || update.processed {
		t.Errorf("failed send must leave message unprocessed, got %+v", update)
	}
}

// TestProperty_AutoSendPolicy checks the approval policy over every
// combination of mode and matched rule action.
func TestProperty_AutoSendPolicy(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	modeGen := gen.OneConstOf(
		models.ApprovalModeDraft,
		models.ApprovalModeAutoWithRules,
		models.ApprovalModeFullyAutomatic,
	)
	actionGen := gen.OneConstOf(
		rules.ActionAutoRespond,
		rules.ActionDraftOnly,
		rules.ActionIgnore,
		rules.ActionForward,
	)

	properties.Property("policy_matches_specification_table", prop.ForAll(
		func(mode models.ApprovalMode, action rules.RuleAction, hasRule bool) bool {
			var matched *rules.Rule
			if hasRule {
				matched = &rules.Rule{ID: 1, Action: action}
			}

			got := shouldAutoSend(mode, matched)

			if hasRule && (action == rules.ActionDraftOnly || action == rules.ActionForward) {
				return got == false
			}
			switch mode {
			case models.ApprovalModeFullyAutomatic:
				return got == true
			case models.ApprovalModeAutoWithRules:
				return got == (hasRule && action == rules.ActionAutoRespond)
			default:
				return got == false
			}
		},
		modeGen,
		actionGen,
		gen.Bool(),
	))

	properties.TestingRun(t)
}
