package agent

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/guardrails"
	"github.com/inboxpilot/core/internal/llm"
	"github.com/inboxpilot/core/internal/mailbox"
	"github.com/inboxpilot/core/internal/rules"
)

// Outcome is the terminal result of processing one inbound message
type Outcome string

const (
	OutcomeDraftCreated     Outcome = "draft_created"
	OutcomeAutoSent         Outcome = "auto_sent"
	OutcomeForwarded        Outcome = "forwarded"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeNoResponseNeeded Outcome = "no_response_needed"
	// OutcomeGuardrailBlocked means an auto-send was downgraded to a pending draft
	OutcomeGuardrailBlocked Outcome = "guardrail_blocked"
	OutcomeError            Outcome = "error"
)

// Classifier decides whether an inbound message needs a reply at all
type Classifier interface {
	ShouldRespond(body, subject string) (bool, string, error)
}

// DraftGenerator produces a reply body from the message context
type DraftGenerator interface {
	GenerateDraft(ctx llm.DraftContext, model string, temperature float64) (*llm.DraftResponse, error)
}

// MessageSender delivers outbound messages and returns the generated Message-ID
type MessageSender interface {
	Send(req mailbox.SendRequest) (string, error)
}

// EmailStore persists processing state for inbound messages
type EmailStore interface {
	FindBySourceID(userID uint, sourceID string) (*models.Email, error)
	UpdateProcessingStatus(userID uint, sourceID string, processed bool, requiresResponse *bool) error
}

// DraftStore persists drafts. CreateDraft must be idempotent per email: if an
// active draft already exists it is returned with created=false and the new
// draft is discarded.
type DraftStore interface {
	CreateDraft(draft *models.Draft) (*models.Draft, bool, error)
}

// ActivityLogger records agent actions for the activity feed
type ActivityLogger interface {
	Log(userID uint, activityType models.ActivityType, description string, emailID, draftID, ruleID *uint) error
}

// Processor runs the per-message agent pipeline: response gate, rule
// evaluation, draft generation, guardrail validation, then either auto-send
// or a pending draft.
type Processor struct {
	userID     uint
	engine     *rules.Engine
	classifier Classifier
	generator  DraftGenerator
	sender     MessageSender
	emails     EmailStore
	drafts     DraftStore
	activities ActivityLogger
}

// NewProcessor wires a processor for one user. The rule engine is a snapshot;
// rule changes take effect on the next processor built.
func NewProcessor(
	userID uint,
	engine *rules.Engine,
	classifier Classifier,
	generator DraftGenerator,
	sender MessageSender,
	emails EmailStore,
	drafts DraftStore,
	activities ActivityLogger,
) *Processor {
	return &Processor{
		userID:     userID,
		engine:     engine,
		classifier: classifier,
		generator:  generator,
		sender:     sender,
		emails:     emails,
		drafts:     drafts,
		activities: activities,
	}
}

// ProcessMessage runs one message through the full pipeline. It never returns
// an error: failures are contained, logged, and reported as OutcomeError with
// the message left unprocessed so the next poll retries it.
func (p *Processor) ProcessMessage(msg mailbox.Message, settings *models.UserSettings) Outcome {
	needsResponse, reason, err := p.classifier.ShouldRespond(msg.BodyText, msg.Subject)
	if err != nil {
		return p.fail(msg, fmt.Errorf("response check failed: %w", err))
	}

	if !needsResponse {
		log.Printf("[Processor] Email %s doesn't need response: %s", msg.SourceID, reason)
		if err := p.markProcessed(msg, false); err != nil {
			return p.fail(msg, err)
		}
		return OutcomeNoResponseNeeded
	}

	matched := p.engine.Evaluate(rules.Message{
		FromEmail: msg.FromEmail,
		FromName:  msg.FromName,
		Subject:   msg.Subject,
		BodyText:  msg.BodyText,
		Snippet:   msg.Snippet,
	})

	if matched != nil && matched.Action == rules.ActionIgnore {
		log.Printf("[Processor] Email %s ignored by rule: %s", msg.SourceID, matched.Name)
		if err := p.markProcessed(msg, false); err != nil {
			return p.fail(msg, err)
		}
		p.logActivity(models.ActivityRuleIgnored,
			fmt.Sprintf("Rule %q ignored email from %s", matched.Name, msg.FromEmail),
			msg, nil, &matched.ID)
		return OutcomeIgnored
	}

	if matched != nil && matched.Action == rules.ActionForward {
		return p.forward(msg, matched)
	}

	draft, err := p.generator.GenerateDraft(llm.DraftContext{
		OriginalEmail:      msg.BodyText,
		SenderName:         msg.SenderDisplay(),
		SenderEmail:        msg.FromEmail,
		Subject:            msg.Subject,
		UserSignature:      settings.Signature,
		CustomInstructions: customInstructions(matched, settings),
	}, settings.LLMModel, settings.LLMTemperature)
	if err != nil {
		return p.fail(msg, fmt.Errorf("draft generation failed: %w", err))
	}

	validation := guardrails.New(GuardrailConfigFromSettings(settings)).Validate(draft.Body, draft.Confidence)
	autoSend := shouldAutoSend(models.ApprovalMode(settings.ApprovalMode), matched)

	// A failed validation never blocks draft creation, only auto-sending
	if autoSend && !validation.Passed {
		log.Printf("[Processor] Guardrails blocked auto-send for email %s: %s", msg.SourceID, validation.Summary())
		rec, err := p.createDraft(msg, draft, settings, matched, models.DraftStatusPending, true, validation.Summary())
		if err != nil {
			return p.fail(msg, err)
		}
		if err := p.markProcessed(msg, true); err != nil {
			return p.fail(msg, err)
		}
		p.logActivity(models.ActivityGuardrailBlocked,
			fmt.Sprintf("Guardrails downgraded auto-send to draft: %s", validation.Summary()),
			msg, &rec.ID, ruleIDOf(matched))
		return OutcomeGuardrailBlocked
	}

	if autoSend {
		if _, err := p.sender.Send(mailbox.SendRequest{
			To:        []string{msg.FromEmail},
			Subject:   "Re: " + msg.Subject,
			Body:      draft.Body,
			ReplyToID: msg.MessageID,
			ThreadID:  msg.ThreadID,
		}); err != nil {
			return p.fail(msg, fmt.Errorf("auto-send failed: %w", err))
		}

		if _, err := p.createDraft(msg, draft, settings, matched, models.DraftStatusAutoSent, false, ""); err != nil {
			return p.fail(msg, err)
		}
		if err := p.markProcessed(msg, true); err != nil {
			return p.fail(msg, err)
		}
		log.Printf("[Processor] Auto-sent response to %s", msg.FromEmail)
		return OutcomeAutoSent
	}

	flagged := !validation.Passed
	violations := ""
	if flagged {
		violations = validation.Summary()
	}
	if _, err := p.createDraft(msg, draft, settings, matched, models.DraftStatusPending, flagged, violations); err != nil {
		return p.fail(msg, err)
	}
	if err := p.markProcessed(msg, true); err != nil {
		return p.fail(msg, err)
	}
	log.Printf("[Processor] Created draft for email from %s", msg.FromEmail)
	return OutcomeDraftCreated
}

// forward delivers the message to the rule's forward targets. A forward rule
// with no usable targets is a configuration error, but the message is still
// marked processed so it is not retried forever.
func (p *Processor) forward(msg mailbox.Message, matched *rules.Rule) Outcome {
	targets := matched.ActionConfig.ForwardTargets()
	if len(targets) == 0 {
		log.Printf("[Processor] Forward rule %s has no targets for email %s", matched.Name, msg.SourceID)
		if err := p.markProcessed(msg, false); err != nil {
			return p.fail(msg, err)
		}
		return OutcomeError
	}

	if _, err := p.sender.Send(mailbox.SendRequest{
		To:      targets,
		Subject: "Fwd: " + msg.Subject,
		Body:    formatForwardBody(msg),
	}); err != nil {
		return p.fail(msg, fmt.Errorf("forward failed: %w", err))
	}

	if err := p.markProcessed(msg, false); err != nil {
		return p.fail(msg, err)
	}
	log.Printf("[Processor] Forwarded email %s to %s", msg.SourceID, strings.Join(targets, ", "))
	p.logActivity(models.ActivityEmailForwarded,
		fmt.Sprintf("Forwarded email from %s to %s", msg.FromEmail, strings.Join(targets, ", ")),
		msg, nil, &matched.ID)
	return OutcomeForwarded
}

// GenerateDraftOnly creates a pending draft for an already-stored email,
// skipping the needs-response check and the auto-send policy. The batch
// coordinator uses it for user-requested drafting.
func (p *Processor) GenerateDraftOnly(email *models.Email, settings *models.UserSettings) (*models.Draft, error) {
	response, err := p.generator.GenerateDraft(llm.DraftContext{
		OriginalEmail:      email.BodyText,
		SenderName:         senderDisplayOf(email),
		SenderEmail:        email.FromEmail,
		Subject:            email.Subject,
		UserSignature:      settings.Signature,
		CustomInstructions: settings.SystemPrompt,
	}, settings.LLMModel, settings.LLMTemperature)
	if err != nil {
		return nil, fmt.Errorf("draft generation failed: %w", err)
	}

	draft := &models.Draft{
		UserID:        p.userID,
		EmailID:       email.ID,
		Subject:       "Re: " + email.Subject,
		BodyText:      response.Body,
		Status:        string(models.DraftStatusPending),
		LLMModelUsed:  settings.LLMModel,
		LLMReasoning:  response.Reasoning,
		LLMConfidence: response.Confidence,
	}
	draft.SetToEmails([]string{email.FromEmail})

	rec, created, err := p.drafts.CreateDraft(draft)
	if err != nil {
		return nil, fmt.Errorf("draft save failed: %w", err)
	}
	if created {
		p.activities.Log(p.userID, models.ActivityDraftCreated,
			fmt.Sprintf("AI drafted response for email from %s", email.FromEmail),
			&email.ID, &rec.ID, nil)
	}
	return rec, nil
}

func (p *Processor) createDraft(
	msg mailbox.Message,
	response *llm.DraftResponse,
	settings *models.UserSettings,
	matched *rules.Rule,
	status models.DraftStatus,
	flagged bool,
	violations string,
) (*models.Draft, error) {
	email, err := p.emails.FindBySourceID(p.userID, msg.SourceID)
	if err != nil {
		return nil, fmt.Errorf("email %s not found: %w", msg.SourceID, err)
	}

	draft := &models.Draft{
		UserID:              p.userID,
		EmailID:             email.ID,
		Subject:             "Re: " + msg.Subject,
		BodyText:            response.Body,
		Status:              string(status),
		LLMModelUsed:        settings.LLMModel,
		LLMReasoning:        response.Reasoning,
		LLMConfidence:       response.Confidence,
		MatchedRuleID:       ruleIDOf(matched),
		GuardrailFlagged:    flagged,
		GuardrailViolations: violations,
	}
	draft.SetToEmails([]string{msg.FromEmail})
	if status == models.DraftStatusAutoSent {
		now := time.Now().UTC()
		draft.SentAt = &now
	}

	rec, created, err := p.drafts.CreateDraft(draft)
	if err != nil {
		return nil, fmt.Errorf("draft save failed: %w", err)
	}
	if created {
		activityType := models.ActivityDraftCreated
		description := fmt.Sprintf("AI drafted response for email from %s", msg.FromEmail)
		if status == models.DraftStatusAutoSent {
			activityType = models.ActivityEmailSent
			description = fmt.Sprintf("Auto-sent response to %s", msg.FromEmail)
		}
		p.activities.Log(p.userID, activityType, description, &email.ID, &rec.ID, ruleIDOf(matched))
	}
	return rec, nil
}

// markProcessed records the terminal processing state for the message
func (p *Processor) markProcessed(msg mailbox.Message, requiresResponse bool) error {
	return p.emails.UpdateProcessingStatus(p.userID, msg.SourceID, true, &requiresResponse)
}

// fail contains a pipeline error: the message stays unprocessed so the next
// poll retries it, and the error lands in the activity feed.
func (p *Processor) fail(msg mailbox.Message, err error) Outcome {
	log.Printf("[Processor] Error processing email %s: %v", msg.SourceID, err)
	p.emails.UpdateProcessingStatus(p.userID, msg.SourceID, false, nil)
	p.logActivity(models.ActivityProcessingError,
		fmt.Sprintf("Failed to process email from %s: %v", msg.FromEmail, err),
		msg, nil, nil)
	return OutcomeError
}

func (p *Processor) logActivity(activityType models.ActivityType, description string, msg mailbox.Message, draftID, ruleID *uint) {
	var emailID *uint
	if email, err := p.emails.FindBySourceID(p.userID, msg.SourceID); err == nil {
		emailID = &email.ID
	}
	if err := p.activities.Log(p.userID, activityType, description, emailID, draftID, ruleID); err != nil {
		log.Printf("[Processor] Failed to log activity: %v", err)
	}
}

// shouldAutoSend applies the approval policy. Rule actions that demand review
// always win over a permissive approval mode.
func shouldAutoSend(mode models.ApprovalMode, matched *rules.Rule) bool {
	if matched != nil && (matched.Action == rules.ActionDraftOnly || matched.Action == rules.ActionForward) {
		return false
	}

	switch mode {
	case models.ApprovalModeFullyAutomatic:
		return true
	case models.ApprovalModeAutoWithRules:
		return matched != nil && matched.Action == rules.ActionAutoRespond
	default:
		// draft_approval and anything unrecognized require human review
		return false
	}
}

// customInstructions prefers the matched rule's prompt over the user default
func customInstructions(matched *rules.Rule, settings *models.UserSettings) string {
	if matched != nil && matched.ActionConfig.CustomPrompt != "" {
		return matched.ActionConfig.CustomPrompt
	}
	return settings.SystemPrompt
}

// formatForwardBody wraps the original message with a plain-text header block
func formatForwardBody(msg mailbox.Message) string {
	header := []string{
		"Forwarded message:",
		fmt.Sprintf("From: %s <%s>", msg.FromName, msg.FromEmail),
		fmt.Sprintf("To: %s", strings.Join(msg.ToEmails, ", ")),
		fmt.Sprintf("Subject: %s", msg.Subject),
		fmt.Sprintf("Date: %s", msg.ReceivedAt.Format(time.RFC3339)),
		"",
	}
	return strings.Join(header, "\n") + msg.BodyText
}

// GuardrailConfigFromSettings builds the guardrail config from per-user
// settings, so every message is validated against the user's current toggles.
func GuardrailConfigFromSettings(settings *models.UserSettings) guardrails.Config {
	return guardrails.Config{
		ProfanityEnabled:      settings.GuardrailProfanityEnabled,
		PIIEnabled:            settings.GuardrailPIIEnabled,
		CommitmentEnabled:     settings.GuardrailCommitmentEnabled,
		CustomKeywordsEnabled: settings.GuardrailCustomKeywordsEnabled,
		ConfidenceThreshold:   settings.GuardrailConfidenceThreshold,
		BlockedKeywords:       settings.BlockedKeywords(),
	}
}

func ruleIDOf(matched *rules.Rule) *uint {
	if matched == nil {
		return nil
	}
	id := matched.ID
	return &id
}

func senderDisplayOf(email *models.Email) string {
	if email.FromName != "" {
		return email.FromName
	}
	return email.FromEmail
}
