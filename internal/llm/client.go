package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotConfigured indicates the LLM client has no API key
	ErrNotConfigured = errors.New("LLM client not configured")
	// ErrAPICallFailed indicates the LLM API call failed
	ErrAPICallFailed = errors.New("LLM API call failed")
	// ErrInvalidResponse indicates an invalid response from the LLM API
	ErrInvalidResponse = errors.New("invalid LLM API response")
)

// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DraftContext carries everything the model needs to draft a reply
type DraftContext struct {
	OriginalEmail      string
	SenderName         string
	SenderEmail        string
	Subject            string
	UserSignature      string
	CustomInstructions string
}

// DraftResponse is a generated reply with the model's self-reported metadata
type DraftResponse struct {
	Body       string
	Reasoning  string
	Confidence float64
}

// Client talks to an OpenAI-compatible chat completions API
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewClient creates a client for the given endpoint. An empty baseURL falls
// back to OpenRouter.
func NewClient(apiKey, baseURL, defaultModel string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// IsConfigured returns whether the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// chatMessage represents a message in a chat conversation
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a chat completion request
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatResponse represents a chat completion response
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sendChatRequest sends a chat completion request and returns the first
// choice's content.
func (c *Client) sendChatRequest(model string, messages []chatMessage, temperature float64, maxTokens int) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	if model == "" {
		model = c.defaultModel
	}

	request := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAPICallFailed, resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPICallFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrInvalidResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}

// GenerateDraft asks the model to draft a reply for the given context
func (c *Client) GenerateDraft(ctx DraftContext, model string, temperature float64) (*DraftResponse, error) {
	messages := []chatMessage{
		{Role: "system", Content: buildDraftSystemPrompt(ctx)},
		{Role: "user", Content: buildDraftUserPrompt(ctx)},
	}

	content, err := c.sendChatRequest(model, messages, temperature, 1000)
	if err != nil {
		return nil, err
	}

	return parseDraftResponse(content), nil
}

// ShouldRespond asks the model whether the email needs a reply, returning the
// classification and a brief reason.
func (c *Client) ShouldRespond(body, subject string) (bool, string, error) {
	if len(body) > 1000 {
		body = body[:1000]
	}

	prompt := fmt.Sprintf(`Analyze this email and determine if it requires a response.

Subject: %s
Body: %s

Respond with:
1. REQUIRES_RESPONSE: yes or no
2. REASON: Brief explanation

Examples of emails that DON'T require response:
- Newsletters and marketing emails
- Automated notifications (shipping, receipts)
- No-reply sender addresses
- Calendar invitations (handled separately)
- Email threads where you're CC'd but not directly addressed

Examples that DO require response:
- Direct questions to you
- Meeting requests with specific asks
- Action items assigned to you
- Requests for information or help`, subject, body)

	content, err := c.sendChatRequest("", []chatMessage{{Role: "user", Content: prompt}}, 0.3, 200)
	if err != nil {
		return false, "", err
	}

	requires, reason := parseShouldRespond(content)
	return requires, reason, nil
}

func buildDraftSystemPrompt(ctx DraftContext) string {
	prompt := `You are an AI email assistant helping to draft professional email responses.

Guidelines:
- Be professional, clear, and concise
- Match the tone of the original email (formal vs casual)
- Address all questions or points raised
- Keep responses focused and to the point
- Don't add unnecessary pleasantries or filler`

	if ctx.CustomInstructions != "" {
		prompt += "\n\nAdditional instructions: " + ctx.CustomInstructions
	}

	return prompt
}

func buildDraftUserPrompt(ctx DraftContext) string {
	prompt := fmt.Sprintf(`Please draft a response to this email:

From: %s <%s>
Subject: %s

---
%s
---

Provide your response in this format:
RESPONSE:
[Your email response here]

REASONING:
[Brief explanation of your approach]

CONFIDENCE: [0.0 to 1.0]`, ctx.SenderName, ctx.SenderEmail, ctx.Subject, ctx.OriginalEmail)

	if ctx.UserSignature != "" {
		prompt += "\n\nPlease end the email with this signature:\n" + ctx.UserSignature
	}

	return prompt
}

// parseDraftResponse extracts the RESPONSE/REASONING/CONFIDENCE sections from
// the model output. A malformed output falls back to using the whole content
// as the body with the default confidence.
func parseDraftResponse(content string) *DraftResponse {
	resp := &DraftResponse{Confidence: 0.7}

	if idx := strings.Index(content, "RESPONSE:"); idx >= 0 {
		rest := content[idx+len("RESPONSE:"):]
		if end := strings.Index(rest, "REASONING:"); end >= 0 {
			resp.Body = strings.TrimSpace(rest[:end])
		} else {
			resp.Body = strings.TrimSpace(rest)
		}
	}

	if idx := strings.Index(content, "REASONING:"); idx >= 0 {
		rest := content[idx+len("REASONING:"):]
		if end := strings.Index(rest, "CONFIDENCE:"); end >= 0 {
			resp.Reasoning = strings.TrimSpace(rest[:end])
		} else {
			resp.Reasoning = strings.TrimSpace(rest)
		}
	}

	if idx := strings.Index(content, "CONFIDENCE:"); idx >= 0 {
		rest := strings.TrimSpace(content[idx+len("CONFIDENCE:"):])
		if fields := strings.Fields(rest); len(fields) > 0 {
			if conf, err := strconv.ParseFloat(fields[0], 64); err == nil {
				resp.Confidence = conf
			}
		}
	}

	if resp.Body == "" {
		resp.Body = content
	}

	if resp.Confidence < 0 {
		resp.Confidence = 0
	}
	if resp.Confidence > 1 {
		resp.Confidence = 1
	}

	return resp
}

// parseShouldRespond extracts the REQUIRES_RESPONSE and REASON lines
func parseShouldRespond(content string) (bool, string) {
	requires := false
	reason := "Unable to determine"

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)
		if strings.HasPrefix(lower, "requires_response:") {
			value := strings.TrimSpace(stripped[len("requires_response:"):])
			requires = strings.HasPrefix(strings.ToLower(value), "y")
		} else if strings.HasPrefix(lower, "reason:") {
			if parsed := strings.TrimSpace(stripped[len("reason:"):]); parsed != "" {
				reason = parsed
			}
		}
	}

	if !requires && strings.Contains(strings.ToLower(content), "requires_response: yes") {
		requires = true
	}

	return requires, reason
}
