package mailbox

import (
	"time"
)

// Message is an immutable snapshot of one inbound email, owned by the polling
// side and borrowed by the processing pipeline for the duration of one call.
type Message struct {
	SourceID   string // mailbox-assigned unique id
	ThreadID   string
	MessageID  string // RFC 5322 Message-ID, used as the reply target
	FromEmail  string
	FromName   string
	ToEmails   []string
	CcEmails   []string
	Subject    string
	Snippet    string
	BodyText   string
	BodyHTML   string
	ReceivedAt time.Time
}

// SenderDisplay returns the sender's display name, falling back to the address
func (m Message) SenderDisplay() string {
	if m.FromName != "" {
		return m.FromName
	}
	return m.FromEmail
}

// SendRequest describes one outbound message for a Sender
type SendRequest struct {
	To        []string
	Subject   string
	Body      string
	ReplyToID string // Message-ID of the message being replied to
	ThreadID  string
}

// snippetLength bounds the generated preview text
const snippetLength = 200

// MakeSnippet derives a short plain-text preview from a message body
func MakeSnippet(body string) string {
	collapsed := make([]rune, 0, snippetLength)
	lastSpace := false
	for _, r := range body {
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			if !lastSpace && len(collapsed) > 0 {
				collapsed = append(collapsed, ' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		collapsed = append(collapsed, r)
		if len(collapsed) >= snippetLength {
			break
		}
	}
	return string(collapsed)
}
