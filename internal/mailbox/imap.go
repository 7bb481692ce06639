package mailbox

import (
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/inboxpilot/core/internal/database/models"
)

var (
	// ErrIMAPConnectionFailed indicates the IMAP connection could not be established
	ErrIMAPConnectionFailed = errors.New("IMAP connection failed")
	// ErrIMAPFetchFailed indicates fetching messages failed
	ErrIMAPFetchFailed = errors.New("IMAP fetch failed")
)

const (
	dialTimeout  = 10 * time.Second
	imapTimeout  = 2 * time.Minute
	fetchBatch   = 10
	maxPollCount = 50
)

// IMAPSource fetches unseen messages from an account's INBOX. It implements
// the polling collaborator: each Poll opens a fresh connection, fetches, and
// logs out, so a source value itself carries no connection state.
type IMAPSource struct {
	account *models.EmailAccount
}

// NewIMAPSource creates a source for one mailbox account
func NewIMAPSource(account *models.EmailAccount) *IMAPSource {
	return &IMAPSource{account: account}
}

// Poll fetches unseen INBOX messages as immutable snapshots, newest last.
// At most maxPollCount messages are returned per call.
func (s *IMAPSource) Poll() ([]Message, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("%w: select INBOX: %v", ErrIMAPFetchFailed, err)
	}

	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIMAPFetchFailed, err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}
	if len(seqNums) > maxPollCount {
		seqNums = seqNums[len(seqNums)-maxPollCount:]
	}

	var fetched []Message
	for i := 0; i < len(seqNums); i += fetchBatch {
		end := i + fetchBatch
		if end > len(seqNums) {
			end = len(seqNums)
		}

		batch, err := s.fetchBatch(c, seqNums[i:end])
		if err != nil {
			return nil, err
		}
		fetched = append(fetched, batch...)
	}

	return fetched, nil
}

func (s *IMAPSource) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.account.IMAPHost, s.account.IMAPPort)
	dialer := &net.Dialer{Timeout: dialTimeout}

	var c *client.Client
	if s.account.UseSSL {
		tlsConfig := &tls.Config{ServerName: s.account.IMAPHost}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
		}
	}

	c.Timeout = imapTimeout

	if err := c.Login(s.account.Username, s.account.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: login failed: %v", ErrIMAPConnectionFailed, err)
	}

	return c, nil
}

func (s *IMAPSource) fetchBatch(c *client.Client, seqNums []uint32) ([]Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var fetched []Message
	for msg := range messages {
		if msg == nil {
			continue
		}
		fetched = append(fetched, parseIMAPMessage(msg))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIMAPFetchFailed, err)
	}

	return fetched, nil
}

// parseIMAPMessage converts a fetched IMAP message into a Message snapshot
func parseIMAPMessage(msg *imap.Message) Message {
	m := Message{}

	if msg.Envelope != nil {
		m.MessageID = msg.Envelope.MessageId
		m.Subject = msg.Envelope.Subject
		m.ReceivedAt = msg.Envelope.Date

		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			m.FromEmail = fmt.Sprintf("%s@%s", from.MailboxName, from.HostName)
			m.FromName = from.PersonalName
		}
		for _, addr := range msg.Envelope.To {
			m.ToEmails = append(m.ToEmails, fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName))
		}
		for _, addr := range msg.Envelope.Cc {
			m.CcEmails = append(m.CcEmails, fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName))
		}
		if len(msg.Envelope.InReplyTo) > 0 {
			m.ThreadID = msg.Envelope.InReplyTo
		}
	}

	var raw []byte
	for _, literal := range msg.Body {
		content, err := io.ReadAll(literal)
		if err != nil {
			continue
		}
		raw = content

		entity, err := message.Read(bytes.NewReader(content))
		if err != nil {
			continue
		}

		if m.MessageID == "" {
			m.MessageID = strings.TrimSpace(entity.Header.Get("Message-Id"))
		}
		parseEntity(entity, &m)
	}

	// Threads without In-Reply-To root at their own Message-ID
	if m.ThreadID == "" {
		m.ThreadID = m.MessageID
	}

	m.SourceID = sourceIDFor(msg.Uid, m, raw)
	m.Snippet = MakeSnippet(m.BodyText)

	return m
}

// parseEntity walks the MIME tree picking the first text/plain and text/html parts
func parseEntity(entity *message.Entity, m *Message) {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			parseEntity(part, m)
		}
		return
	}

	if mediaType == "text/plain" && m.BodyText == "" {
		body, _ := io.ReadAll(entity.Body)
		m.BodyText = string(body)
	} else if mediaType == "text/html" && m.BodyHTML == "" {
		body, _ := io.ReadAll(entity.Body)
		m.BodyHTML = string(body)
	}
}

// sourceIDFor derives a stable unique id for a fetched message. Prefers the
// Message-ID header; falls back to the IMAP UID, then a content hash.
func sourceIDFor(uid uint32, m Message, raw []byte) string {
	if m.MessageID != "" {
		return m.MessageID
	}
	if uid != 0 {
		return fmt.Sprintf("uid:%d", uid)
	}
	if len(raw) > 0 {
		sum := sha256.Sum256(raw)
		return "sha256:" + hex.EncodeToString(sum[:])
	}
	seed := fmt.Sprintf("%d|%s|%s", m.ReceivedAt.UnixNano(), m.Subject, m.FromEmail)
	sum := sha256.Sum256([]byte(seed))
	return "gen:" + hex.EncodeToString(sum[:16])
}
