package mailbox

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/inboxpilot/core/internal/database/models"
)

var (
	// ErrSMTPConnectionFailed indicates the SMTP connection could not be established
	ErrSMTPConnectionFailed = errors.New("SMTP connection failed")
	// ErrSendFailed indicates the message could not be delivered to the server
	ErrSendFailed = errors.New("email send failed")
)

// loginAuth implements smtp.Auth for LOGIN authentication, which some
// providers require instead of PLAIN.
type loginAuth struct {
	username, password string
}

func newLoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch strings.TrimSpace(string(fromServer)) {
		case "Username:":
			return []byte(a.username), nil
		case "Password:":
			return []byte(a.password), nil
		default:
			return []byte(a.username), nil
		}
	}
	return nil, nil
}

// SMTPSender delivers outbound messages through an account's SMTP server.
// It implements the send collaborator for replies and forwards.
type SMTPSender struct {
	account *models.EmailAccount
}

// NewSMTPSender creates a sender for one mailbox account
func NewSMTPSender(account *models.EmailAccount) *SMTPSender {
	return &SMTPSender{account: account}
}

// Send delivers one message and returns the generated Message-ID
func (s *SMTPSender) Send(req SendRequest) (string, error) {
	if len(req.To) == 0 {
		return "", fmt.Errorf("%w: no recipients", ErrSendFailed)
	}

	messageID := generateMessageID(s.account.Email)
	content := s.buildContent(req, messageID)

	if err := s.deliver(req.To, content); err != nil {
		return "", err
	}
	return messageID, nil
}

// buildContent assembles the RFC 5322 message. Replies carry In-Reply-To and
// References headers so receiving clients thread them correctly.
func (s *SMTPSender) buildContent(req SendRequest, messageID string) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.account.DisplayName, s.account.Email))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(req.To, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(req.Subject))))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	if req.ReplyToID != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", req.ReplyToID))
		references := req.ReplyToID
		if req.ThreadID != "" && req.ThreadID != req.ReplyToID {
			references = req.ThreadID + " " + req.ReplyToID
		}
		buf.WriteString(fmt.Sprintf("References: %s\r\n", references))
	}
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(req.Body))))
	buf.WriteString("\r\n")

	return buf.String()
}

func (s *SMTPSender) deliver(recipients []string, content string) error {
	addr := fmt.Sprintf("%s:%d", s.account.SMTPHost, s.account.SMTPPort)

	var client *smtp.Client
	if s.account.UseSSL {
		tlsConfig := &tls.Config{ServerName: s.account.SMTPHost}
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: dialTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSMTPConnectionFailed, err)
		}
		client, err = smtp.NewClient(conn, s.account.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("%w: %v", ErrSMTPConnectionFailed, err)
		}
	} else {
		var err error
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSMTPConnectionFailed, err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: s.account.SMTPHost}
			// Continue in plain text if STARTTLS negotiation fails
			client.StartTLS(tlsConfig)
		}
	}
	defer client.Close()

	// Try PLAIN first, fall back to LOGIN for providers that require it
	auth := smtp.PlainAuth("", s.account.Username, s.account.Password, s.account.SMTPHost)
	if err := client.Auth(auth); err != nil {
		auth = newLoginAuth(s.account.Username, s.account.Password)
		if err2 := client.Auth(auth); err2 != nil {
			return fmt.Errorf("%w: authentication failed (tried PLAIN and LOGIN): %v", ErrSendFailed, err)
		}
	}

	if err := client.Mail(s.account.Email); err != nil {
		return fmt.Errorf("%w: MAIL FROM failed: %v", ErrSendFailed, err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%w: RCPT TO failed for %s: %v", ErrSendFailed, rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: DATA failed: %v", ErrSendFailed, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("%w: write failed: %v", ErrSendFailed, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close failed: %v", ErrSendFailed, err)
	}

	// Some servers return odd responses to QUIT after a successful send
	client.Quit()
	return nil
}

// generateMessageID creates a unique RFC 5322 Message-ID for the sender domain
func generateMessageID(fromAddr string) string {
	domain := "localhost"
	if at := strings.LastIndex(fromAddr, "@"); at >= 0 && at < len(fromAddr)-1 {
		domain = fromAddr[at+1:]
	}

	random := make([]byte, 8)
	rand.Read(random)
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), hex.EncodeToString(random), domain)
}

// wrapBase64 wraps base64 content to 76 characters per line
func wrapBase64(encoded string) string {
	const lineLen = 76
	var buf strings.Builder
	for len(encoded) > lineLen {
		buf.WriteString(encoded[:lineLen])
		buf.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	buf.WriteString(encoded)
	return buf.String()
}
