// Package mail composes messages and delivers them over SMTP.
package mail

import (
	"bytes"
	"context"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNoRecipients is returned for a mail without To addresses.
var ErrNoRecipients = errors.New("mail: no recipients")

// Mail is one HTML message.
type Mail struct {
	From    User
	To      []User
	Cc      []User
	Bcc     []User
	ReplyTo *User
	Subject string
	Body    string

	// Date defaults to the time Payload is rendered.
	Date time.Time
}

// Sender delivers mails.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// Recipients returns every envelope recipient: To, then Cc, then Bcc.
func (m Mail) Recipients() []User {
	out := make([]User, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// Payload renders the message as sent in the DATA phase. Bcc
// recipients are not listed.
func (m Mail) Payload() ([]byte, error) {
	if len(m.To) == 0 {
		return nil, ErrNoRecipients
	}
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	replyTo := m.From
	if m.ReplyTo != nil {
		replyTo = *m.ReplyTo
	}
	domain := "localhost"
	if _, d, ok := strings.Cut(m.From.Email, "@"); ok {
		domain = d
	}

	var b bytes.Buffer
	writeHeader := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	writeHeader("To", joinUsers(m.To))
	if len(m.Cc) > 0 {
		writeHeader("Cc", joinUsers(m.Cc))
	}
	writeHeader("From", m.From.header())
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader("Reply-To", replyTo.header())
	writeHeader("Date", date.Format(time.RFC1123Z))
	writeHeader("Message-ID", "<"+uuid.NewString()+"@"+domain+">")
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/html; charset="utf-8"`)
	writeHeader("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(normalizeNewlines(m.Body))
	return b.Bytes(), nil
}

func joinUsers(users []User) string {
	parts := make([]string, len(users))
	for i, u := range users {
		parts[i] = u.header()
	}
	return strings.Join(parts, ", ")
}

// normalizeNewlines converts bare LF line endings to CRLF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
