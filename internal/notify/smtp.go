package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// SMTPNotifier sends multipart text+html mail through a relay.
type SMTPNotifier struct {
	Addr string // host:port of the relay
	From string // e.g. "Volunteer Coordinator <volunteer@example.org>"
}

func (n *SMTPNotifier) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.Email == "" {
		return fmt.Errorf("recipient %q has no email address", to.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := append([]string{to.Email}, msg.BCC...)
	body := buildMIME(n.From, to, msg)
	if err := smtp.SendMail(n.Addr, nil, envelopeAddress(n.From), recipients, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to.Email, err)
	}
	return nil
}

const mimeBoundary = "=-volunteer-planner-alt"

func buildMIME(from string, to Recipient, msg Message) []byte {
	var b strings.Builder
	write := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\r\n", args...)
	}
	write("From: %s", from)
	write("To: %s", to.Email)
	write("Subject: %s", mime.QEncoding.Encode("utf-8", msg.Subject))
	write("MIME-Version: 1.0")
	if msg.HTMLBody == "" {
		write("Content-Type: text/plain; charset=utf-8")
		write("")
		b.WriteString(msg.TextBody)
		return []byte(b.String())
	}
	write("Content-Type: multipart/alternative; boundary=%q", mimeBoundary)
	write("")
	write("--%s", mimeBoundary)
	write("Content-Type: text/plain; charset=utf-8")
	write("")
	b.WriteString(msg.TextBody)
	write("")
	write("--%s", mimeBoundary)
	write("Content-Type: text/html; charset=utf-8")
	write("")
	b.WriteString(msg.HTMLBody)
	write("")
	write("--%s--", mimeBoundary)
	return []byte(b.String())
}

// envelopeAddress strips a display name down to the bare address for the
// SMTP envelope.
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return from
}
