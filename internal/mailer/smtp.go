package mailer

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/admingate/apiserver/config"
)

// Sender delivers a composed message to its recipient.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers mail over plain SMTP with optional AUTH PLAIN.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		from: cfg.From,
	}
}

func (s *SMTPSender) Send(msg Message) error {
	body := encodeMessage(s.from, msg)
	return smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, body)
}

// encodeMessage frames the message as multipart/alternative so clients can
// pick between the text and HTML bodies.
func encodeMessage(from string, msg Message) []byte {
	const boundary = "admingate-mail-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
