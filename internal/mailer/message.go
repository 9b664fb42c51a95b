package mailer

import (
	"fmt"
	"net/url"
	"strings"
)

// Message is a fully composed outbound email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body"`
}

// VerificationMessage builds the email carrying a single-use verification
// link. The cleartext token appears only here and in the recipient's query
// string; the store keeps its SHA-256 digest.
func VerificationMessage(frontendURL, email, token string) Message {
	link := buildLink(frontendURL, "/verify-email", email, token)
	return Message{
		To:      email,
		Subject: "Verify your email address",
		TextBody: fmt.Sprintf(
			"Welcome! Please confirm your email address by opening the link below within 24 hours:\n\n%s\n\nIf you did not create this account, you can ignore this message.\n",
			link),
		HTMLBody: fmt.Sprintf(
			`<p>Welcome! Please confirm your email address by clicking the link below within 24 hours:</p><p><a href="%s">Verify my email</a></p><p>If you did not create this account, you can ignore this message.</p>`,
			link),
	}
}

// ResetMessage builds the email carrying a single-use password reset link,
// valid for one hour.
func ResetMessage(frontendURL, email, token string) Message {
	link := buildLink(frontendURL, "/reset-password", email, token)
	return Message{
		To:      email,
		Subject: "Reset your password",
		TextBody: fmt.Sprintf(
			"A password reset was requested for this account. Open the link below within 1 hour to choose a new password:\n\n%s\n\nIf you did not request a reset, you can ignore this message.\n",
			link),
		HTMLBody: fmt.Sprintf(
			`<p>A password reset was requested for this account. Click the link below within 1 hour to choose a new password:</p><p><a href="%s">Reset my password</a></p><p>If you did not request a reset, you can ignore this message.</p>`,
			link),
	}
}

func buildLink(frontendURL, path, email, token string) string {
	base := strings.TrimRight(frontendURL, "/")
	values := url.Values{}
	values.Set("token", token)
	values.Set("email", email)
	return base + path + "?" + values.Encode()
}
