package gmail

import (
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"net/mail"
	"strings"
)

// buildMessage renders an RFC 2822 HTML message and encodes it the way the
// Gmail send endpoint expects.
func buildMessage(to, subject, body string) (string, error) {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	var b strings.Builder
	b.WriteString("To: " + addr.String() + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody(body))

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

// htmlBody escapes plain text and keeps its line breaks.
func htmlBody(text string) string {
	escaped := html.EscapeString(strings.ReplaceAll(text, "\r\n", "\n"))
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}
