package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/imessage/macos/messages"
)

func buildEmail(from string, to []string, msg messages.Message, messageID string, now time.Time) []byte {
	sender := firstNonEmpty(msg.Handle, "unknown sender")
	subject := "iMessage from " + sender
	if msg.FromMe {
		subject = "iMessage sent to " + sender
	}
	if msg.Group != nil && *msg.Group != "" {
		subject += " in " + *msg.Group
	}

	date := now
	if msg.Date != nil {
		date = *msg.Date
	}

	headers := []string{
		fmt.Sprintf("From: %s", sanitizeHeader(from)),
		fmt.Sprintf("To: %s", strings.Join(to, ", ")),
		fmt.Sprintf("Subject: %s", sanitizeHeader(subject)),
		fmt.Sprintf("Date: %s", date.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: %s", messageID),
		fmt.Sprintf("X-IMessage-GUID: %s", sanitizeHeader(msg.GUID)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}

	var body []string
	if msg.Text != nil && *msg.Text != "" {
		body = append(body, *msg.Text)
	}
	if msg.File != nil {
		fileType := "application/octet-stream"
		if msg.FileType != nil {
			fileType = *msg.FileType
		}
		body = append(body, fmt.Sprintf("[attachment: %s (%s)]", *msg.File, fileType))
	}
	if len(body) == 0 {
		body = append(body, "(empty message)")
	}

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + normalizeBody(strings.Join(body, "\n\n")) + "\r\n")
}

func generateMessageID(address string) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func uniqueRecipients(groups ...[]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 4)
	for _, group := range groups {
		for _, recipient := range group {
			recipient = strings.TrimSpace(recipient)
			if recipient == "" {
				continue
			}
			if _, ok := seen[recipient]; ok {
				continue
			}
			seen[recipient] = struct{}{}
			out = append(out, recipient)
		}
	}
	return out
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

// normalizeBody converts line endings to CRLF. Dot-stuffing is left to the
// DATA writer.
func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return strings.TrimSpace(body)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
