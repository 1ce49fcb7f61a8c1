package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"

	"github.com/spachava753/imessage/macos/messages"
)

func strPtr(s string) *string { return &s }

func TestFormatEventMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-3 * time.Minute)
	ev := messages.Event{Kind: messages.EventMessage, Message: messages.Message{
		GUID:   "g",
		Handle: "+15551234567",
		Text:   strPtr("hello"),
		Group:  strPtr("chat42"),
		Date:   &sent,
	}}
	be.Equal(t, formatEvent(ev, now), "[3 minutes ago] +15551234567 (chat42): hello")
}

func TestFormatEventFromMeWithAttachment(t *testing.T) {
	ev := messages.Event{Kind: messages.EventMessage, Message: messages.Message{
		GUID:     "g",
		Handle:   "alice@example.com",
		FromMe:   true,
		File:     strPtr("/Users/alice/a.png"),
		FileType: strPtr("image/png"),
	}}
	be.Equal(t, formatEvent(ev, time.Now()), "[unknown time] me -> alice@example.com: [image/png /Users/alice/a.png]")
}

func TestFormatEventError(t *testing.T) {
	ev := messages.Event{Kind: messages.EventError, Err: errors.New("disk gone")}
	be.Equal(t, formatEvent(ev, time.Now()), "error: disk gone")
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, true)
	be.Err(t, p.print(messages.Event{Kind: messages.EventMessage, Message: messages.Message{GUID: "g", Handle: "+1", Text: strPtr("hi")}}), nil)
	be.Err(t, p.print(messages.Event{Kind: messages.EventError, Err: errors.New("boom")}), nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	be.Equal(t, len(lines), 2)

	var first map[string]any
	be.Err(t, json.Unmarshal([]byte(lines[0]), &first), nil)
	be.Equal(t, first["kind"], "message")
	msg := first["message"].(map[string]any)
	be.Equal(t, msg["guid"], "g")
	be.Equal(t, msg["text"], "hi")
	be.Equal(t, msg["file"], nil)

	var second map[string]any
	be.Err(t, json.Unmarshal([]byte(lines[1]), &second), nil)
	be.Equal(t, second["kind"], "error")
	be.Equal(t, second["error"], "boom")
	_, hasMessage := second["message"]
	be.True(t, !hasMessage)
}
