package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/spachava753/imessage/macos/messages"
)

type messageJSON struct {
	GUID     string     `json:"guid"`
	Handle   string     `json:"handle"`
	Text     *string    `json:"text"`
	Group    *string    `json:"group"`
	FromMe   bool       `json:"from_me"`
	Date     *time.Time `json:"date"`
	DateRead *time.Time `json:"date_read"`
	File     *string    `json:"file"`
	FileType *string    `json:"file_type"`
}

type eventJSON struct {
	Kind    messages.EventKind `json:"kind"`
	Time    time.Time          `json:"time"`
	Message *messageJSON       `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type printer struct {
	w    io.Writer
	json bool
	now  func() time.Time
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON, now: time.Now}
}

func (p *printer) print(ev messages.Event) error {
	if p.json {
		return json.NewEncoder(p.w).Encode(toEventJSON(ev))
	}
	_, err := fmt.Fprintln(p.w, formatEvent(ev, p.now()))
	return err
}

func toEventJSON(ev messages.Event) eventJSON {
	out := eventJSON{Kind: ev.Kind, Time: ev.Time}
	switch ev.Kind {
	case messages.EventMessage:
		m := ev.Message
		out.Message = &messageJSON{
			GUID:     m.GUID,
			Handle:   m.Handle,
			Text:     m.Text,
			Group:    m.Group,
			FromMe:   m.FromMe,
			Date:     m.Date,
			DateRead: m.DateRead,
			File:     m.File,
			FileType: m.FileType,
		}
	case messages.EventError:
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
	}
	return out
}

// formatEvent renders one event as a single human-readable line.
func formatEvent(ev messages.Event, now time.Time) string {
	if ev.Kind == messages.EventError {
		return fmt.Sprintf("error: %v", ev.Err)
	}
	m := ev.Message

	when := "unknown time"
	if m.Date != nil {
		when = humanize.RelTime(*m.Date, now, "ago", "from now")
	}

	who := m.Handle
	if who == "" {
		who = "unknown"
	}
	if m.FromMe {
		who = "me -> " + who
	}
	if m.Group != nil {
		who += " (" + *m.Group + ")"
	}

	var parts []string
	if m.Text != nil && *m.Text != "" {
		parts = append(parts, *m.Text)
	}
	if m.File != nil {
		parts = append(parts, fmt.Sprintf("[%s %s]", *m.FileType, *m.File))
	}
	if len(parts) == 0 {
		parts = append(parts, "(empty)")
	}
	return fmt.Sprintf("[%s] %s: %s", when, who, strings.Join(parts, " "))
}
