package messages

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

const fallbackMimeType = "application/octet-stream"

// Message is one message surfaced by a polling session.
type Message struct {
	GUID   string
	Handle string
	Text   *string
	// Group is the room name of a group chat; nil for one-to-one threads.
	Group    *string
	FromMe   bool
	Date     *time.Time
	DateRead *time.Time
	// File is the attachment path with "~" expanded. File and FileType are
	// either both set or both nil.
	File     *string
	FileType *string
}

func newMessage(r Row, home string) Message {
	msg := Message{
		GUID:     r.GUID,
		Handle:   r.Handle.String,
		Text:     nullString(r.Text.String, r.Text.Valid),
		Group:    nullString(r.RoomName.String, r.RoomName.Valid),
		FromMe:   r.IsFromMe,
		Date:     decodeTimePtr(r.Date),
		DateRead: decodeTimePtr(r.DateRead),
	}
	if r.Attachment.Valid {
		file := expandHome(r.Attachment.String, home)
		fileType := r.MimeType.String
		if !r.MimeType.Valid || strings.TrimSpace(fileType) == "" {
			fileType = guessMimeType(file)
		}
		msg.File = &file
		msg.FileType = &fileType
	}
	return msg
}

func expandHome(path string, home string) string {
	if home == "" {
		return path
	}
	return strings.Replace(path, "~", home, 1)
}

func guessMimeType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return fallbackMimeType
}

func nullString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
