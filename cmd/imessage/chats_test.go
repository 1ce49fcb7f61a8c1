package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/spachava753/imessage/macos/messages"
)

type fakeChats struct {
	chats []messages.Chat
	err   error
	limit int
}

func (f *fakeChats) RecentChats(_ context.Context, limit int) ([]messages.Chat, error) {
	f.limit = limit
	return f.chats, f.err
}

var sampleChats = []messages.Chat{
	{ID: "iMessage;+;chat42", RecipientID: "chat42", ServiceName: "iMessage", RoomName: "chat42", DisplayName: "Weekend"},
	{ID: "iMessage;-;+15551234567", RecipientID: "+15551234567", ServiceName: "iMessage"},
}

func TestListChatsTable(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeChats{chats: sampleChats}
	be.Err(t, listChats(context.Background(), &buf, store, 5, false), nil)
	be.Equal(t, store.limit, 5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	be.Equal(t, len(lines), 3)
	be.True(t, strings.HasPrefix(lines[0], "RECIPIENT"))
	be.Equal(t, strings.Fields(lines[1]), []string{"chat42", "iMessage", "Weekend", "iMessage;+;chat42"})
	be.Equal(t, strings.Fields(lines[2]), []string{"+15551234567", "iMessage", "-", "iMessage;-;+15551234567"})
}

func TestListChatsJSON(t *testing.T) {
	var buf bytes.Buffer
	be.Err(t, listChats(context.Background(), &buf, &fakeChats{chats: sampleChats}, 10, true), nil)

	var got []map[string]string
	be.Err(t, json.Unmarshal(buf.Bytes(), &got), nil)
	be.Equal(t, len(got), 2)
	be.Equal(t, got[0]["display_name"], "Weekend")
	_, hasRoom := got[1]["room_name"]
	be.True(t, !hasRoom)
}

func TestListChatsError(t *testing.T) {
	var buf bytes.Buffer
	err := listChats(context.Background(), &buf, &fakeChats{err: errors.New("locked")}, 10, false)
	be.Err(t, err, "locked")
	be.Equal(t, buf.Len(), 0)
}
