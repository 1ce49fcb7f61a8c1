package messages

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nalgeon/be"

	"github.com/spachava753/imessage/internal/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

type scriptedResponse struct {
	rows []Row
	err  error
}

// scriptedStore returns one response per call, then empty results.
type scriptedStore struct {
	mu        sync.Mutex
	responses []scriptedResponse
	cursors   []int64
}

func (s *scriptedStore) MessagesSince(_ context.Context, cursor int64) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = append(s.cursors, cursor)
	i := len(s.cursors) - 1
	if i < len(s.responses) {
		return s.responses[i].rows, s.responses[i].err
	}
	return nil, nil
}

func (s *scriptedStore) calls() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.cursors...)
}

// tickingClock advances one second per reading.
func tickingClock(start time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)-1) * time.Second)
	}
}

func textRow(guid string, date int64) Row {
	return Row{
		GUID:   guid,
		Handle: sql.NullString{String: "+15551234567", Valid: true},
		Text:   sql.NullString{String: "hi " + guid, Valid: true},
		Date:   date,
	}
}

func newTestSession(store Store) *Session {
	return NewSession(store, SessionConfig{
		Codec:    Codec{Packed: true, Clock: tickingClock(time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC))},
		Interval: time.Millisecond,
		Home:     "/Users/alice",
		Log:      testLogger(),
	})
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
			return nil
		}
	}
}

func messageGUIDs(events []Event) []string {
	var guids []string
	for _, ev := range events {
		if ev.Kind == EventMessage {
			guids = append(guids, ev.Message.GUID)
		}
	}
	return guids
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestSessionEmitsEachGUIDOnceInStoreOrder(t *testing.T) {
	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{textRow("A", 1), textRow("B", 2)}},
		{rows: []Row{textRow("A", 1)}},
		{rows: []Row{textRow("C", 4), textRow("B", 2), textRow("D", 3)}},
		{err: errors.New("stop")},
	}}
	s := newTestSession(store)
	ch, _ := s.Events().Subscribe(64)
	s.Start(context.Background())

	events := collect(t, ch)
	be.Equal(t, messageGUIDs(events), []string{"A", "B", "C", "D"})
	be.Equal(t, events[len(events)-1].Kind, EventError)
}

func TestSessionPackedAndAbsentTimestamps(t *testing.T) {
	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{textRow("A", 700000000*packFactor), textRow("B", 0)}},
		{rows: []Row{textRow("A", 700000000*packFactor)}},
		{err: errors.New("stop")},
	}}
	s := newTestSession(store)
	ch, _ := s.Events().Subscribe(64)
	s.Start(context.Background())

	events := collect(t, ch)
	be.Equal(t, messageGUIDs(events), []string{"A", "B"})

	a := events[0].Message
	be.True(t, a.Date != nil)
	be.Equal(t, *a.Date, time.Unix(appleReferenceUnix+700000000, 0).UTC())
	be.True(t, a.DateRead == nil)
	be.Equal(t, *a.Text, "hi A")

	b := events[1].Message
	be.True(t, b.Date == nil)
}

func TestSessionExpandsAttachmentPaths(t *testing.T) {
	withFile := textRow("F", 1)
	withFile.Attachment = sql.NullString{String: "~/Library/Messages/Attachments/img.png", Valid: true}
	withFile.MimeType = sql.NullString{String: "image/png", Valid: true}

	noMime := textRow("G", 1)
	noMime.Attachment = sql.NullString{String: "~/Library/Messages/Attachments/notes.unknownext", Valid: true}

	group := textRow("H", 1)
	group.RoomName = sql.NullString{String: "chat123456", Valid: true}
	group.IsFromMe = true

	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{withFile, noMime, group}},
		{err: errors.New("stop")},
	}}
	s := newTestSession(store)
	ch, _ := s.Events().Subscribe(64)
	s.Start(context.Background())

	events := collect(t, ch)
	be.Equal(t, messageGUIDs(events), []string{"F", "G", "H"})

	f := events[0].Message
	be.Equal(t, *f.File, "/Users/alice/Library/Messages/Attachments/img.png")
	be.Equal(t, *f.FileType, "image/png")

	g := events[1].Message
	be.Equal(t, *g.File, "/Users/alice/Library/Messages/Attachments/notes.unknownext")
	be.Equal(t, *g.FileType, fallbackMimeType)

	h := events[2].Message
	be.True(t, h.File == nil)
	be.True(t, h.FileType == nil)
	be.Equal(t, *h.Group, "chat123456")
	be.True(t, h.FromMe)
}

func TestSessionHaltsOnQueryFailure(t *testing.T) {
	boom := errors.New("database is locked")
	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{textRow("A", 1)}},
		{rows: []Row{textRow("B", 2)}},
		{err: boom},
		{rows: []Row{textRow("never", 3)}},
	}}
	s := newTestSession(store)
	ch, _ := s.Events().Subscribe(64)
	s.Start(context.Background())

	events := collect(t, ch)
	<-s.Done()

	be.Equal(t, messageGUIDs(events), []string{"A", "B"})
	be.Equal(t, countKind(events, EventError), 1)
	be.Err(t, events[len(events)-1].Err, boom)
	be.Equal(t, s.State(), StateHalted)
	be.Err(t, s.Err(), boom)

	time.Sleep(20 * time.Millisecond)
	be.Equal(t, len(store.calls()), 3)
}

func TestSessionErrSurvivesDroppedErrorEvent(t *testing.T) {
	boom := errors.New("disk I/O error")
	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{textRow("A", 1)}},
		{err: boom},
	}}
	s := newTestSession(store)
	ch, _ := s.Events().Subscribe(1)
	s.Start(context.Background())
	<-s.Done()

	events := collect(t, ch)
	be.Equal(t, messageGUIDs(events), []string{"A"})
	be.Equal(t, countKind(events, EventError), 0)
	be.Err(t, s.Err(), boom)
}

func TestSessionAdvancesCursorEveryCycle(t *testing.T) {
	start := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	store := &scriptedStore{responses: []scriptedResponse{
		{},
		{err: errors.New("stop")},
	}}
	s := newTestSession(store)
	s.Start(context.Background())
	<-s.Done()

	cursors := store.calls()
	be.Equal(t, len(cursors), 2)
	be.Equal(t, cursors[0], EncodeTime(start.Add(-DefaultCursorMargin), true))
	be.Equal(t, cursors[1], EncodeTime(start.Add(time.Second-DefaultCursorMargin), true))
	// The failed cycle still moved the cursor.
	be.Equal(t, s.Cursor(), EncodeTime(start.Add(2*time.Second-DefaultCursorMargin), true))
}

func TestSessionStartIsIdempotent(t *testing.T) {
	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{textRow("A", 1)}},
		{err: errors.New("stop")},
	}}
	s := newTestSession(store)
	be.Equal(t, s.State(), StateIdle)

	ctx := context.Background()
	first := s.Start(ctx)
	second := s.Start(ctx)
	be.True(t, first == second)
	be.True(t, first == s.Events())

	<-s.Done()
	be.True(t, s.Start(ctx) == first)
	be.Equal(t, len(store.calls()), 2)
}

func TestSessionLateSubscriberSeesLaterCycles(t *testing.T) {
	release := make(chan struct{})
	store := &gatedStore{release: release, rows: [][]Row{
		{textRow("A", 1)},
		{textRow("B", 2)},
	}}
	s := newTestSession(store)
	s.Start(context.Background())

	// First cycle is blocked until release; attach while it is pending.
	ch, _ := s.Events().Subscribe(64)
	close(release)

	events := collect(t, ch)
	be.Equal(t, messageGUIDs(events), []string{"A", "B"})
	be.Equal(t, countKind(events, EventError), 1)
}

func TestSessionContextCancelStops(t *testing.T) {
	store := &scriptedStore{}
	s := newTestSession(store)
	ch, _ := s.Events().Subscribe(64)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()

	events := collect(t, ch)
	<-s.Done()
	be.Equal(t, countKind(events, EventError), 0)
	be.Equal(t, s.State(), StateHalted)
	be.Err(t, s.Err(), context.Canceled)

	n := len(store.calls())
	time.Sleep(20 * time.Millisecond)
	be.Equal(t, len(store.calls()), n)
}

func TestSessionPrunesLedgerBehindCursor(t *testing.T) {
	start := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	old := EncodeTime(start.Add(-time.Hour), true)
	store := &scriptedStore{responses: []scriptedResponse{
		{rows: []Row{textRow("old", old), textRow("undated", 0)}},
		{err: errors.New("stop")},
	}}
	s := NewSession(store, SessionConfig{
		Codec:       Codec{Packed: true, Clock: tickingClock(start)},
		Interval:    time.Millisecond,
		PruneLedger: true,
		Log:         testLogger(),
	})
	s.Start(context.Background())
	<-s.Done()

	be.True(t, !s.ledger.Seen("old"))
	be.True(t, s.ledger.Seen("undated"))
}

// gatedStore blocks its first query until release is closed, then serves rows
// one slice per call and fails afterwards.
type gatedStore struct {
	release chan struct{}
	mu      sync.Mutex
	rows    [][]Row
	calls   int
}

func (g *gatedStore) MessagesSince(ctx context.Context, _ int64) ([]Row, error) {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	if i < len(g.rows) {
		return g.rows[i], nil
	}
	return nil, errors.New("exhausted")
}
