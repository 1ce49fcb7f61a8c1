package messages

// Ledger remembers which message GUIDs a session has already emitted.
//
// It is owned by a single polling goroutine and is not safe for concurrent use.
type Ledger struct {
	seen map[string]int64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: map[string]int64{}}
}

// Seen reports whether guid has been marked.
func (l *Ledger) Seen(guid string) bool {
	_, ok := l.seen[guid]
	return ok
}

// MarkSeen records guid together with the encoded sent time of its row.
func (l *Ledger) MarkSeen(guid string, date int64) {
	l.seen[guid] = date
}

// Len returns the number of remembered GUIDs.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// Prune forgets entries whose encoded sent time is below cursor. Such rows can
// no longer match a query bounded by cursor. Entries without a sent time are
// kept. It returns the number of entries removed.
func (l *Ledger) Prune(cursor int64) int {
	removed := 0
	for guid, date := range l.seen {
		if date != 0 && date < cursor {
			delete(l.seen, guid)
			removed++
		}
	}
	return removed
}
