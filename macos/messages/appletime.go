package messages

import "time"

const (
	// appleReferenceUnix is the Unix time of the Messages epoch, 2001-01-01T00:00:00Z.
	appleReferenceUnix = int64(978307200)
	// packFactor converts between whole seconds and the packed (nanosecond) form
	// written by macOS 10.13 and later.
	packFactor = int64(1e9)
)

// packedSince is the first macOS release that writes packed timestamps.
var packedSince = Version{Major: 10, Minor: 13}

// DecodeTime converts a chat.db timestamp into a UTC time.
//
// Zero means "not set" and reports false. Rows in a single database mix legacy
// seconds and packed nanoseconds, so the encoding is guessed per value: when
// dividing by 10^9 leaves a non-zero quotient the value is treated as packed.
// Legacy values at or beyond 10^9 seconds (late 2032) are misread as packed.
func DecodeTime(raw int64) (time.Time, bool) {
	if raw == 0 {
		return time.Time{}, false
	}
	seconds := raw
	if unpacked := raw / packFactor; unpacked != 0 {
		seconds = unpacked
	}
	return time.Unix(seconds+appleReferenceUnix, 0).UTC(), true
}

// EncodeTime converts t into a chat.db timestamp at whole-second precision.
func EncodeTime(t time.Time, packed bool) int64 {
	seconds := t.Unix() - appleReferenceUnix
	if packed {
		return seconds * packFactor
	}
	return seconds
}

// Codec encodes cursor values for one database layout.
type Codec struct {
	Packed bool
	Clock  func() time.Time
}

// NewCodec returns a codec for databases written by the given macOS version.
func NewCodec(v Version) Codec {
	return Codec{Packed: v.AtLeast(packedSince), Clock: time.Now}
}

// Now returns the encoded value of the current time minus margin.
func (c Codec) Now(margin time.Duration) int64 {
	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}
	return EncodeTime(clock().Add(-margin), c.Packed)
}

func decodeTimePtr(raw int64) *time.Time {
	t, ok := DecodeTime(raw)
	if !ok {
		return nil
	}
	return &t
}
