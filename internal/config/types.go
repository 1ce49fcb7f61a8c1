package config

import (
	"encoding/json"
	"fmt"
)

// Config is the on-disk configuration for the imessage CLI.
//
// All durations are Go duration strings (e.g. "500ms", "5s").
//
// Defaults (when fields are omitted/zero):
//   - db_path: ~/Library/Messages/chat.db
//   - home: the current user's home directory
//   - poll_interval: "5s"
//   - cursor_margin: "5s"
//   - packed_timestamps: "auto" (follow the macOS version)
//   - log.level: "info", log.console: true
type Config struct {
	DBPath           string     `json:"db_path,omitempty"`
	Home             string     `json:"home,omitempty"`
	PollInterval     string     `json:"poll_interval,omitempty"`
	CursorMargin     string     `json:"cursor_margin,omitempty"`
	PackedTimestamps PackedMode `json:"packed_timestamps,omitempty"`
	PruneLedger      bool       `json:"prune_ledger,omitempty"`

	Log   LogConfig   `json:"log"`
	Echo  EchoConfig  `json:"echo"`
	Relay RelayConfig `json:"relay"`
}

type LogConfig struct {
	Level   string `json:"level,omitempty"`
	Console bool   `json:"console"`
	File    string `json:"file,omitempty"`
}

// EchoConfig controls the auto-reply responder.
type EchoConfig struct {
	Enabled    bool `json:"enabled"`
	RatePerSec int  `json:"rate_per_sec,omitempty"`
}

// RelayConfig controls forwarding of inbound messages by email.
//
// Addr is host:port. Port 465 uses implicit TLS; anything else uses STARTTLS
// unless Insecure is set (plain TCP, for local test servers only).
type RelayConfig struct {
	Enabled       bool     `json:"enabled"`
	Addr          string   `json:"addr,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	From          string   `json:"from,omitempty"`
	To            []string `json:"to,omitempty"`
	RatePerSec    int      `json:"rate_per_sec,omitempty"`
	IncludeFromMe bool     `json:"include_from_me,omitempty"`
	Insecure      bool     `json:"insecure,omitempty"`
}

// PackedMode is packed_timestamps: "auto", "true" or "false". Unquoted YAML
// booleans are accepted too.
type PackedMode string

const (
	PackedAuto  PackedMode = "auto"
	PackedTrue  PackedMode = "true"
	PackedFalse PackedMode = "false"
)

func (m *PackedMode) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		*m = PackedFalse
		if flag {
			*m = PackedTrue
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("packed_timestamps: want auto, true or false, got %s", b)
	}
	*m = PackedMode(s)
	return nil
}
