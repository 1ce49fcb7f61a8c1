package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultCursorMargin = 5 * time.Second
	defaultRelayAddr    = "smtp.gmail.com:465"
	dbRelativePath      = "Library/Messages/chat.db"
)

// Environment overrides applied by [Config.ApplyEnv].
const (
	EnvDBPath         = "IMESSAGE_DB_PATH"
	EnvPollInterval   = "IMESSAGE_POLL_INTERVAL"
	EnvLogLevel       = "IMESSAGE_LOG_LEVEL"
	EnvSMTPPassword   = "IMESSAGE_SMTP_PASSWORD"
	EnvSuppressWarned = "SUPPRESS_OSA_IMESSAGE_WARNINGS"
)

// Default returns a config with every default filled in except paths that
// depend on the home directory.
func Default() *Config {
	return &Config{
		PollInterval:     defaultPollInterval.String(),
		CursorMargin:     defaultCursorMargin.String(),
		PackedTimestamps: PackedAuto,
		Log:              LogConfig{Level: "info", Console: true},
		Echo:             EchoConfig{RatePerSec: 1},
		Relay:            RelayConfig{Addr: defaultRelayAddr, RatePerSec: 1},
	}
}

// Load reads path (YAML or JSON by extension) over the defaults. An empty
// path returns the defaults. Environment overrides are not applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	format := "json"
	if isYAML(path) {
		format = "yaml"
		if b, err = yamlToJSON(b); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %s (%s): %w", path, format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("config: %s: trailing data", path)
		}
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(getenv(EnvPollInterval)); v != "" {
		c.PollInterval = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvSMTPPassword); v != "" {
		c.Relay.Password = v
	}
	if getenv(EnvSuppressWarned) != "" {
		c.Log.Level = "error"
	}
}

// Resolve fills home-relative defaults and expands "~" in paths.
func (c *Config) Resolve() error {
	if strings.TrimSpace(c.Home) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: unable to resolve home directory: %w", err)
		}
		c.Home = home
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = filepath.Join(c.Home, dbRelativePath)
	}
	c.DBPath = expandHome(c.DBPath, c.Home)
	c.Log.File = expandHome(c.Log.File, c.Home)
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := c.Margin(); err != nil {
		return err
	}
	if _, _, err := c.Packed(); err != nil {
		return err
	}
	if c.Relay.Enabled {
		if strings.TrimSpace(c.Relay.Addr) == "" {
			return errors.New("relay.addr is required when relay is enabled")
		}
		if strings.TrimSpace(c.Relay.From) == "" {
			return errors.New("relay.from is required when relay is enabled")
		}
		if len(c.Relay.To) == 0 {
			return errors.New("relay.to needs at least one recipient when relay is enabled")
		}
	}
	return nil
}

// Interval returns poll_interval, defaulting to 5s.
func (c *Config) Interval() (time.Duration, error) {
	return durationOrDefault("poll_interval", c.PollInterval, defaultPollInterval)
}

// Margin returns cursor_margin, defaulting to 5s.
func (c *Config) Margin() (time.Duration, error) {
	return durationOrDefault("cursor_margin", c.CursorMargin, defaultCursorMargin)
}

// Packed reports the packed_timestamps setting. auto is true when the value
// should follow the detected macOS version.
func (c *Config) Packed() (packed bool, auto bool, err error) {
	switch PackedMode(strings.ToLower(strings.TrimSpace(string(c.PackedTimestamps)))) {
	case "", PackedAuto:
		return false, true, nil
	case PackedTrue:
		return true, false, nil
	case PackedFalse:
		return false, false, nil
	default:
		return false, false, fmt.Errorf("packed_timestamps: must be auto, true or false, got %q", c.PackedTimestamps)
	}
}

// durationOrDefault parses a positive duration string; blank or zero yields def.
func durationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	switch {
	case d < 0:
		return 0, fmt.Errorf("%s: duration must not be negative, got %s", field, raw)
	case d == 0:
		return def, nil
	}
	return d, nil
}

func expandHome(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
