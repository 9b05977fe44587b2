// Package config loads the manager daemon's JSON configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"xdao.co/mpid/internal/logging"
	"xdao.co/mpid/keys"
	"xdao.co/mpid/mpid"
)

// Config describes one manager node.
//
// Example:
//
//	{
//	  "listen": "127.0.0.1:7878",
//	  "outbox_capacity": 134217728,
//	  "inbox_capacity": 134217728,
//	  "accounts": ["ed25519:base64..."],
//	  "log": {"level": "debug", "format": "json"}
//	}
//
// Accounts are pre-registered at startup; clients may register more at runtime.
type Config struct {
	Listen         string         `json:"listen"`
	OutboxCapacity int64          `json:"outbox_capacity,omitempty"`
	InboxCapacity  int64          `json:"inbox_capacity,omitempty"`
	MaxMsgBytes    int            `json:"max_msg_bytes,omitempty"`
	Accounts       []string       `json:"accounts,omitempty"`
	Log            logging.Config `json:"log"`
}

const DefaultListen = "127.0.0.1:7878"

func Default() Config {
	return Config{
		Listen:         DefaultListen,
		OutboxCapacity: mpid.MaxOutboxSize,
		InboxCapacity:  mpid.MaxInboxSize,
		Log:            logging.Config{Level: "info", Format: "console"},
	}
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is required")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("config: invalid listen address %q: %w", c.Listen, err)
	}
	if c.OutboxCapacity < 0 || c.OutboxCapacity > mpid.MaxOutboxSize {
		return fmt.Errorf("config: outbox_capacity must be within 0..%d", mpid.MaxOutboxSize)
	}
	if c.InboxCapacity < 0 || c.InboxCapacity > mpid.MaxInboxSize {
		return fmt.Errorf("config: inbox_capacity must be within 0..%d", mpid.MaxInboxSize)
	}
	if c.MaxMsgBytes < 0 {
		return errors.New("config: max_msg_bytes must not be negative")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, a := range c.Accounts {
		if _, err := keys.ParsePublicKey(a); err != nil {
			return fmt.Errorf("config: accounts[%d]: %w", i, err)
		}
		if _, ok := seen[a]; ok {
			return fmt.Errorf("config: duplicate account %q", a)
		}
		seen[a] = struct{}{}
	}
	return c.Log.Validate()
}

// PublicKeys parses Accounts. Call Validate first.
func (c Config) PublicKeys() ([]keys.PublicKey, error) {
	out := make([]keys.PublicKey, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		pub, err := keys.ParsePublicKey(a)
		if err != nil {
			return nil, err
		}
		out = append(out, pub)
	}
	return out, nil
}
