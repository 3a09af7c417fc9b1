package config

import (
	"errors"
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("config")

// Subsystems lists the loggers of this module.
var Subsystems = []string{
	"registry", "presence", "appointment", "chat", "signaling", "call",
	"gateway", "server", "storage", "events", "config",
}

// parseLevel normalizes a level name and checks go-log knows it.
func parseLevel(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = "info"
	}
	if _, err := logging.LevelFromString(s); err != nil {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return s, nil
}

// ApplyLogLevels sets the module loggers to the configured level, then
// applies per-subsystem overrides. Unknown subsystems (for example from
// libraries) are passed through to go-log.
func ApplyLogLevels(l Log) error {
	lvl, err := parseLevel(l.Level)
	if err != nil {
		return err
	}
	for _, name := range Subsystems {
		if err := setLevel(name, lvl); err != nil {
			return err
		}
	}
	for name, s := range l.Subsystems {
		if err := setLevel(name, s); err != nil {
			return err
		}
	}
	return nil
}

// setLevel ignores loggers not created yet; their package is not linked in.
func setLevel(name, lvl string) error {
	err := logging.SetLogLevel(name, lvl)
	if err != nil && !errors.Is(err, logging.ErrNoSuchLogger) {
		return fmt.Errorf("set %s level: %w", name, err)
	}
	return nil
}
