package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Common timeout durations
const (
	DefaultWriteTimeout = 10 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ShortTimeout        = 2 * time.Second
)

// ResolvePath joins base and rel, but if rel is an absolute path it is returned
// directly (cleaned). filepath.Join("a", "/b") returns "a/b", which is never
// what a config value like "/var/lib/rtcore/core.db" means.
func ResolvePath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}

// WriteJSONFile writes a JSON object to a file, creating parent directories if needed.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// NowMillis returns the current Unix time in milliseconds.
func NowMillis() int64 { return time.Now().UnixMilli() }
