package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloadable is the part of the config applied without a restart.
type Reloadable struct {
	Log         Log
	RingTimeout time.Duration
	Limits      Limits
}

func (c Config) Reloadable() Reloadable {
	return Reloadable{
		Log:         c.Log,
		RingTimeout: time.Duration(c.Calls.RingTimeoutSec) * time.Second,
		Limits:      c.Limits,
	}
}

// Watch reloads path whenever it changes and calls apply with the new
// reloadable settings. Invalid files are logged and skipped. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, apply func(Reloadable)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors often replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	const settle = 200 * time.Millisecond
	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(settle, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			cfg, err := Load(path)
			if err != nil {
				log.Warnf("reload %s: %v (keeping previous settings)", path, err)
				continue
			}
			log.Infof("reloaded %s", path)
			apply(cfg.Reloadable())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watcher error: %v", err)
		}
	}
}
