package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/neuropath/rtcore/internal/util"
)

type LogEntry struct {
	TS  time.Time `json:"ts"`
	Msg string    `json:"msg"`
}

// LogBuffer keeps the most recent log lines for the admin endpoints. It is
// an io.Writer fed from the logging pipe.
type LogBuffer struct {
	mu      sync.Mutex
	entries *util.RingBuffer[LogEntry]
	subs    map[chan LogEntry]struct{}
	partial bytes.Buffer
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 500
	}
	return &LogBuffer{
		entries: util.NewRingBuffer[LogEntry](max),
		subs:    make(map[chan LogEntry]struct{}),
	}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i == -1 {
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		b.partial.Next(i + 1)
		if strings.TrimSpace(line) == "" {
			continue
		}

		e := LogEntry{TS: time.Now(), Msg: line}
		b.entries.Push(e)
		for ch := range b.subs {
			select {
			case ch <- e:
			default:
				// slow subscriber
			}
		}
	}
	return len(p), nil
}

// Tail returns up to n of the newest entries, oldest first. n <= 0 returns
// everything kept.
func (b *LogBuffer) Tail(n int) []LogEntry {
	if n <= 0 {
		return b.entries.Snapshot()
	}
	return b.entries.Tail(n)
}

func (b *LogBuffer) Subscribe() (ch chan LogEntry, cancel func()) {
	ch = make(chan LogEntry, 64)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel = func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// GET /api/admin/logs?n=
func (b *LogBuffer) ServeLogsJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, b.Tail(queryInt(r, "n", 0)))
}

// GET /api/admin/logs/stream (Server-Sent Events), tail only.
func (b *LogBuffer) ServeLogsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := b.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(e)
			_, _ = w.Write([]byte("event: message\n"))
			_, _ = w.Write([]byte("data: " + string(data) + "\n\n"))
			flusher.Flush()
		}
	}
}
