// Package presence derives online/offline state per user from registry
// changes and pushes presence:update events to interested users.
package presence

import (
	"sync"
	"time"

	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/registry"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("presence")

// MaxWatch bounds the number of users one watcher may follow.
const MaxWatch = 256

// Sender is the registry surface the tracker needs.
type Sender interface {
	Send(userID, event string, data any) bool
}

type Status struct {
	UserID       string    `json:"userId"`
	Online       bool      `json:"online"`
	LastSeen     time.Time `json:"lastSeen"`
	OfflineSince time.Time `json:"offlineSince,omitzero"`
}

func (s Status) Payload() proto.PresencePayload {
	p := proto.PresencePayload{UserID: s.UserID, Online: s.Online}
	if !s.LastSeen.IsZero() {
		p.LastSeen = s.LastSeen.UnixMilli()
	}
	if !s.OfflineSince.IsZero() {
		p.OfflineSince = s.OfflineSince.UnixMilli()
	}
	return p
}

type Tracker struct {
	sender Sender

	mu       sync.Mutex
	users    map[string]Status
	watchers map[string]map[string]struct{} // target -> watchers
	watching map[string]map[string]struct{} // watcher -> targets
	subs     map[chan Status]struct{}

	lmu       sync.RWMutex
	listeners []func(Status)
}

func New(sender Sender) *Tracker {
	return &Tracker{
		sender:   sender,
		users:    make(map[string]Status),
		watchers: make(map[string]map[string]struct{}),
		watching: make(map[string]map[string]struct{}),
		subs:     make(map[chan Status]struct{}),
	}
}

// OnChange registers a synchronous listener, run in change order.
func (t *Tracker) OnChange(fn func(Status)) {
	t.lmu.Lock()
	t.listeners = append(t.listeners, fn)
	t.lmu.Unlock()
}

// Handle applies a registry change. Wire it with registry.OnChange.
func (t *Tracker) Handle(c registry.Change) {
	t.mu.Lock()
	st := t.users[c.UserID]
	st.UserID = c.UserID
	st.Online = c.Online
	st.LastSeen = c.At
	if c.Online {
		st.OfflineSince = time.Time{}
	} else {
		st.OfflineSince = c.At
		t.unwatchLocked(c.UserID)
	}
	t.users[c.UserID] = st

	targets := make([]string, 0, len(t.watchers[c.UserID]))
	for w := range t.watchers[c.UserID] {
		targets = append(targets, w)
	}
	t.broadcastLocked(st)
	t.mu.Unlock()

	log.Infof("user %s online=%v", c.UserID, c.Online)

	payload := st.Payload()
	for _, w := range targets {
		t.sender.Send(w, proto.EventPresenceUpdate, payload)
	}

	t.lmu.RLock()
	defer t.lmu.RUnlock()
	for _, fn := range t.listeners {
		fn(st)
	}
}

// Touch refreshes LastSeen for an online user (heartbeat).
func (t *Tracker) Touch(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.users[userID]
	if !ok || !st.Online {
		return
	}
	st.LastSeen = time.Now()
	t.users[userID] = st
}

// Status returns the known state of userID. Unknown users are offline.
func (t *Tracker) Status(userID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.users[userID]; ok {
		return st
	}
	return Status{UserID: userID}
}

func (t *Tracker) IsOnline(userID string) bool {
	return t.Status(userID).Online
}

// Snapshot returns a copy of every known status.
func (t *Tracker) Snapshot() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]Status, len(t.users))
	for k, v := range t.users {
		cp[k] = v
	}
	return cp
}

// Watch subscribes watcher to presence updates of targets and returns their
// current status. The watch list is replaced, not merged, and is dropped when
// the watcher goes offline.
func (t *Tracker) Watch(watcher string, targets []string) []Status {
	if len(targets) > MaxWatch {
		targets = targets[:MaxWatch]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.unwatchLocked(watcher)

	set := make(map[string]struct{}, len(targets))
	out := make([]Status, 0, len(targets))
	for _, id := range targets {
		if id == "" || id == watcher {
			continue
		}
		if _, dup := set[id]; dup {
			continue
		}
		set[id] = struct{}{}
		ws, ok := t.watchers[id]
		if !ok {
			ws = make(map[string]struct{})
			t.watchers[id] = ws
		}
		ws[watcher] = struct{}{}

		st, ok := t.users[id]
		if !ok {
			st = Status{UserID: id}
		}
		out = append(out, st)
	}
	if len(set) > 0 {
		t.watching[watcher] = set
	}
	return out
}

func (t *Tracker) Unwatch(watcher string) {
	t.mu.Lock()
	t.unwatchLocked(watcher)
	t.mu.Unlock()
}

func (t *Tracker) unwatchLocked(watcher string) {
	for id := range t.watching[watcher] {
		ws := t.watchers[id]
		delete(ws, watcher)
		if len(ws) == 0 {
			delete(t.watchers, id)
		}
	}
	delete(t.watching, watcher)
}

// Prune forgets users that have been offline since before cutoff.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, st := range t.users {
		if !st.Online && st.OfflineSince.Before(cutoff) {
			delete(t.users, id)
			n++
		}
	}
	return n
}

// Subscribe returns a channel of every status change. Slow subscribers miss
// events.
func (t *Tracker) Subscribe() (ch chan Status, cancel func()) {
	ch = make(chan Status, 32)

	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	cancel = func() {
		t.mu.Lock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

func (t *Tracker) broadcastLocked(st Status) {
	for ch := range t.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
