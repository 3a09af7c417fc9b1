// Package registry maps user identities to their live connections and fans
// events out to every connection of a user.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/neuropath/rtcore/internal/proto"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("registry")

// Change is emitted when a user gains their first connection or loses their
// last one.
type Change struct {
	UserID      string
	Online      bool
	Connections int
	At          time.Time
}

// Registry is the single authority for who is connected.
type Registry struct {
	mu         sync.RWMutex
	users      map[string]map[string]*Conn
	maxPerUser int

	// evMu orders changes: it is always taken before mu and held while
	// listeners run, so they see changes in map order and may call Send.
	// Listeners must not call Register or Unregister.
	evMu      sync.Mutex
	listeners []func(Change)
}

// New creates a registry. maxPerUser <= 0 means unlimited tabs per user.
func New(maxPerUser int) *Registry {
	return &Registry{
		users:      make(map[string]map[string]*Conn),
		maxPerUser: maxPerUser,
	}
}

// OnChange registers a presence change listener. Call before serving.
func (r *Registry) OnChange(fn func(Change)) {
	r.evMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.evMu.Unlock()
}

// Register adds c under its user. Registering the same connection twice is a
// no-op. When the per-user cap is reached the oldest connection is closed.
func (r *Registry) Register(c *Conn) {
	r.evMu.Lock()
	defer r.evMu.Unlock()

	r.mu.Lock()
	conns, ok := r.users[c.UserID]
	if !ok {
		conns = make(map[string]*Conn)
		r.users[c.UserID] = conns
	}
	if _, dup := conns[c.ID]; dup {
		r.mu.Unlock()
		return
	}

	var evicted *Conn
	if r.maxPerUser > 0 && len(conns) >= r.maxPerUser {
		for _, old := range conns {
			if evicted == nil || old.EstablishedAt.Before(evicted.EstablishedAt) {
				evicted = old
			}
		}
		delete(conns, evicted.ID)
	}

	conns[c.ID] = c
	n := len(conns)
	first := n == 1 && evicted == nil
	r.mu.Unlock()

	if evicted != nil {
		log.Infof("user %s: evicting connection %s (limit %d)", c.UserID, evicted.ID, r.maxPerUser)
		evicted.Close()
	}
	log.Debugf("user %s: connection %s registered (%d open)", c.UserID, c.ID, n)
	if first {
		r.emitLocked(Change{UserID: c.UserID, Online: true, Connections: n, At: time.Now()})
	}
}

// Unregister removes c. Removing an unknown connection is a no-op. When the
// user's last connection goes, an offline change is emitted.
func (r *Registry) Unregister(c *Conn) {
	r.evMu.Lock()
	defer r.evMu.Unlock()

	r.mu.Lock()
	conns := r.users[c.UserID]
	if _, ok := conns[c.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(conns, c.ID)
	n := len(conns)
	if n == 0 {
		delete(r.users, c.UserID)
	}
	r.mu.Unlock()

	c.Close()
	log.Debugf("user %s: connection %s unregistered (%d open)", c.UserID, c.ID, n)
	if n == 0 {
		r.emitLocked(Change{UserID: c.UserID, Online: false, At: time.Now()})
	}
}

func (r *Registry) emitLocked(ch Change) {
	for _, fn := range r.listeners {
		fn(ch)
	}
}

// Send encodes the event once and enqueues it on every connection of
// userID. Returns false when nothing could be queued: the user has no
// connections or every queue is full. Undelivered frames are not kept.
func (r *Registry) Send(userID, event string, data any) bool {
	frame, err := proto.Encode(event, "", data)
	if err != nil {
		log.Errorf("send %s to %s: %v", event, userID, err)
		return false
	}
	return r.SendFrame(userID, frame)
}

// SendFrame enqueues an already encoded frame on every connection of userID.
func (r *Registry) SendFrame(userID string, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := false
	for _, c := range r.users[userID] {
		if c.Enqueue(frame) {
			delivered = true
		} else {
			log.Warnf("user %s: dropped frame for slow connection %s", userID, c.ID)
		}
	}
	return delivered
}

// Close asks one connection to shut down. The transport unregisters it.
func (r *Registry) Close(userID, connID string) bool {
	r.mu.RLock()
	c, ok := r.users[userID][connID]
	r.mu.RUnlock()
	if ok {
		c.Close()
	}
	return ok
}

// IsOnline reports whether userID has at least one connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Connections returns the connections of one user, oldest first.
func (r *Registry) Connections(userID string) []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		out = append(out, c.info())
	}
	r.mu.RUnlock()
	sortInfos(out)
	return out
}

// Snapshot returns every live connection, oldest first.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	var out []Info
	for _, conns := range r.users {
		for _, c := range conns {
			out = append(out, c.info())
		}
	}
	r.mu.RUnlock()
	sortInfos(out)
	return out
}

// OnlineUsers returns the number of users with at least one connection.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func sortInfos(in []Info) {
	sort.Slice(in, func(i, j int) bool {
		if in[i].EstablishedAt.Equal(in[j].EstablishedAt) {
			return in[i].ID < in[j].ID
		}
		return in[i].EstablishedAt.Before(in[j].EstablishedAt)
	})
}
