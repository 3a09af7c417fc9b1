package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/google/uuid"
)

const DefaultBuffer = 64

// Conn is one live client connection as seen by the registry. The transport
// (gateway) drains Outbound and watches Done; everything else only enqueues.
type Conn struct {
	ID            string
	UserID        string
	Role          model.Role
	EstablishedAt time.Time

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewConn creates a connection handle with a bounded outbound queue.
func NewConn(userID string, role model.Role, buffer int) *Conn {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Conn{
		ID:            uuid.NewString(),
		UserID:        userID,
		Role:          role,
		EstablishedAt: time.Now(),
		out:           make(chan []byte, buffer),
		done:          make(chan struct{}),
	}
}

// Enqueue queues a frame without blocking. Returns false if the queue is
// full or the connection is closed; the frame is dropped in both cases.
func (c *Conn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Outbound is drained by the connection writer.
func (c *Conn) Outbound() <-chan []byte { return c.out }

// Done is closed when the connection should shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close signals the writer to stop. Idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Dropped returns the number of frames lost to a full queue.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// Info is a read-only view of a connection.
type Info struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Role          model.Role `json:"role"`
	EstablishedAt time.Time  `json:"establishedAt"`
	Queued        int        `json:"queued"`
	Dropped       uint64     `json:"dropped"`
}

func (c *Conn) info() Info {
	return Info{
		ID:            c.ID,
		UserID:        c.UserID,
		Role:          c.Role,
		EstablishedAt: c.EstablishedAt,
		Queued:        len(c.out),
		Dropped:       c.Dropped(),
	}
}
