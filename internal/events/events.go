// Package events publishes an audit trail of coordination events to an
// external sink. Events carry ids and states only, never chat content or
// signaling payloads.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/neuropath/rtcore/internal/util"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("events")

const (
	KindAppointmentRequested  = "appointment.requested"
	KindAppointmentTransition = "appointment.transition"
	KindChatMessage           = "chat.message"
	KindCallStarted           = "call.started"
	KindCallConnected         = "call.connected"
	KindCallEnded             = "call.ended"
)

type Event struct {
	Kind          string    `json:"kind"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	MessageID     string    `json:"messageId,omitempty"`
	SessionID     string    `json:"sessionId,omitempty"`
	ActorID       string    `json:"actorId,omitempty"`
	PeerID        string    `json:"peerId,omitempty"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

// Key groups events of one aggregate so brokers keep them in order.
func (e Event) Key() string {
	switch {
	case e.AppointmentID != "":
		return e.AppointmentID
	case e.SessionID != "":
		return e.SessionID
	}
	return e.Kind
}

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

// Sink delivers one event to a broker.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Publisher hands events to a sink on a background goroutine. Emit never
// blocks; when the queue is full the event is dropped and counted.
type Publisher struct {
	sink  Sink
	queue chan Event

	mu      sync.Mutex
	closed  bool
	dropped uint64

	wg sync.WaitGroup
}

func NewPublisher(sink Sink, buffer int) *Publisher {
	if sink == nil {
		sink = Nop{}
	}
	if buffer <= 0 {
		buffer = 1024
	}
	p := &Publisher{sink: sink, queue: make(chan Event, buffer)}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Emit queues e. Safe on a nil Publisher.
func (p *Publisher) Emit(e Event) {
	if p == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		p.dropped++
		if p.dropped%100 == 1 {
			log.Warnf("queue full, dropped %d events so far", p.dropped)
		}
	}
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), util.DefaultWriteTimeout)
		if err := p.sink.Publish(ctx, e); err != nil {
			log.Warnf("publish %s: %v", e.Kind, err)
		}
		cancel()
	}
}

// Dropped returns how many events were lost to a full queue.
func (p *Publisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close flushes queued events and closes the sink.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.sink.Close()
}
