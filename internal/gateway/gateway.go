// Package gateway terminates client WebSocket connections: it authenticates,
// registers each connection, pumps frames in both directions with a ping/pong
// heartbeat, and dispatches client events to the coordination components.
package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neuropath/rtcore/internal/auth"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/presence"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/registry"
	"github.com/neuropath/rtcore/internal/signaling"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pion/webrtc/v4"
)

var log = logging.Logger("gateway")

type Appointments interface {
	Respond(ctx context.Context, appointmentID, responderID string, accept bool) (*model.Appointment, error)
	Cancel(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error)
	Complete(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error)
}

type Chat interface {
	Send(ctx context.Context, appointmentID, senderID, content string) (*model.ChatMessage, error)
}

type Signals interface {
	Relay(kind signaling.Kind, from string, p proto.SignalPayload) error
}

type Presence interface {
	Watch(watcher string, targets []string) []presence.Status
	Unwatch(watcher string)
	Touch(userID string)
}

type Options struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxFrameBytes  int64
	OutboundBuffer int
	AllowedOrigins []string
	ICEServers     []webrtc.ICEServer

	EventsPerMinutePerUser int
	EventsPerMinuteGlobal  int

	// RequestTimeout bounds each dispatched event.
	RequestTimeout time.Duration
}

func (o *Options) defaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = o.PingInterval * 9 / 4
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 64 << 10
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = registry.DefaultBuffer
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
}

// Deps are the components a connection talks to.
type Deps struct {
	Verifier     auth.Verifier
	Registry     *registry.Registry
	Presence     Presence
	Appointments Appointments
	Chat         Chat
	Signals      Signals
}

type Gateway struct {
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
	limiter  *rateLimiter
}

func New(deps Deps, opts Options) *Gateway {
	opts.defaults()
	g := &Gateway{
		deps:    deps,
		opts:    opts,
		limiter: newRateLimiter(opts.EventsPerMinutePerUser, opts.EventsPerMinuteGlobal),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// SetRateLimits applies new limits to subsequent events.
func (g *Gateway) SetRateLimits(perUser, global int) {
	g.limiter.SetLimits(perUser, global)
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients do not send an Origin.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range g.opts.AllowedOrigins {
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates and upgrades one client connection. It returns
// when the connection is gone.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := auth.FromRequest(g.deps.Verifier, r)
	if err != nil {
		log.Debugf("reject %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debugf("upgrade %s: %v", r.RemoteAddr, err)
		return
	}

	c := registry.NewConn(id.UserID, id.Role, g.opts.OutboundBuffer)
	sess := &session{g: g, ws: ws, conn: c, identity: id}
	sess.run()
}

// Shutdown closes every client connection. Each connection unregisters
// itself as its pumps exit.
func (g *Gateway) Shutdown() {
	for _, info := range g.deps.Registry.Snapshot() {
		g.deps.Registry.Close(info.UserID, info.ID)
	}
}
