// Package server exposes the HTTP surface: the WebSocket endpoint, the REST
// API for booking and history, admin views and the embedded documentation.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/neuropath/rtcore/internal/auth"
	"github.com/neuropath/rtcore/internal/call"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/presence"
	"github.com/neuropath/rtcore/internal/registry"
	"github.com/neuropath/rtcore/internal/sdk"
	"github.com/neuropath/rtcore/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pion/webrtc/v4"
)

var log = logging.Logger("server")

type Appointments interface {
	Request(ctx context.Context, patientID, neurologistID string, slot model.Slot) (*model.Appointment, error)
	Respond(ctx context.Context, appointmentID, responderID string, accept bool) (*model.Appointment, error)
	Cancel(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error)
	Complete(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error)
	Get(ctx context.Context, appointmentID, userID string) (*model.Appointment, error)
	List(ctx context.Context, userID string) ([]*model.Appointment, error)
}

type Chat interface {
	Send(ctx context.Context, appointmentID, senderID, content string) (*model.ChatMessage, error)
	History(ctx context.Context, appointmentID, userID string, limit int) ([]*model.ChatMessage, error)
}

type Presence interface {
	Status(userID string) presence.Status
	Snapshot() map[string]presence.Status
	Subscribe() (ch chan presence.Status, cancel func())
}

type Connections interface {
	Snapshot() []registry.Info
	OnlineUsers() int
}

type Calls interface {
	Sessions() []call.Info
	History() []call.Info
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Socket is the WebSocket endpoint. Shutdown closes hijacked connections,
// which http.Server.Shutdown does not track.
type Socket interface {
	http.Handler
	Shutdown()
}

type Deps struct {
	Socket       Socket
	Verifier     auth.Verifier
	Appointments Appointments
	Chat         Chat
	Presence     Presence
	Connections  Connections
	Calls        Calls
	Store        Pinger
	Logs         *LogBuffer

	ICEServers []webrtc.ICEServer

	// bcrypt hash; empty disables /api/admin.
	AdminPasswordHash string
	HistoryLimit      int
}

type Server struct {
	deps Deps
	docs *DocSite
}

func New(deps Deps) *Server {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 200
	}
	return &Server{deps: deps, docs: newDocSite()}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Socket != nil {
		r.Handle("/ws", s.deps.Socket)
	}
	r.Handle("/sdk/*", http.StripPrefix("/sdk/", sdk.Handler()))
	r.Get("/docs", s.handleDocsIndex)
	r.Get("/docs/{slug}", s.handleDocPage)
	r.Get("/api/openapi.json", handleOpenAPI)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Logger)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/ice-servers", s.handleICEServers)
			r.Get("/presence/{userID}", s.handlePresence)
			registerAppointmentRoutes(r, s)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/connections", s.handleAdminConnections)
			r.Get("/calls", s.handleAdminCalls)
			r.Get("/presence", s.handleAdminPresence)
			r.Get("/presence/stream", s.handleAdminPresenceSSE)
			if s.deps.Logs != nil {
				r.Get("/logs", s.deps.Logs.ServeLogsJSON)
				r.Get("/logs/stream", s.deps.Logs.ServeLogsSSE)
			}
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then closes client sockets
// and drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.deps.Socket != nil {
		s.deps.Socket.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), util.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), util.ShortTimeout)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": err.Error()})
			return
		}
	}
	online := 0
	if s.deps.Connections != nil {
		online = s.deps.Connections.OnlineUsers()
	}
	writeJSON(w, map[string]any{"status": "ok", "online_users": online})
}

func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	servers := s.deps.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	writeJSON(w, map[string]any{"iceServers": servers})
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Presence.Status(chi.URLParam(r, "userID")).Payload())
}
