package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/neuropath/rtcore/internal/proto"

	"golang.org/x/crypto/bcrypt"
)

const adminUser = "admin"

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.AdminPasswordHash == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != adminUser ||
			bcrypt.CompareHashAndPassword([]byte(s.deps.AdminPasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="rtcore admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAdminConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.deps.Connections.Snapshot()
	writeJSON(w, map[string]any{
		"online_users": s.deps.Connections.OnlineUsers(),
		"connections":  conns,
	})
}

func (s *Server) handleAdminCalls(w http.ResponseWriter, r *http.Request) {
	active := s.deps.Calls.Sessions()
	sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
	writeJSON(w, map[string]any{
		"active":  active,
		"history": s.deps.Calls.History(),
	})
}

func (s *Server) handleAdminPresence(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Presence.Snapshot()
	out := make([]proto.PresencePayload, 0, len(snap))
	for _, st := range snap {
		out = append(out, st.Payload())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	writeJSON(w, out)
}

// GET /api/admin/presence/stream (Server-Sent Events), changes only.
func (s *Server) handleAdminPresenceSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.deps.Presence.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(st.Payload())
			_, _ = w.Write([]byte("event: presence\n"))
			_, _ = w.Write([]byte("data: " + string(b) + "\n\n"))
			flusher.Flush()
		}
	}
}
