package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/neuropath/rtcore/internal/auth"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
)

const maxBodyBytes = 64 << 10

type ctxKey struct{}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(ctxKey{}).(auth.Identity)
	return id
}

// requireUser verifies the bearer token and stores the identity on the
// request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.FromRequest(s.deps.Verifier, r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="rtcore"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrPeerUnreachable):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrAlreadyInCall),
		errors.Is(err, model.ErrStaleSignal):
		return http.StatusConflict
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrPersistence):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	writeJSONStatus(w, status, proto.ErrorFrom(err))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %v", model.ErrBadRequest, err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
