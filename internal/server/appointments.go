package server

import (
	"fmt"
	"net/http"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/go-chi/chi/v5"
)

type bookRequest struct {
	NeurologistID string `json:"neurologistId" example:"doc-42"`
	Date          string `json:"date" example:"2025-03-14"`
	Time          string `json:"time" example:"14:30"`
	Type          string `json:"type,omitempty" example:"video"`
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

type messageRequest struct {
	Content string `json:"content" example:"See you at 14:30"`
}

func registerAppointmentRoutes(r chi.Router, s *Server) {
	r.Post("/appointments", s.handleBook)
	r.Get("/appointments", s.handleListAppointments)
	r.Route("/appointments/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetAppointment)
		r.Post("/respond", s.handleRespond)
		r.Post("/cancel", s.handleCancel)
		r.Post("/complete", s.handleComplete)
		r.Get("/messages", s.handleHistory)
		r.Post("/messages", s.handleSendMessage)
	})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.Role != model.RolePatient {
		writeError(w, fmt.Errorf("only patients can book: %w", model.ErrNotParticipant))
		return
	}
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.deps.Appointments.Request(r.Context(), id.UserID, req.NeurologistID,
		model.Slot{Date: req.Date, Time: req.Time, Type: req.Type})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, a)
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Appointments.List(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*model.Appointment{}
	}
	writeJSON(w, list)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Appointments.Get(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.deps.Appointments.Respond(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID, req.Accept)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Appointments.Cancel(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Appointments.Complete(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", s.deps.HistoryLimit)
	msgs, err := s.deps.Chat.History(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*model.ChatMessage{}
	}
	writeJSON(w, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.deps.Chat.Send(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, msg)
}
