// Package model holds the domain types shared by the coordination core.
package model

import "time"

// Role is the role claim of an authenticated user.
type Role string

const (
	RolePatient     Role = "patient"
	RoleNeurologist Role = "neurologist"
	RoleAdmin       Role = "admin"
	RoleSupplier    Role = "supplier"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleNeurologist, RoleAdmin, RoleSupplier:
		return true
	}
	return false
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further transition is possible.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Slot is the requested date/time of an appointment. Both parts are kept as
// the client sent them ("2025-03-14", "14:30").
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Type string `json:"type,omitempty"`
}

// Appointment is a booking between one patient and one neurologist.
type Appointment struct {
	ID            string            `json:"id"`
	PatientID     string            `json:"patientId"`
	NeurologistID string            `json:"neurologistId"`
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	Type          string            `json:"type,omitempty"`
	Status        AppointmentStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// IsParticipant reports whether userID is the patient or the neurologist.
func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (userID == a.PatientID || userID == a.NeurologistID)
}

// Counterpart returns the other participant, or "" if userID is not one.
func (a *Appointment) Counterpart(userID string) string {
	switch userID {
	case a.PatientID:
		return a.NeurologistID
	case a.NeurologistID:
		return a.PatientID
	}
	return ""
}

// ChatMessage is one immutable message inside an appointment conversation.
type ChatMessage struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId"`
	SenderID      string    `json:"senderId"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
}
