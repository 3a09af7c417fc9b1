package model

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotParticipant    = errors.New("not a participant")
	ErrAlreadyInCall     = errors.New("already in call")
	ErrPeerUnreachable   = errors.New("peer unreachable")
	ErrStaleSignal       = errors.New("stale signal")
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrRateLimited       = errors.New("rate limited")

	// ErrPersistence wraps store failures. The caller may retry the request;
	// nothing was broadcast.
	ErrPersistence = errors.New("persistence failed")
)

// Wire error codes.
const (
	CodeInvalidTransition = "invalid-transition"
	CodeNotParticipant    = "not-participant"
	CodeAlreadyInCall     = "already-in-call"
	CodePeerUnreachable   = "peer-unreachable"
	CodeStaleSignal       = "stale-signal"
	CodeNotFound          = "not-found"
	CodeBadRequest        = "bad-request"
	CodeRateLimited       = "rate-limited"
	CodePersistence       = "persistence-failed"
	CodeInternal          = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidTransition, CodeInvalidTransition},
	{ErrNotParticipant, CodeNotParticipant},
	{ErrAlreadyInCall, CodeAlreadyInCall},
	{ErrPeerUnreachable, CodePeerUnreachable},
	{ErrStaleSignal, CodeStaleSignal},
	{ErrNotFound, CodeNotFound},
	{ErrBadRequest, CodeBadRequest},
	{ErrRateLimited, CodeRateLimited},
	{ErrPersistence, CodePersistence},
}

// Code maps err to its wire error code.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Retryable reports whether the client may resend the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrRateLimited)
}
