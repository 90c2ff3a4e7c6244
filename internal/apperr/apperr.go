// Package apperr defines the error kinds shared by every domain operation.
// Callers branch on the kind, never on the message.
package apperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Internal Kind = iota
	InvalidInput
	InvalidCoordinate
	NotFound
	NotAuthorized
	NotAParticipant
	NotAMember
	EventFull
	AlreadyExists
	Conflict
	InvalidCredential
	ExpiredCredential
)

var kindNames = [...]string{
	Internal:          "internal",
	InvalidInput:      "invalid_input",
	InvalidCoordinate: "invalid_coordinate",
	NotFound:          "not_found",
	NotAuthorized:     "not_authorized",
	NotAParticipant:   "not_a_participant",
	NotAMember:        "not_a_member",
	EventFull:         "event_full",
	AlreadyExists:     "already_exists",
	Conflict:          "conflict",
	InvalidCredential: "invalid_credential",
	ExpiredCredential: "expired_credential",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Error is a classified failure. Message is safe to show to API clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInvalidInput      = &Error{Kind: InvalidInput}
	ErrInvalidCoordinate = &Error{Kind: InvalidCoordinate}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrNotAuthorized     = &Error{Kind: NotAuthorized}
	ErrNotAParticipant   = &Error{Kind: NotAParticipant}
	ErrNotAMember        = &Error{Kind: NotAMember}
	ErrEventFull         = &Error{Kind: EventFull}
	ErrAlreadyExists     = &Error{Kind: AlreadyExists}
	ErrConflict          = &Error{Kind: Conflict}
	ErrInvalidCredential = &Error{Kind: InvalidCredential}
	ErrExpiredCredential = &Error{Kind: ExpiredCredential}
)

func E(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
