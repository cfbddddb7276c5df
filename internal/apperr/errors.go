// Package apperr defines the stable error kinds returned by the chat core.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPublishFailed    = errors.New("publish failed")
)

// Status maps an error kind to the HTTP status the boundary layer renders.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomFull):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrPublishFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a client-safe description of the error kind.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, ErrRoomFull):
		return "room is full"
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrStoreUnavailable):
		return "store unavailable"
	case errors.Is(err, ErrPublishFailed):
		return "realtime delivery failed"
	default:
		return "internal error"
	}
}
