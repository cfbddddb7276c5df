package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
	"github.com/subhodeep2005s/realtime-chat/internal/messages"
	"github.com/subhodeep2005s/realtime-chat/internal/realtime"
	"github.com/subhodeep2005s/realtime-chat/internal/rooms"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// Deps are the components the HTTP layer drives.
type Deps struct {
	Keys       store.KeyStore
	Rooms      *rooms.Manager
	Auth       *auth.Authenticator
	Messages   *messages.Store
	Presence   *realtime.Presence
	Subscriber realtime.Subscriber
	Logger     zerolog.Logger

	// SecureCookies marks the token cookie Secure; off for plain-HTTP development.
	SecureCookies bool
	// AllowedOrigin is checked on websocket upgrades. "*" accepts any origin.
	AllowedOrigin string
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	Deps
	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		Deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail renders err by kind. Unexpected errors are logged; their text never reaches the client.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	h.Error(w, status, apperr.Message(err))
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", apperr.ErrValidation)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must be at most %s characters", apperr.ErrValidation, strings.ToLower(fe.Field()), fe.Param())
		}
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.AllowedOrigin == "" || h.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.AllowedOrigin
}
