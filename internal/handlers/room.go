package handlers

import (
	"errors"
	"net/http"

	"github.com/subhodeep2005s/realtime-chat/internal/api/middleware"
	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// CreateRoomResponse represents the room creation response.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// JoinRoomResponse carries the caller's room token. It is shown exactly once.
type JoinRoomResponse struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

// TTLResponse represents the remaining room lifetime in seconds.
type TTLResponse struct {
	TTL int64 `json:"ttl"`
}

// CreateRoom handles room creation. Creating a room grants no access to it; callers join next.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.Rooms.CreateRoom(r.Context())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusCreated, CreateRoomResponse{RoomID: roomID})
}

// JoinRoom admits the caller to ?roomId= and sets the token cookie.
// A caller already holding a valid token for the room keeps it.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		h.Error(w, http.StatusBadRequest, "roomId is required")
		return
	}

	sess, err := h.Auth.Issue(r.Context(), roomID, middleware.TokenFromRequest(r))
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	ttl, err := h.Rooms.RemainingLifetime(r.Context(), sess)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.setTokenCookie(w, sess.Token, int(ttl))
	h.JSON(w, http.StatusOK, JoinRoomResponse{RoomID: sess.RoomID, Token: sess.Token})
}

// RoomTTL returns the room's remaining lifetime.
func (h *Handler) RoomTTL(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ttl, err := h.Rooms.RemainingLifetime(r.Context(), sess)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, TTLResponse{TTL: ttl})
}

// GetRoom returns a snapshot of the caller's room.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	room, err := h.Rooms.Describe(r.Context(), sess)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, room)
}

// DestroyRoom ends the room for every participant. Destroying a room that is
// already gone succeeds without notifying anyone, whatever token is presented.
func (h *Handler) DestroyRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")

	sess, err := h.Auth.Verify(r.Context(), roomID, middleware.TokenFromRequest(r))
	if errors.Is(err, apperr.ErrUnauthorized) && roomID != "" {
		exists, existsErr := h.Keys.Exists(r.Context(), store.MetaKey(roomID))
		if existsErr != nil {
			h.Fail(w, r, existsErr)
			return
		}
		if !exists {
			h.setTokenCookie(w, "", -1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	if err := h.Rooms.DestroyRoom(r.Context(), sess); err != nil {
		h.Fail(w, r, err)
		return
	}

	h.setTokenCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// setTokenCookie writes the token cookie. A negative maxAge clears it.
func (h *Handler) setTokenCookie(w http.ResponseWriter, token string, maxAge int) {
	if maxAge == 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
