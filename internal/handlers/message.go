package handlers

import (
	"net/http"

	"github.com/subhodeep2005s/realtime-chat/internal/api/middleware"
	"github.com/subhodeep2005s/realtime-chat/internal/models"
)

// PostMessageRequest represents the post message request.
type PostMessageRequest struct {
	Sender string `json:"sender" validate:"max=100"`
	Text   string `json:"text" validate:"max=1000"`
}

// MessagesResponse represents the room history as seen by the caller.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// PostMessage appends a message to the caller's room.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PostMessageRequest
	if err := h.decode(r, &req); err != nil {
		h.Fail(w, r, err)
		return
	}

	msg, err := h.Messages.Append(r.Context(), sess, req.Sender, req.Text)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg.Public())
}

// GetMessages returns the room history. Only the caller's own messages carry a token.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msgs, err := h.Messages.List(r.Context(), sess)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}
