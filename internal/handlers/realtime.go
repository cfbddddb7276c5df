package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subhodeep2005s/realtime-chat/internal/api/middleware"
	"github.com/subhodeep2005s/realtime-chat/internal/metrics"
	"github.com/subhodeep2005s/realtime-chat/internal/realtime"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Realtime relays the room's channel to a websocket. The stream ends after
// chat.destroy, when the client goes away, or when the transport drops.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before upgrading so a transport failure is still a plain HTTP error
	sub, err := h.Subscriber.Subscribe(ctx, store.ChannelKey(sess.RoomID))
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.Logger.Debug().Err(err).Str("room_id", sess.RoomID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	connID, err := h.Presence.Connect(ctx, sess.RoomID)
	if err != nil {
		h.Logger.Warn().Err(err).Str("room_id", sess.RoomID).Msg("presence connect failed")
	} else {
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer dcancel()
			if err := h.Presence.Disconnect(dctx, sess.RoomID, connID); err != nil {
				h.Logger.Warn().Err(err).Str("room_id", sess.RoomID).Msg("presence disconnect failed")
			}
		}()
	}

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-sub.Events():
			if !ok {
				closeConn(conn, websocket.CloseGoingAway, "stream ended")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
			if env.Event == realtime.EventDestroy {
				closeConn(conn, websocket.CloseNormalClosure, "room destroyed")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readPump discards client frames and keeps the read deadline alive on pongs.
// Clients post messages over HTTP; the socket is receive-only.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
