package handlers

import (
	"net/http"
	"time"

	"github.com/andrenbrandao/bankist/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, a := range allowed {
				if a == "*" || a == origin {
					return true
				}
			}
			return origin == ""
		},
	}
}

// Events streams the session's events until the session ends or the
// client goes away.
func (h *Handler) Events(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.bank.Session(sessionID(r))
		if err != nil {
			writeErr(w, r, err)
			return
		}

		// Subscribed before the handshake completes so no event published
		// after the client connects is missed.
		events, unsubscribe := sess.Events.Subscribe()
		defer unsubscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Warn("websocket upgrade failed", logger.Error(err))
			return
		}
		defer conn.Close()

		// Reader loop: only pongs and close frames are expected.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(512)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-gone:
				return
			case e, ok := <-events:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
					return
				}
				if err := conn.WriteJSON(e); err != nil {
					logger.Log.Warn("error writing event", logger.String("session_id", sess.ID), logger.Error(err))
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
