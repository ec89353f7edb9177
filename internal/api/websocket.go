package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteWait = 5 * time.Second

// streamEvents upgrades the connection and forwards bus envelopes for topics
// until the client goes away.
func streamEvents(bus *events.Bus, logger *slog.Logger, topics ...events.Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}
		defer conn.Close()

		if bus == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"detail":"bus not ready","code":"UNAVAILABLE"}`))
			return
		}

		stream, unsub := bus.Subscribe(100, topics...)
		defer unsub()

		// Reads only detect the close; clients do not send anything.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("ws write error", "error", err)
					return
				}
			}
		}
	}
}
