package notify

import (
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the request to a WebSocket and streams poll events to it.
// The optional poll_id query parameter narrows the stream to one poll.
func ServeWS(hub *Hub, buffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed",
				"event", "ws_upgrade_failed",
				"module", "notify",
				"layer", "transport",
				"error", err.Error(),
			)
			return
		}

		sub := hub.Subscribe(r.URL.Query().Get("poll_id"), buffer)
		c := &wsClient{conn: conn, sub: sub, logger: hub.logger}
		go c.writePump()
		go c.readPump()
	}
}

type wsClient struct {
	conn   *websocket.Conn
	sub    *Subscription
	logger *slog.Logger
}

// readPump only drains control frames; subscribers never send data. It
// detaches the subscription once the peer goes away, which ends writePump.
func (c *wsClient) readPump() {
	defer func() {
		c.sub.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				c.logger.Error("encode poll event failed",
					"event", "ws_encode_failed",
					"module", "notify",
					"layer", "transport",
					"poll_id", ev.PollID,
					"error", err.Error(),
				)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.sub.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.sub.Close()
				return
			}
		}
	}
}
