package relay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single consumer write may take before the
// relay gives up on that connection.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeProducer upgrades the request and streams every text message the
// worker sends into hostname's buffer, until the worker disconnects.
func (h *Hub) ServeProducer(w http.ResponseWriter, r *http.Request, hostname string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("relay: producer upgrade failed", "hostname", hostname, "error", err)
		return
	}
	defer conn.Close()
	defer h.CloseProducer(hostname)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("relay: producer connection dropped", "hostname", hostname, "error", err)
			}
			return
		}
		h.Publish(hostname, string(msg))
	}
}

// ServeConsumer upgrades the request, replays the current backlog, then
// streams new lines until the producer disconnects, the viewer
// disconnects, or this consumer is dropped for being slow.
func (h *Hub) ServeConsumer(w http.ResponseWriter, r *http.Request, hostname string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("relay: consumer upgrade failed", "hostname", hostname, "error", err)
		return
	}
	defer conn.Close()

	consumer, backlog := h.Subscribe(hostname)
	h.logger.Info("relay: viewer connected", "hostname", hostname, "session_id", consumer.SessionID)
	defer h.logger.Info("relay: viewer disconnected", "hostname", hostname, "session_id", consumer.SessionID)
	defer h.Unsubscribe(hostname, consumer)

	for _, line := range backlog {
		if err := writeLine(conn, line); err != nil {
			return
		}
	}

	// Watch for the viewer closing their end so we release the
	// subscription instead of leaking it until the next slow-write.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-consumer.Recv():
			if !ok {
				return
			}
			if err := writeLine(conn, line); err != nil {
				return
			}
		case <-consumer.Closed():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "slow consumer"),
				time.Now().Add(writeWait))
			return
		case <-clientGone:
			return
		}
	}
}

func writeLine(conn *websocket.Conn, line string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// NewLogger is a tiny convenience used by callers that want a
// relay-scoped child logger.
func NewLogger(base *slog.Logger) *slog.Logger { return base.With("component", "log_relay") }
