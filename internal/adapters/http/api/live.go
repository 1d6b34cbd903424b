package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/arena/pkg/logger"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 30 * time.Second

	// Ping cadence. Must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Live streams are server-push only; clients send control frames.
	maxMessageSize = 512
)

// streamer upgrades requests to websockets and pushes snapshots.
type streamer struct {
	upgrader websocket.Upgrader
	log      logger.Logger
}

func newStreamer(l logger.Logger) *streamer {
	return &streamer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: l,
	}
}

// stream opens a subscription, upgrades the connection and writes every
// value as a JSON text frame until either side goes away. Subscription
// errors are reported as plain HTTP errors before the upgrade.
func stream[T any](s *streamer, w http.ResponseWriter, r *http.Request, op string, open func(context.Context) (<-chan T, error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, err := open(ctx)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Debug(ctx, "websocket upgrade failed", logger.String("op", op), logger.Error(err))
		return
	}
	defer conn.Close()

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case v, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"))
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				s.log.Debug(ctx, "websocket write failed", logger.String("op", op), logger.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames so pongs and close frames are seen,
// cancelling the stream when the peer disconnects or stops answering pings.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
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
