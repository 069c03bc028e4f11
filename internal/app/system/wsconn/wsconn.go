// Package wsconn runs JSON-over-WebSocket connections for the live feeds.
//
// A Conn owns a write pump goroutine fed by a small buffered queue, and the
// caller's goroutine runs the read loop. Send never blocks: a client that
// falls behind by more than the queue size is disconnected, since every
// frame the feeds send is a full snapshot and the client can reconnect.
package wsconn

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
	sendQueue      = 32
)

// Upgrader is shared by every live endpoint. The default origin check
// (same host) applies.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Conn is one live client connection.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *zap.Logger
}

// Upgrade switches the request to a WebSocket. On failure the upgrader has
// already written an HTTP error.
func Upgrade(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*Conn, error) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil, err
	}
	id := uuid.NewString()
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendQueue),
		done: make(chan struct{}),
		log:  logger.With(zap.String("conn_id", id)),
	}, nil
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// Done is closed when the connection has been closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues v as a JSON text frame. It reports false if the connection
// is closed or was just dropped for being too slow.
func (c *Conn) Send(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error("websocket frame marshal failed", zap.Error(err))
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("websocket client too slow, disconnecting")
		c.Close()
		return false
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Run starts the write pump and reads frames until the client goes away,
// passing each text frame to onMessage. It closes the connection before
// returning.
func (c *Conn) Run(onMessage func(data []byte)) {
	defer c.Close()
	go c.writePump()

	c.ws.SetReadLimit(maxInboundSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage || onMessage == nil {
			continue
		}
		onMessage(data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
