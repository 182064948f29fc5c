package signaling

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wavecall/signal-relay/internal/metrics"
	"github.com/wavecall/signal-relay/internal/ratelimit"
)

const wsWriteWait = 1 * time.Second

const (
	connOpen int32 = iota
	connClosed
)

var errConnClosed = errors.New("connection closed")

// conn adapts one WebSocket to relay.Peer. The read loop (run) owns the
// lifecycle: it joins the room, dispatches every inbound frame, and on any
// read error runs the leave sequence exactly once. Send and Close may be
// called concurrently from registry goroutines holding the registry lock.
type conn struct {
	srv  *Server
	ws   *websocket.Conn
	id   string
	room string
	name string

	limiter *ratelimit.TokenBucket

	writeMu sync.Mutex
	state   atomic.Int32

	closeOnce sync.Once
	pingStop  chan struct{}
}

func newConn(s *Server, ws *websocket.Conn, room, name string) *conn {
	mps := int64(s.maxMessagesPerSecond())
	return &conn{
		srv:      s,
		ws:       ws,
		id:       uuid.NewString(),
		room:     room,
		name:     name,
		limiter:  ratelimit.NewTokenBucket(ratelimit.RealClock{}, mps, mps),
		pingStop: make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send writes one text frame under the shared write mutex. The write deadline
// bounds how long a dead peer can stall delivery while the registry lock is
// held.
func (c *conn) Send(payload []byte) error {
	if c.state.Load() != connOpen {
		return errConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close forcibly closes the transport. The read loop observes the closure and
// runs the leave sequence; Close itself touches no room state.
func (c *conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(connClosed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}

func (c *conn) closeWith(code int, reason string) {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	c.writeMu.Unlock()
}

// run reads frames until the connection dies, then tears down membership.
func (c *conn) run() {
	idle := c.srv.idleTimeout()

	c.ws.SetReadLimit(c.srv.maxMessageBytes())
	_ = c.ws.SetReadDeadline(time.Now().Add(idle))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idle))
	})

	go c.pingLoop()

	rooms := c.srv.rooms()
	room := rooms.Join(c.room, c.name, c)

	defer func() {
		close(c.pingStop)
		rooms.Leave(room, c, c.name)
		c.Close()
	}()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				c.srv.events().Inc(metrics.EventFrameTooLarge)
				c.closeWith(websocket.CloseMessageTooBig, "message too large")
			}
			return
		}
		// The rate limit applies after reading the message so bytes already in
		// the TCP receive buffer are consumed. Closing with unread data can
		// turn into an abortive close (RST), hiding the close code from the
		// client.
		if !c.limiter.Allow(1) {
			c.srv.events().Inc(metrics.EventRateLimited)
			c.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		// Any successful read proves liveness.
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))

		rooms.Dispatch(room, c, data)
	}
}

func (c *conn) pingLoop() {
	t := time.NewTicker(c.srv.pingInterval())
	defer t.Stop()
	for {
		select {
		case <-c.pingStop:
			return
		case <-t.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
