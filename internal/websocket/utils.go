package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liezira/simutbk-backend/internal/engine"
)

// Conn wraps a gorilla connection with a write mutex. The read loop's replies
// and the transition pusher share one socket; gorilla connections do not
// tolerate concurrent writers.
type Conn struct {
	raw *websocket.Conn

	writeMu sync.Mutex
}

// NewConn wraps an upgraded connection.
func NewConn(raw *websocket.Conn) *Conn {
	return &Conn{raw: raw}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.raw.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.raw.WriteJSON(v)
}

// WriteState sends the current snapshot.
func (c *Conn) WriteState(terminated bool, state engine.StateSnapshot) error {
	return c.WriteTyped(StateResponse{
		Event:      EventState,
		Terminated: terminated,
		State:      state,
	})
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func (c *Conn) ReadJSON(v interface{}) error {
	c.raw.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.raw.ReadJSON(v)
}
