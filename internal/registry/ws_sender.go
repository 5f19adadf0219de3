package registry

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSSender wraps a websocket connection with a write mutex so fan-out
// from multiple event handlers never interleaves frames.
type WSSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSSender(conn *websocket.Conn) *WSSender { return &WSSender{conn: conn} }

func (w *WSSender) Send(event string, data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(Envelope{Event: event, Data: data})
}

func (w *WSSender) Close() error { return w.conn.Close() }
