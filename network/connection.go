package network

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is the transport handle handed to the rest of the server.
// Writes are serialized and deadline-bounded so one slow peer cannot
// stall a room broadcast.
type Connection interface {
	SendJSON(v interface{}) error
	ReadRequest() (*Request, error)
	Close() error
	RemoteAddr() net.Addr
}

type WSConnection struct {
	conn        *websocket.Conn
	sendMutex   sync.Mutex
	sendTimeout time.Duration
}

func NewWSConnection(conn *websocket.Conn, sendTimeout time.Duration) *WSConnection {
	return &WSConnection{conn: conn, sendTimeout: sendTimeout}
}

func (c *WSConnection) SendJSON(v interface{}) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.sendTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *WSConnection) ReadRequest() (*Request, error) {
	var req Request
	if err := c.conn.ReadJSON(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
