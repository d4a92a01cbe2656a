package wssync

import (
	"encoding/binary"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"syncra"
)

// Client is the peer-side endpoint. Targets passed to Send are ignored;
// everything goes to the server.
type Client struct {
	conn *websocket.Conn
	id   uint32
	log  *log.Logger

	send   chan []byte
	done   chan struct{}
	closed atomic.Bool

	onMessage func(data []byte)
	onClose   func(err error)
}

func helloPayload(clientID uint32) []byte {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], clientID)
	return p[:]
}

// Dial connects to a server and reads the hello message carrying the
// assigned client id.
func Dial(url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	_, hello, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(hello) != 4 {
		conn.Close()
		return nil, errors.New("wssync: malformed hello")
	}

	c := &Client{
		conn:      conn,
		id:        binary.LittleEndian.Uint32(hello),
		log:       logger,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		onMessage: func([]byte) {},
		onClose:   func(error) {},
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// ClientID is the id the server assigned during the handshake.
func (c *Client) ClientID() uint32 {
	return c.id
}

func (c *Client) readPump() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.onMessage(msg)
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}

// Send queues one message for the server.
func (c *Client) Send(channel syncra.Channel, payload []byte, _ []uint32) error {
	if c.closed.Load() {
		return ErrTransportClosed
	}
	data := append([]byte(nil), payload...)
	if channel == syncra.ChannelReliableOrdered {
		c.send <- data
		return nil
	}
	select {
	case c.send <- data:
	default:
		// Unreliable backpressure: drop.
	}
	return nil
}

func (c *Client) OnMessage(fn func(data []byte)) { c.onMessage = fn }
func (c *Client) OnClose(fn func(err error))     { c.onClose = fn }

func (c *Client) shutdown(err error) {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)
	c.onClose(err)
}

func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	return c.conn.Close()
}
