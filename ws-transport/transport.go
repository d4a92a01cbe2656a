// Package wssync carries replication traffic over WebSockets for
// deployments that cannot speak QUIC (browsers, restrictive networks).
// WebSocket rides on TCP, so the reliable-ordered contract holds trivially;
// the unreliable channel degrades to best-effort delivery that drops
// messages when a peer's send queue backs up instead of stalling the tick.
package wssync

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"syncra"
)

var (
	ErrClientNotFound  = errors.New("wssync: client not found")
	ErrTransportClosed = errors.New("wssync: transport is closed")
)

const (
	sendQueueSize = 256
	writeWait     = 5 * time.Second
	readWait      = 60 * time.Second
)

// Transport is the server-side endpoint. It implements syncra.Peer.
type Transport struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	clients  map[uint32]*client
	clientMu sync.RWMutex
	nextID   atomic.Uint32
	closed   atomic.Bool

	onConnect    func(clientID uint32)
	onDisconnect func(clientID uint32)
	onMessage    func(sender uint32, data []byte)
}

type client struct {
	id   uint32
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewTransport(logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.Default()
	}
	return &Transport{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients:      make(map[uint32]*client),
		onConnect:    func(uint32) {},
		onDisconnect: func(uint32) {},
		onMessage:    func(uint32, []byte) {},
	}
}

// Handler upgrades requests and runs the connection until it drops.
func (t *Transport) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{
			id:   t.nextID.Add(1),
			conn: conn,
			send: make(chan []byte, sendQueueSize),
		}

		// Hello: the first message assigns the client id.
		if err := conn.WriteMessage(websocket.BinaryMessage, helloPayload(c.id)); err != nil {
			return
		}

		t.clientMu.Lock()
		t.clients[c.id] = c
		t.clientMu.Unlock()
		t.onConnect(c.id)

		go t.writePump(c)
		t.readPump(c)

		t.unregister(c)
	}
}

func (t *Transport) readPump(c *client) {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		t.onMessage(c.id, msg)
	}
}

func (t *Transport) writePump(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}

func (t *Transport) unregister(c *client) {
	t.clientMu.Lock()
	_, ok := t.clients[c.id]
	if ok {
		delete(t.clients, c.id)
		c.once.Do(func() { close(c.send) })
	}
	t.clientMu.Unlock()
	if ok {
		t.onDisconnect(c.id)
	}
}

// Send queues one message for the given targets. Reliable sends block until
// queued; unreliable sends are dropped when a queue is full.
func (t *Transport) Send(channel syncra.Channel, payload []byte, targets []uint32) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	data := append([]byte(nil), payload...)

	var lastErr error
	for _, id := range targets {
		t.clientMu.RLock()
		c, ok := t.clients[id]
		t.clientMu.RUnlock()
		if !ok {
			lastErr = ErrClientNotFound
			continue
		}
		if channel == syncra.ChannelReliableOrdered {
			c.send <- data
			continue
		}
		select {
		case c.send <- data:
		default:
			// Backpressure on the unreliable channel: drop, don't stall.
		}
	}
	return lastErr
}

// Clients lists the connected peers.
func (t *Transport) Clients() []syncra.Client {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	out := make([]syncra.Client, 0, len(t.clients))
	for id := range t.clients {
		out = append(out, syncra.Client{ID: id, State: syncra.ClientConnected})
	}
	return out
}

func (t *Transport) OnConnect(fn func(clientID uint32))    { t.onConnect = fn }
func (t *Transport) OnDisconnect(fn func(clientID uint32)) { t.onDisconnect = fn }
func (t *Transport) OnMessage(fn func(sender uint32, data []byte)) {
	t.onMessage = fn
}

func (t *Transport) Close() error {
	t.closed.Store(true)
	t.clientMu.Lock()
	defer t.clientMu.Unlock()
	for id, c := range t.clients {
		c.conn.Close()
		c.once.Do(func() { close(c.send) })
		delete(t.clients, id)
	}
	return nil
}
