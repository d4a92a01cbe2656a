// Package quicsync carries replication traffic over QUIC. The
// reliable-ordered channel is one long-lived bidirectional stream per peer
// with length-framed messages; the unreliable channel maps onto QUIC
// datagrams.
package quicsync

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"syncra"
)

var (
	ErrClientNotFound  = errors.New("quicsync: client not found")
	ErrTransportClosed = errors.New("quicsync: transport is closed")
	ErrSendTimeout     = errors.New("quicsync: send queue full")
)

const sendQueueSize = 256

// Transport is the server-side endpoint. It implements syncra.Peer and
// feeds inbound messages to the OnMessage callback.
type Transport struct {
	listener *quic.Listener
	log      *log.Logger

	clients  map[uint32]*client
	clientMu sync.RWMutex
	nextID   atomic.Uint32

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	onConnect    func(clientID uint32)
	onDisconnect func(clientID uint32)
	onMessage    func(sender uint32, data []byte)
}

type client struct {
	id     uint32
	conn   quic.Connection
	stream quic.Stream
	send   chan []byte
}

// Listen starts accepting peers on address. Datagram support is forced on
// the QUIC config since the unreliable channel depends on it.
func Listen(address string, tlsConf *tls.Config, conf *quic.Config, logger *log.Logger) (*Transport, error) {
	if conf == nil {
		conf = &quic.Config{}
	}
	conf.EnableDatagrams = true
	if logger == nil {
		logger = log.Default()
	}

	t := &Transport{
		clients:      make(map[uint32]*client),
		log:          logger,
		onConnect:    func(uint32) {},
		onDisconnect: func(uint32) {},
		onMessage:    func(uint32, []byte) {},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.ctx = ctx
	t.cancel = cancel

	listener, err := quic.ListenAddr(address, tlsConf, conf)
	if err != nil {
		cancel()
		return nil, err
	}
	t.listener = listener

	go t.acceptConnections()

	return t, nil
}

func (t *Transport) acceptConnections() {
	for {
		conn, err := t.listener.Accept(t.ctx)
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
				t.log.Printf("[quicsync] failed accepting connection: %s", err)
				continue
			}
		}
		go t.registerClient(conn)
	}
}

func (t *Transport) registerClient(conn quic.Connection) {
	stream, err := conn.OpenStreamSync(t.ctx)
	if err != nil {
		t.log.Printf("[quicsync] failed opening control stream: %s", err)
		return
	}

	c := &client{
		id:     t.nextID.Add(1),
		conn:   conn,
		stream: stream,
		send:   make(chan []byte, sendQueueSize),
	}

	// The hello frame assigns the peer its client id.
	if err := writeFrame(stream, helloFrame(c.id)); err != nil {
		t.log.Printf("[quicsync] failed sending hello to %s: %s", conn.RemoteAddr(), err)
		conn.CloseWithError(0, "hello failed")
		return
	}

	t.clientMu.Lock()
	t.clients[c.id] = c
	t.clientMu.Unlock()

	go t.readPump(c)
	go t.datagramPump(c)
	go t.writePump(c)

	t.onConnect(c.id)
}

func (t *Transport) unregisterClient(c *client) {
	t.clientMu.Lock()
	_, ok := t.clients[c.id]
	if ok {
		delete(t.clients, c.id)
		close(c.send)
	}
	t.clientMu.Unlock()
	if ok {
		t.onDisconnect(c.id)
	}
}

func (t *Transport) readPump(c *client) {
	defer t.unregisterClient(c)
	for {
		data, err := readFrame(c.stream)
		if err != nil {
			return
		}
		t.onMessage(c.id, data)
	}
}

func (t *Transport) datagramPump(c *client) {
	for {
		data, err := c.conn.ReceiveDatagram(t.ctx)
		if err != nil {
			return
		}
		t.onMessage(c.id, data)
	}
}

func (t *Transport) writePump(c *client) {
	for {
		select {
		case <-t.ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := writeFrame(c.stream, data); err != nil {
				t.log.Printf("[quicsync] write to client %d failed: %s", c.id, err)
				return
			}
		}
	}
}

// Send hands one message to the given targets. The payload is copied before
// the call returns, so callers may reuse their buffer.
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
		switch channel {
		case syncra.ChannelReliableOrdered:
			select {
			case c.send <- data:
			case <-time.After(time.Second):
				lastErr = ErrSendTimeout
			}
		default:
			// Unreliable: losing it is allowed, so errors only get logged.
			if err := c.conn.SendDatagram(data); err != nil {
				t.log.Printf("[quicsync] datagram to client %d dropped: %s", id, err)
			}
		}
	}
	return lastErr
}

// CloseClient disconnects one peer.
func (t *Transport) CloseClient(id uint32, code int, reason string) error {
	t.clientMu.RLock()
	c, ok := t.clients[id]
	t.clientMu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
	return nil
}

// Clients lists the connected peers in the shape the replicator's peer
// registry wants.
func (t *Transport) Clients() []syncra.Client {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	out := make([]syncra.Client, 0, len(t.clients))
	for id := range t.clients {
		out = append(out, syncra.Client{ID: id, State: syncra.ClientConnected})
	}
	return out
}

func (t *Transport) OnConnect(fn func(clientID uint32)) {
	t.onConnect = fn
}

func (t *Transport) OnDisconnect(fn func(clientID uint32)) {
	t.onDisconnect = fn
}

func (t *Transport) OnMessage(fn func(sender uint32, data []byte)) {
	t.onMessage = fn
}

func (t *Transport) Close() error {
	t.closed.Store(true)
	t.cancel()
	return t.listener.Close()
}
