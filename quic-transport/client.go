package quicsync

import (
	"context"
	"crypto/tls"
	"log"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"syncra"
)

// Client is the peer-side endpoint. It implements syncra.Peer; the targets
// argument of Send is ignored since everything goes to the server.
type Client struct {
	conn   quic.Connection
	stream quic.Stream
	id     uint32
	log    *log.Logger

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	onMessage func(data []byte)
	onClose   func(err error)
}

// Dial connects to a server and completes the hello handshake that assigns
// this peer its client id.
func Dial(ctx context.Context, address string, tlsConf *tls.Config, conf *quic.Config, logger *log.Logger) (*Client, error) {
	if conf == nil {
		conf = &quic.Config{}
	}
	conf.EnableDatagrams = true
	if logger == nil {
		logger = log.Default()
	}

	conn, err := quic.DialAddr(ctx, address, tlsConf, conf)
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "no control stream")
		return nil, err
	}
	hello, err := readFrame(stream)
	if err != nil {
		conn.CloseWithError(0, "no hello")
		return nil, err
	}
	id, err := parseHello(hello)
	if err != nil {
		conn.CloseWithError(0, "bad hello")
		return nil, err
	}

	c := &Client{
		conn:      conn,
		stream:    stream,
		id:        id,
		log:       logger,
		send:      make(chan []byte, sendQueueSize),
		onMessage: func([]byte) {},
		onClose:   func(error) {},
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.readPump()
	go c.datagramPump()
	go c.writePump()

	return c, nil
}

// ClientID is the id the server assigned during the handshake.
func (c *Client) ClientID() uint32 {
	return c.id
}

func (c *Client) readPump() {
	for {
		data, err := readFrame(c.stream)
		if err != nil {
			c.shutdown(err)
			return
		}
		c.onMessage(data)
	}
}

func (c *Client) datagramPump() {
	for {
		data, err := c.conn.ReceiveDatagram(c.ctx)
		if err != nil {
			return
		}
		c.onMessage(data)
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			if err := writeFrame(c.stream, data); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}

// Send hands one message to the server. The payload is copied before the
// call returns.
func (c *Client) Send(channel syncra.Channel, payload []byte, _ []uint32) error {
	if c.closed.Load() {
		return ErrTransportClosed
	}
	data := append([]byte(nil), payload...)

	if channel == syncra.ChannelReliableOrdered {
		select {
		case c.send <- data:
			return nil
		case <-time.After(time.Second):
			return ErrSendTimeout
		}
	}
	if err := c.conn.SendDatagram(data); err != nil {
		c.log.Printf("[quicsync] datagram to server dropped: %s", err)
	}
	return nil
}

func (c *Client) OnMessage(fn func(data []byte)) {
	c.onMessage = fn
}

func (c *Client) OnClose(fn func(err error)) {
	c.onClose = fn
}

func (c *Client) shutdown(err error) {
	if c.closed.Swap(true) {
		return
	}
	c.cancel()
	c.onClose(err)
}

func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	return c.conn.CloseWithError(0, "client closed")
}
