package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	// eventBuffer bounds how far a slow subscriber may fall behind
	// before the hub starts dropping events for it.
	eventBuffer = 16

	keepAliveEvery = 30 * time.Second
)

// Client is one subscriber on the live event feed. The feed is one-way:
// clients receive serialized domain events and send nothing back.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	events chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		events: make(chan []byte, eventBuffer),
	}
}

// Run subscribes the client to the hub and pumps events to the
// connection until it closes, then unsubscribes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeEvents(ctx)
	c.drainReads(ctx)
}

// drainReads consumes inbound frames so close frames and pongs are
// processed. The feed ignores client payloads; a read error means the
// connection is gone.
func (c *Client) drainReads(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writeEvents forwards buffered events to the connection and pings on
// an interval so dead subscribers are noticed and reaped.
func (c *Client) writeEvents(ctx context.Context) {
	ticker := time.NewTicker(keepAliveEvery)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.events:
			if !ok {
				// Hub unsubscribed us.
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
