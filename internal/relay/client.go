package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-theft-craft/voxel/internal/world"
)

// ErrClosed is returned by Send after the client has shut down.
var ErrClosed = errors.New("relay client closed")

// Client is one peer's connection to a Hub.
type Client struct {
	conn    *websocket.Conn
	welcome Welcome

	out   chan []byte
	edits chan []world.Edit
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to a relay at url and performs the handshake. Empty Hello
// fields are filled with defaults.
func Dial(ctx context.Context, url string, hello Hello) (*Client, error) {
	hello.Type = TypeHello
	if hello.ProtocolVersion == "" {
		hello.ProtocolVersion = ProtocolVersion
	}
	if hello.Name == "" {
		hello.Name = "peer"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(MaxFrameSize)

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, fmt.Errorf("%w: %s", ErrRejected, ce.Text)
		}
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	welcome, err := decodeWelcome(msg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("welcome: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		welcome: welcome,
		out:     make(chan []byte, outboundQueue),
		edits:   make(chan []world.Edit, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// Welcome returns the server's handshake reply.
func (c *Client) Welcome() Welcome { return c.welcome }

// Edits delivers batches of edits from other peers, starting with the
// backlog. It is closed when the connection ends.
func (c *Client) Edits() <-chan []world.Edit { return c.edits }

// Send queues edits for the relay.
func (c *Client) Send(edits ...world.Edit) error {
	frame, err := EncodeEdits(edits)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.out <- frame:
		return nil
	}
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer close(c.edits)
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.shutdown(err)
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		edits, err := DecodeFrame(msg)
		if err != nil || len(edits) == 0 {
			continue
		}
		select {
		case c.edits <- edits:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			if err := writeMessage(c.conn, websocket.BinaryMessage, frame); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}
