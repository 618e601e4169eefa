// Package relay replicates block edits between peers sharing a world seed.
//
// Peers connect over websockets, exchange a JSON HELLO/WELCOME handshake,
// then stream binary edit frames. The hub forwards each edit to every other
// peer and to an optional sink, and replays a backlog to newcomers.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/go-theft-craft/voxel/internal/world"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 25 * time.Second

	outboundQueue = 256
	backlogBatch  = 512
)

// EditSource replays previously accepted edits in order.
type EditSource interface {
	Replay(ctx context.Context, fn func(world.Edit) error) error
}

// EditSink receives every accepted edit.
type EditSink interface {
	Append(ctx context.Context, peer string, edits ...world.Edit) error
}

// Options configures a Hub.
type Options struct {
	Seed         int64
	ConfigDigest string
	MaxPeers     int
	Source       EditSource // optional backlog for new peers
	Sink         EditSink   // optional persistence
}

// Hub relays edits between connected peers. It implements http.Handler.
type Hub struct {
	opts     Options
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex // serializes sink appends with fan-out and joins
	peers map[uuid.UUID]*peer
}

type peer struct {
	id   uuid.UUID
	name string
	out  chan []byte
}

// NewHub creates a Hub.
func NewHub(opts Options, log *slog.Logger) *Hub {
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = 32
	}
	return &Hub{
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers: make(map[uuid.UUID]*peer),
	}
}

// PeerCount returns the number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// ServeHTTP upgrades the request and runs the peer until it disconnects.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxFrameSize)

	p, backlog, err := h.handshake(r.Context(), conn)
	if err != nil {
		h.log.Info("handshake rejected", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer h.unregister(p)

	log := h.log.With("peer", p.id, "name", p.name)
	log.Info("peer joined", "backlog", len(backlog))

	for start := 0; start < len(backlog); start += backlogBatch {
		frame, err := EncodeEdits(backlog[start:min(start+backlogBatch, len(backlog))])
		if err == nil {
			err = writeMessage(conn, websocket.BinaryMessage, frame)
		}
		if err != nil {
			log.Warn("send backlog failed", "error", err)
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.writeLoop(ctx, cancel, conn, p)

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		if kind != websocket.BinaryMessage {
			continue
		}
		edits, err := DecodeFrame(msg)
		if err != nil {
			log.Debug("bad frame", "error", err)
			continue
		}
		if len(edits) > 0 {
			h.publish(ctx, p, edits)
		}
	}
	log.Info("peer left")
}

// handshake reads HELLO, registers the peer and sends WELCOME. The backlog
// is captured under the same lock as registration, so the peer sees every
// edit exactly once.
func (h *Hub) handshake(ctx context.Context, conn *websocket.Conn) (*peer, []world.Edit, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	if kind != websocket.TextMessage {
		reject(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil, nil, ErrInvalidMessage
	}
	hello, err := decodeHello(msg)
	if err != nil {
		reason := "bad HELLO"
		if errors.Is(err, ErrProtocolVersion) {
			reason = "bad protocol_version"
		}
		reject(conn, websocket.ClosePolicyViolation, reason)
		return nil, nil, err
	}
	if hello.ConfigDigest != "" && hello.ConfigDigest != h.opts.ConfigDigest {
		reject(conn, websocket.ClosePolicyViolation, "config digest mismatch")
		return nil, nil, ErrConfigMismatch
	}

	p := &peer{id: uuid.New(), name: hello.Name, out: make(chan []byte, outboundQueue)}

	h.mu.Lock()
	if len(h.peers) >= h.opts.MaxPeers {
		h.mu.Unlock()
		reject(conn, websocket.CloseTryAgainLater, "relay full")
		return nil, nil, errors.New("relay full")
	}
	var backlog []world.Edit
	if h.opts.Source != nil {
		err = h.opts.Source.Replay(ctx, func(e world.Edit) error {
			backlog = append(backlog, e)
			return nil
		})
		if err != nil {
			h.mu.Unlock()
			reject(conn, websocket.CloseInternalServerErr, "backlog unavailable")
			return nil, nil, err
		}
	}
	h.peers[p.id] = p
	h.mu.Unlock()

	welcome := Welcome{
		Type:            TypeWelcome,
		ProtocolVersion: ProtocolVersion,
		PeerID:          p.id.String(),
		Seed:            h.opts.Seed,
		ConfigDigest:    h.opts.ConfigDigest,
		Backlog:         len(backlog),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(welcome); err != nil {
		h.unregister(p)
		return nil, nil, err
	}
	return p, backlog, nil
}

// publish records edits with the sink and queues them for every other peer.
// Peers whose queue is full are disconnected.
func (h *Hub) publish(ctx context.Context, from *peer, edits []world.Edit) {
	frame, err := EncodeEdits(edits)
	if err != nil {
		h.log.Warn("encode edits", "peer", from.id, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.opts.Sink != nil {
		if err := h.opts.Sink.Append(ctx, from.id.String(), edits...); err != nil {
			h.log.Error("persist edits", "peer", from.id, "error", err)
		}
	}
	for id, q := range h.peers {
		if id == from.id {
			continue
		}
		select {
		case q.out <- frame:
		default:
			h.log.Warn("peer too slow, disconnecting", "peer", id)
			delete(h.peers, id)
			close(q.out)
		}
	}
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p.id]; ok {
		delete(h.peers, p.id)
		close(p.out)
	}
}

// writeLoop drains the peer's queue and keeps the connection alive. A closed
// queue ends the session.
func (h *Hub) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, p *peer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.out:
			if !ok {
				reject(conn, websocket.CloseGoingAway, "disconnected")
				_ = conn.Close()
				return
			}
			if err := writeMessage(conn, websocket.BinaryMessage, frame); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.peers {
		delete(h.peers, id)
		close(p.out)
	}
}

func writeMessage(conn *websocket.Conn, kind int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(kind, data)
}

func reject(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
