// Package signaling exchanges WebRTC session descriptions and ICE candidates
// through a WebSocket relay server.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = pongTimeout * 9 / 10
)

// ErrNotConnected is returned when sending on a client that is not connected.
var ErrNotConnected = errors.New("signaling not connected")

// State is the client connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Handler callbacks for incoming signaling messages. Callbacks run on the
// client's read goroutine.
type Handler struct {
	OnRegistered   func()
	OnOffer        func(from string, payload json.RawMessage)
	OnAnswer       func(from string, payload json.RawMessage)
	OnICECandidate func(from string, payload json.RawMessage)
	OnError        func(msg string)
}

// Client is a WebSocket signaling client registered under one ID and role.
type Client struct {
	url     string
	id      string
	role    Role
	handler Handler
	log     *slog.Logger
	dialer  websocket.Dialer

	state atomic.Int32

	// wmu serializes writers; gorilla connections allow one concurrent writer.
	wmu  sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates a signaling client. A nil logger uses slog.Default.
func NewClient(url, id string, role Role, handler Handler, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout
	return &Client{
		url:     url,
		id:      id,
		role:    role,
		handler: handler,
		log:     log.With("signaling", url, "role", string(role)),
		dialer:  dialer,
		done:    make(chan struct{}),
	}
}

// ID returns the identifier this client registers with.
func (c *Client) ID() string { return c.id }

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// Connect dials the relay, sends the registration and starts the read and
// keepalive goroutines. OnRegistered fires once the relay acknowledges.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("signaling connect: client is %s", c.State())
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("signaling dial: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()

	if err := c.send(Message{Type: TypeRegister, ID: c.id, Role: c.role}); err != nil {
		conn.Close()
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("signaling register: %w", err)
	}

	go c.readLoop(conn)
	go c.keepalive(conn)
	return nil
}

// Close sends a close frame and shuts the connection down. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)

		c.wmu.Lock()
		defer c.wmu.Unlock()
		if c.conn == nil {
			return
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	})
}

// SendOffer sends an SDP offer to target.
func (c *Client) SendOffer(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeOffer, Target: target, Payload: payload})
}

// SendAnswer sends an SDP answer to target.
func (c *Client) SendAnswer(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeAnswer, Target: target, Payload: payload})
}

// SendICECandidate sends an ICE candidate to target.
func (c *Client) SendICECandidate(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeICECandidate, Target: target, Payload: payload})
}

func (c *Client) send(msg Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil || c.State() == StateClosed {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.Close()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn("signaling read failed", "err", err)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	h := c.handler
	switch msg.Type {
	case TypeRegistered:
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateRegistered))
		if h.OnRegistered != nil {
			h.OnRegistered()
		}
	case TypeOffer:
		if h.OnOffer != nil {
			h.OnOffer(msg.From, msg.Payload)
		}
	case TypeAnswer:
		if h.OnAnswer != nil {
			h.OnAnswer(msg.From, msg.Payload)
		}
	case TypeICECandidate:
		if h.OnICECandidate != nil {
			h.OnICECandidate(msg.From, msg.Payload)
		}
	case TypeError:
		if h.OnError != nil {
			h.OnError(msg.Error)
		}
	default:
		c.log.Debug("ignoring signaling message", "type", msg.Type)
	}
}

// keepalive pings the relay so idle connections survive proxies; a missing
// pong trips the read deadline and ends readLoop.
func (c *Client) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.wmu.Unlock()
			if err != nil {
				c.log.Debug("signaling ping failed", "err", err)
				return
			}
		}
	}
}
