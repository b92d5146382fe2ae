// ABOUTME: WebSocket client for the chime control protocol
// ABOUTME: Handles connection, handshake, play requests and event routing
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/Resonate-Protocol/chime/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned when using a client without a live connection
var ErrNotConnected = errors.New("not connected")

// maxUnclaimedEnds bounds how many ended sessions are remembered before
// anyone waits for them. Events for other clients' sessions land here too.
const maxUnclaimedEnds = 1024

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string

	// HandshakeTimeout bounds the wait for server/hello (default 5s)
	HandshakeTimeout time.Duration
}

// RemoteError is a play request the daemon rejected
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote play failed (%s): %s", e.Kind, e.Message)
}

// Is lets callers match remote unsupported-format rejections with audio.ErrUnsupportedFormat
func (e *RemoteError) Is(target error) bool {
	return target == audio.ErrUnsupportedFormat && e.Kind == protocol.ErrorKindUnsupportedFormat
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan protocol.PlayResult

	events chan protocol.SessionEvent
	server protocol.ServerHello

	// Session ends are tracked apart from the events channel so a slow
	// Events reader never loses them
	endsMu    sync.Mutex
	ends      map[string]*sessionEnd
	endsOrder []string

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		pending: make(map[string]chan protocol.PlayResult),
		events:  make(chan protocol.SessionEvent, 64),
		ends:    make(map[string]*sessionEnd),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: protocol.Path}
	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"url":      u.String(),
	}).Debug("Connecting")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
	}

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{}) // Clear deadline

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		protocol.DecodePayload(msg, &serverErr)
		return fmt.Errorf("server rejected connection: %s (%s)", serverErr.Message, serverErr.Error)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(msg, &serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.server = serverHello
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "handshake",
		"server":   serverHello.Name,
		"id":       serverHello.ServerID,
	}).Info("Handshake complete with server")

	return nil
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Play asks the daemon to play resource and waits for its admission result.
// A rejected request returns the result together with a *RemoteError.
func (c *Client) Play(ctx context.Context, resource string) (*protocol.PlayResult, error) {
	req := protocol.PlayRequest{
		RequestID: uuid.New().String(),
		Resource:  resource,
	}

	ch := make(chan protocol.PlayResult, 1)
	c.pendingMu.Lock()
	c.pending[req.RequestID] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.RequestID)
		c.pendingMu.Unlock()
	}()

	if err := c.sendJSON(protocol.Message{Type: protocol.TypePlayRequest, Payload: req}); err != nil {
		return nil, err
	}

	select {
	case result := <-ch:
		if result.Error != "" {
			return &result, &RemoteError{Kind: result.ErrorKind, Message: result.Error}
		}
		return &result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrNotConnected
	}
}

// Events returns session events broadcast by the daemon. Events are
// dropped when the channel is full; use WaitSession to learn when a
// session ends.
func (c *Client) Events() <-chan protocol.SessionEvent {
	return c.events
}

// sessionEnd is closed once the daemon reports a session finished or failed
type sessionEnd struct {
	done  chan struct{}
	event protocol.SessionEvent
}

// endFor returns the tracker for a session. Callers hold endsMu.
func (c *Client) endFor(sessionID string) *sessionEnd {
	end, ok := c.ends[sessionID]
	if !ok {
		end = &sessionEnd{done: make(chan struct{})}
		c.ends[sessionID] = end
	}
	return end
}

// recordEnd remembers a terminal event, evicting the oldest unclaimed ones
func (c *Client) recordEnd(event protocol.SessionEvent) {
	c.endsMu.Lock()
	defer c.endsMu.Unlock()

	end := c.endFor(event.SessionID)
	select {
	case <-end.done:
		return
	default:
	}
	end.event = event
	close(end.done)

	c.endsOrder = append(c.endsOrder, event.SessionID)
	for len(c.endsOrder) > maxUnclaimedEnds {
		delete(c.ends, c.endsOrder[0])
		c.endsOrder = c.endsOrder[1:]
	}
}

// WaitSession blocks until the daemon reports that the session finished or
// failed and returns that event. It works whether the end arrived before or
// after the call.
func (c *Client) WaitSession(ctx context.Context, sessionID string) (protocol.SessionEvent, error) {
	c.endsMu.Lock()
	end := c.endFor(sessionID)
	c.endsMu.Unlock()

	defer func() {
		c.endsMu.Lock()
		if c.ends[sessionID] == end {
			delete(c.ends, sessionID)
		}
		c.endsMu.Unlock()
	}()

	select {
	case <-end.done:
		return end.event, nil
	case <-ctx.Done():
		return protocol.SessionEvent{}, ctx.Err()
	case <-c.ctx.Done():
		// The end may have been read just before the connection dropped
		select {
		case <-end.done:
			return end.event, nil
		default:
		}
		return protocol.SessionEvent{}, ErrNotConnected
	}
}

// Done is closed when the connection is closed
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				logrus.WithError(err).WithField("function", "readMessages").Debug("Read error")
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.handleJSONMessage(data)
		}
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		logrus.WithError(err).Warn("Failed to parse JSON message")
		return
	}

	switch msg.Type {
	case protocol.TypePlayResult:
		var result protocol.PlayResult
		if err := protocol.DecodePayload(msg, &result); err != nil {
			logrus.WithError(err).Warn("Invalid play result")
			return
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[result.RequestID]
		c.pendingMu.Unlock()
		if ok {
			ch <- result
		}

	case protocol.TypeSessionEvent:
		var event protocol.SessionEvent
		if err := protocol.DecodePayload(msg, &event); err != nil {
			logrus.WithError(err).Warn("Invalid session event")
			return
		}
		if event.Ended() {
			c.recordEnd(event)
		}
		select {
		case c.events <- event:
		default:
			logrus.WithField("session", event.SessionID).Debug("Event buffer full, dropping session event")
		}

	default:
		logrus.WithField("type", msg.Type).Warn("Unknown message type")
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		logrus.Debug("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
