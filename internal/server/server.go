// ABOUTME: Remote control server for the chime daemon
// ABOUTME: Accepts play requests over WebSocket and broadcasts session events
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/chime/internal/discovery"
	"github.com/Resonate-Protocol/chime/internal/version"
	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/Resonate-Protocol/chime/pkg/protocol"
	"github.com/Resonate-Protocol/chime/pkg/sound"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	writeDeadline   = 10 * time.Second
	pingInterval    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
	sendBufferSize  = 256
)

// Player is the playback surface the server drives
type Player interface {
	Play(resource string) (*sound.Session, error)
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	Player     Player
}

// Server represents the chime control server
type Server struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex
	closing   bool // set under clientsMu once clients are being closed

	shutdownMu sync.RWMutex
	isShutdown bool

	wg sync.WaitGroup
}

// Client represents a connected control client
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	// Output channel for messages, closed when the client is removed
	sendChan chan protocol.Message
}

// New creates a new server instance
func New(config Config) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Non-browser clients send no Origin; the daemon is meant for trusted local networks
				if origin := r.Header.Get("Origin"); origin != "" {
					logrus.WithField("origin", origin).Debug("Accepting WebSocket from browser origin")
				}
				return true
			},
		},
		clients: make(map[string]*Client),
	}

	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// ID returns the server id sent in server/hello
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the WebSocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled or the listener fails
func (s *Server) Run(ctx context.Context) error {
	if s.config.Player == nil {
		return fmt.Errorf("server requires a player")
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "Run",
		"name":     s.config.Name,
		"id":       s.serverID,
	})
	log.Info("Server starting")

	var mdnsManager *discovery.Manager
	if s.config.EnableMDNS {
		mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})
		if err := mdnsManager.Advertise(); err != nil {
			log.WithError(err).Warn("Failed to start mDNS advertisement")
		}
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", httpServer.Addr).Info("WebSocket server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server shutting down")

		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()

		if mdnsManager != nil {
			mdnsManager.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		s.closeClients()
		s.wg.Wait()
		return err
	})

	err := g.Wait()
	log.Info("Server stopped")
	return err
}

// HandleEvent broadcasts a session event to every connected client.
// It never blocks; clients whose buffers are full are disconnected.
func (s *Server) HandleEvent(e sound.Event) {
	event := protocol.SessionEvent{
		SessionID: e.SessionID,
		Kind:      string(e.Kind),
		Resource:  e.Resource,
		At:        e.At.UnixMilli(),
	}
	if e.Err != nil {
		event.Error = e.Err.Error()
	}

	msg := protocol.Message{Type: protocol.TypeSessionEvent, Payload: event}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		if err := s.send(client, msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "HandleEvent",
				"client":   client.Name,
			}).WithError(err).Warn("Client too slow for session events")
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).WithField("function", "handleWebSocket").Warn("WebSocket upgrade error")
		return
	}

	logrus.WithField("remote", r.RemoteAddr).Debug("New WebSocket connection")
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	hello, err := s.readHello(conn)
	if err != nil {
		logrus.WithError(err).WithField("function", "handleConnection").Warn("Handshake failed")
		writeError(conn, "bad_handshake", err.Error())
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "handleConnection",
		"client":   hello.Name,
		"id":       hello.ClientID,
	})

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan protocol.Message, sendBufferSize),
	}

	// Check for duplicate client ID and register atomically
	s.clientsMu.Lock()
	if s.closing {
		s.clientsMu.Unlock()
		writeError(conn, "shutting_down", "Server shutting down")
		return
	}
	if _, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Warn("Client ID already connected, rejecting duplicate")
		writeError(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	log.Info("Client connected")

	writerDone := make(chan struct{})
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		<-writerDone
		log.Info("Client disconnected")
	}()

	serverHello := protocol.ServerHello{
		ServerID:       s.serverID,
		Name:           s.config.Name,
		Version:        protocol.Version,
		ProductVersion: version.Version,
	}
	if err := s.send(client, protocol.Message{Type: protocol.TypeServerHello, Payload: serverHello}); err != nil {
		log.WithError(err).Warn("Error sending server hello")
		close(writerDone)
		return
	}

	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("WebSocket read error")
			}
			return
		}

		s.handleClientMessage(client, data)
	}
}

// readHello waits for and validates client/hello
func (s *Server) readHello(conn *websocket.Conn) (*protocol.ClientHello, error) {
	conn.SetReadDeadline(time.Now().Add(writeDeadline))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("error reading hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return nil, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg, &hello); err != nil {
		return nil, err
	}
	if hello.ClientID == "" {
		return nil, fmt.Errorf("client hello missing client_id")
	}
	if hello.Name == "" {
		return nil, fmt.Errorf("client hello missing name")
	}
	return &hello, nil
}

// clientWriter sends queued messages and keepalive pings to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				logrus.WithError(err).WithField("function", "clientWriter").Error("Error marshaling message")
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.WithError(err).WithField("function", "clientWriter").Debug("Error writing message")
				client.Conn.Close()
				drain(client.sendChan)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				drain(client.sendChan)
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		logrus.WithError(err).WithField("client", client.Name).Warn("Error unmarshaling message")
		return
	}

	switch msg.Type {
	case protocol.TypePlayRequest:
		var req protocol.PlayRequest
		if err := protocol.DecodePayload(msg, &req); err != nil {
			logrus.WithError(err).WithField("client", client.Name).Warn("Invalid play request")
			return
		}
		result := s.play(req)
		if err := s.send(client, protocol.Message{Type: protocol.TypePlayResult, Payload: result}); err != nil {
			logrus.WithError(err).WithField("client", client.Name).Warn("Error sending play result")
		}
	default:
		logrus.WithFields(logrus.Fields{
			"client": client.Name,
			"type":   msg.Type,
		}).Warn("Unknown message type")
	}
}

// play runs one request through the player's admission
func (s *Server) play(req protocol.PlayRequest) protocol.PlayResult {
	result := protocol.PlayResult{RequestID: req.RequestID}

	session, err := s.config.Player.Play(req.Resource)
	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = errorKind(err)
		logrus.WithFields(logrus.Fields{
			"function": "play",
			"resource": req.Resource,
			"kind":     result.ErrorKind,
		}).WithError(err).Info("Play request rejected")
		return result
	}

	result.SessionID = session.ID
	result.Format = protocol.NewAudioFormat(session.Format)
	result.BufferSize = session.BufferSize

	if s.config.Debug {
		logrus.WithFields(logrus.Fields{
			"function": "play",
			"resource": req.Resource,
			"session":  session.ID,
		}).Debug("Play request admitted")
	}
	return result
}

// errorKind classifies a play failure for the wire
func errorKind(err error) string {
	var ioErr *audio.IOError
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return protocol.ErrorKindUnsupportedFormat
	case errors.As(err, &ioErr):
		return protocol.ErrorKindIO
	}
	return protocol.ErrorKindInternal
}

// send queues a message without blocking. A client that cannot keep up is
// disconnected rather than left with a gap in its session events.
func (s *Server) send(client *Client, msg protocol.Message) error {
	select {
	case client.sendChan <- msg:
		return nil
	default:
		client.Conn.Close()
		return fmt.Errorf("client send buffer full, disconnecting")
	}
}

// closeClients closes every client connection so their readers return
func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.closing = true

	for _, client := range s.clients {
		client.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.Conn.Close()
	}
}

// writeError sends server/error directly on a connection that is about to close
func writeError(conn *websocket.Conn, code, message string) {
	msg := protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Error: code, Message: message},
	}
	if data, err := json.Marshal(msg); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// drain discards queued messages until the channel is closed
func drain(ch <-chan protocol.Message) {
	for range ch {
	}
}
