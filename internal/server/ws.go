package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxbridge/voxbridge/internal/event"
	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/room"
)

const (
	// writeTimeout bounds a single outbound frame write.
	writeTimeout = 5 * time.Second

	// handshakeTimeout bounds the wait for the initial connected event.
	handshakeTimeout = 10 * time.Second
)

// wsSink adapts a websocket connection to the event.Sink interface. Writes
// are serialised under a mutex; the relay and the read loop both deliver
// through it.
type wsSink struct {
	conn *websocket.Conn

	mu sync.Mutex
}

// Send marshals e and writes it as one text frame.
func (s *wsSink) Send(ctx context.Context, e event.Event) error {
	data, err := event.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// CloseNow abruptly closes the underlying socket. Used when the session is
// deleted out from under the connection.
func (s *wsSink) CloseNow() {
	_ = s.conn.CloseNow()
}

// handleWebSocket serves the per-participant real-time channel. The first
// frame must be a connected event binding the socket to a session slot;
// after that the loop consumes audio fragments until disconnect or socket
// close, then runs the teardown path.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Debug("websocket accept failed", "error", err)
		return
	}
	defer ws.CloseNow()

	sink := &wsSink{conn: ws}

	conn, err := s.handshake(r.Context(), ws, sink)
	if err != nil {
		slog.Info("websocket handshake rejected", "error", err)
		ws.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}

	s.trackConnection(conn, sink)
	defer s.untrackConnection(conn)
	// Teardown must run even when the request context is already gone, so it
	// flushes with its own context.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		conn.Close(ctx)
	}()

	s.readLoop(r.Context(), ws, conn)
}

// handshake reads the initial connected event and registers the resulting
// relay connection in its session slot.
func (s *Server) handshake(ctx context.Context, ws *websocket.Conn, sink *wsSink) (*relay.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	_, data, err := ws.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read initial frame: %w", err)
	}
	ev, err := event.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	hello, ok := ev.(event.Connected)
	if !ok {
		return nil, fmt.Errorf("first event must be connected, got %s", ev.EventType())
	}

	role := room.Role(hello.UserType)
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown user type %q", hello.UserType)
	}

	conn := relay.NewConnection(relay.ConnectionConfig{
		RoomID:         hello.RoomID,
		Role:           role,
		Language:       hello.MyLanguage,
		Name:           hello.MyName,
		Sink:           sink,
		Registry:       s.registry,
		Relay:          s.relay,
		STT:            s.stt,
		SilenceTimeout: s.silenceTimeout,
		StreamMaxAge:   s.streamMaxAge,
		SampleRate:     s.sampleRate,
		Metrics:        s.metrics,
	})
	if err := conn.Register(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop consumes inbound frames until the client disconnects or the
// socket fails.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, conn *relay.Connection) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			slog.Debug("websocket read ended", "room_id", conn.RoomID, "error", err)
			return
		}

		ev, err := event.Unmarshal(data)
		if err != nil {
			slog.Debug("ignoring malformed frame", "room_id", conn.RoomID, "error", err)
			continue
		}

		switch ev := ev.(type) {
		case event.Audio:
			pcm, err := base64.StdEncoding.DecodeString(ev.Audio)
			if err != nil {
				slog.Debug("ignoring malformed audio payload", "room_id", conn.RoomID, "error", err)
				continue
			}
			if err := conn.HandleAudio(ctx, pcm); err != nil {
				slog.Warn("audio handling failed", "room_id", conn.RoomID, "error", err)
			}
		case event.Disconnect:
			ws.Close(websocket.StatusNormalClosure, "client disconnect")
			return
		default:
			slog.Debug("ignoring unexpected event", "room_id", conn.RoomID, "type", ev.EventType())
		}
	}
}

// trackConnection records a live connection for graceful shutdown.
func (s *Server) trackConnection(conn *relay.Connection, sink *wsSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[conn] = sink
}

func (s *Server) untrackConnection(conn *relay.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, conn)
}

// closeActiveConnections flushes and closes every live websocket. Each
// connection goes through the same teardown path as a client hangup.
func (s *Server) closeActiveConnections(ctx context.Context) {
	s.mu.Lock()
	conns := make(map[*relay.Connection]*wsSink, len(s.active))
	for c, sink := range s.active {
		conns[c] = sink
	}
	s.mu.Unlock()

	for c, sink := range conns {
		c.Close(ctx)
		_ = sink.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
