package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/donnyesq/gamble/state"
	"github.com/donnyesq/gamble/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventTypeConnected = "connected"
	EventTypeUpdated   = "updated"
	EventTypeHeartbeat = "heartbeat"
)

// StateEvent is one frame of the snapshot stream.
type StateEvent = types.StateEvent[state.View]

// StateHandler serves the snapshot to UI clients (JSON, SSE and WebSocket).
type StateHandler struct {
	client          LotteryClient
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader

	closeOnce sync.Once
	closing   chan struct{}
}

// NewStateHandler creates a state handler.
func NewStateHandler(client LotteryClient, logger zerolog.Logger) *StateHandler {
	return &StateHandler{
		client:          client,
		logger:          logger.With().Str("handler", "state").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		closing: make(chan struct{}),
	}
}

// Close ends every open stream so the HTTP server can drain.
func (h *StateHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Get returns the current snapshot.
// Route: GET /api/state
func (h *StateHandler) Get(c *gin.Context) {
	OK(c, h.client.Snapshot().View())
}

// StreamUpdates opens an SSE connection and streams snapshots.
// Route: GET /api/state/updates
func (h *StateHandler) StreamUpdates(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	h.streamUpdates(c.Request.Context(), &sseSender{writer: c.Writer}, nil)
}

// StreamUpdatesWebSocket opens a WebSocket connection and streams snapshots.
// Route: GET /api/state/updates/ws
func (h *StateHandler) StreamUpdatesWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	writeDeadline := 10 * time.Second
	done := make(chan struct{})

	// Detect connection close
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
				} else {
					h.logger.Debug().Err(err).Msg("WebSocket closed")
				}
				return
			}
		}
	}()

	sender := &wsSender{
		conn:          conn,
		done:          done,
		logger:        h.logger,
		writeDeadline: writeDeadline,
	}
	h.streamUpdates(c.Request.Context(), sender, done)
}

// listen subscribes to the store. Intermediate snapshots may be skipped
// when the client is slower than the store; the latest one always arrives.
func (h *StateHandler) listen() (<-chan state.Snapshot, func()) {
	updates := make(chan state.Snapshot, 1)
	sub := h.client.Subscribe(func(s state.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	return updates, sub.Unsubscribe
}

func (h *StateHandler) streamUpdates(ctx context.Context, sender messageSender, done <-chan struct{}) {
	updates, cancel := h.listen()
	defer cancel()

	// The subscription always delivers the current snapshot first.
	eventType := EventTypeConnected

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closing:
			return
		case <-done:
			h.logger.Debug().Msg("WebSocket connection closed, stopping stream")
			return
		case <-heartbeat.C:
			if err := sender.Send(&StateEvent{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				h.logger.Debug().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case snap := <-updates:
			view := snap.View()
			if err := sender.Send(&StateEvent{
				Type:      eventType,
				Timestamp: time.Now().Unix(),
				State:     &view,
			}); err != nil {
				h.logger.Debug().Err(err).Str("event_type", eventType).Msg("Failed to send state, stopping stream")
				return
			}
			eventType = EventTypeUpdated
		}
	}
}

// messageSender interface for sending messages (SSE or WebSocket).
type messageSender interface {
	Send(*StateEvent) error
}

// sseSender sends messages via SSE.
type sseSender struct {
	writer gin.ResponseWriter
}

func (s *sseSender) Send(event *StateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := s.writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return err
	}
	s.writer.Flush()
	return nil
}

// wsSender sends messages via WebSocket.
type wsSender struct {
	conn          *websocket.Conn
	done          <-chan struct{}
	logger        zerolog.Logger
	writeDeadline time.Duration
}

func (s *wsSender) Send(event *StateEvent) error {
	select {
	case <-s.done:
		return io.EOF
	default:
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set write deadline")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Debug().Err(err).Str("event_type", event.Type).Msg("WebSocket write failed: connection closed")
		} else {
			s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("WebSocket write failed")
		}
		return err
	}
	return nil
}
