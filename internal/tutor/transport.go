package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/primitive-tutor/backend/internal/models"
)

// ── Wire Envelopes ─────────────────────────────────────

const (
	OutboundUserText    = "user_text"
	OutboundSystemEvent = "system_event"
	OutboundHintRequest = "hint_request"

	InboundAssistantText = "assistant_text"
	InboundState         = "state"

	StateRespondingStart = "responding_start"
	StateRespondingEnd   = "responding_end"
)

// OutboundMessage is the envelope for everything the session sends after the
// connect payload. Grounding context rides in PrimitiveData for system events
// and hint requests.
type OutboundMessage struct {
	Kind          string          `json:"kind"`
	Text          string          `json:"text,omitempty"`
	Silent        bool            `json:"silent"`
	Level         int             `json:"level,omitempty"`
	PrimitiveData json.RawMessage `json:"primitive_data,omitempty"`
}

// InboundMessage is either an assistant turn or a state signal.
type InboundMessage struct {
	Kind  string `json:"kind"`
	Text  string `json:"text,omitempty"`
	Value string `json:"value,omitempty"`
}

// ── Transport ──────────────────────────────────────────

// Transport is the duplex channel to the AI backend. Connect sends the
// session config as the opening payload; Receive yields inbound envelopes in
// arrival order and is closed when the channel drops. Dial retry/backoff
// policy belongs to the transport; the session controller never reconnects
// on its own.
type Transport interface {
	Connect(ctx context.Context, cfg models.SessionConfig) error
	Disconnect() error
	Send(msg OutboundMessage) error
	Receive() <-chan InboundMessage
}

// WSTransport speaks the envelope protocol over a WebSocket.
type WSTransport struct {
	url          string
	dialAttempts int
	dialTimeout  time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	inbound chan InboundMessage
}

func NewWSTransport(url string) *WSTransport {
	return &WSTransport{
		url:          url,
		dialAttempts: 3,
		dialTimeout:  10 * time.Second,
	}
}

func (t *WSTransport) Connect(ctx context.Context, cfg models.SessionConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, err := t.dialWithBackoff(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	// Opening payload identifies the widget instance and grounds the session
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		return &ConnectionError{Err: fmt.Errorf("send connect payload: %w", err)}
	}

	t.conn = conn
	t.inbound = make(chan InboundMessage, 16)
	go t.readLoop(conn, t.inbound)

	return nil
}

func (t *WSTransport) dialWithBackoff(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.dialTimeout}

	var lastErr error
	for attempt := 0; attempt < t.dialAttempts; attempt++ {
		if attempt > 0 {
			sleep := time.Duration(1<<uint(attempt-1)) * time.Second
			log.Printf("[transport] retrying dial in %v (attempt %d)", sleep, attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}

		conn, _, err := dialer.DialContext(ctx, t.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("[transport] dial attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("dial %s failed after %d attempts: %w", t.url, t.dialAttempts, lastErr)
}

func (t *WSTransport) readLoop(conn *websocket.Conn, inbound chan InboundMessage) {
	defer close(inbound)
	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			return
		}
		inbound <- msg
	}
}

func (t *WSTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *WSTransport) Send(msg OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("transport not connected")
	}
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	return nil
}

func (t *WSTransport) Receive() <-chan InboundMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inbound
}
