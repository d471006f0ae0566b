package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/primitive-tutor/backend/internal/models"
)

// SessionController manages one widget instance's conversational channel to
// the AI tutor: connection lifecycle, text/voice multiplexing, silent
// grounding events and hint escalation.
//
// The controller never reconnects on its own. A dropped channel forces
// disconnected and it is the widget's job to call Connect again, so a session
// is never silently resumed with stale grounding context.
type SessionController struct {
	transport Transport

	mu     sync.Mutex
	cfg    models.SessionConfig
	status models.SessionStatus
	conv   *ConversationLog
	hints  *HintTracker

	// gen is bumped on every Disconnect. Read loops carry the generation
	// they were started under and drop frames once it moves on, so a reply
	// arriving after disconnect never reaches the log.
	gen int
}

func NewSessionController(transport Transport) *SessionController {
	return &SessionController{
		transport: transport,
		status:    models.StatusDisconnected,
		conv:      NewConversationLog(),
		hints:     NewHintTracker(),
	}
}

// ── Lifecycle ──────────────────────────────────────────

// Connect establishes the tutoring channel. Idempotent: calling while
// already connecting or connected is a no-op.
func (c *SessionController) Connect(ctx context.Context, cfg models.SessionConfig) error {
	c.mu.Lock()
	if c.status != models.StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.status = models.StatusConnecting
	c.cfg = cfg
	gen := c.gen
	c.mu.Unlock()

	err := c.transport.Connect(ctx, cfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.gen == gen && c.status == models.StatusConnecting {
			c.status = models.StatusDisconnected
		}
		if _, ok := err.(*ConnectionError); ok {
			return err
		}
		return &ConnectionError{Err: err}
	}

	// Disconnect raced the dial; tear the channel back down
	if c.gen != gen || c.status != models.StatusConnecting {
		c.transport.Disconnect()
		return nil
	}

	c.status = models.StatusConnected
	go c.consume(gen, c.transport.Receive())
	return nil
}

// Disconnect always succeeds and always leaves the session disconnected.
// Conversation history and hint counters are preserved in memory; any reply
// still in flight is dropped.
func (c *SessionController) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.status = models.StatusDisconnected
	c.mu.Unlock()

	c.transport.Disconnect()
}

func (c *SessionController) consume(gen int, inbound <-chan InboundMessage) {
	if inbound == nil {
		return
	}
	for msg := range inbound {
		c.handleInbound(gen, msg)
	}

	// Channel closed: the connection dropped out from under us
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.status != models.StatusDisconnected {
		log.Printf("[session] connection dropped for instance %s", c.cfg.InstanceID)
		c.status = models.StatusDisconnected
	}
}

func (c *SessionController) handleInbound(gen int, msg InboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Stale read loop: a disconnect happened after this frame was sent
	if c.gen != gen {
		return
	}

	switch msg.Kind {
	case InboundAssistantText:
		c.conv.Append(models.RoleAssistant, msg.Text, false)
		if c.status == models.StatusResponding {
			c.status = models.StatusConnected
		}
	case InboundState:
		switch msg.Value {
		case StateRespondingStart:
			if c.status != models.StatusDisconnected {
				c.status = models.StatusResponding
			}
		case StateRespondingEnd:
			if c.status == models.StatusResponding {
				c.status = models.StatusConnected
			}
		}
	default:
		log.Printf("[session] ignoring unknown inbound kind %q", msg.Kind)
	}
}

// ── Messaging ──────────────────────────────────────────

// SendText transmits learner text. Visible sends append a user turn and put
// the session into responding until the assistant finishes; silent sends
// ground the AI in widget state without creating a turn. The assistant may
// still answer a silent event, and that answer is appended normally.
func (c *SessionController) SendText(text string, silent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return ErrSendRejected
	}

	msg := OutboundMessage{Kind: OutboundUserText, Text: text, Silent: silent}
	if silent {
		msg.Kind = OutboundSystemEvent
	}

	if err := c.transport.Send(msg); err != nil {
		// Failed exchange reverts to connected, never tears the widget down
		if c.status == models.StatusResponding {
			c.status = models.StatusConnected
		}
		return fmt.Errorf("send text: %w", err)
	}

	if !silent {
		c.conv.Append(models.RoleUser, text, false)
		c.status = models.StatusResponding
	}
	return nil
}

// RequestHint escalates to the given level (1=nudge, 2=specific, 3=detailed).
// The count increments on every call — there is no deduplication — and the
// fresh primitive snapshot replaces the session's grounding context.
func (c *SessionController) RequestHint(level int, primitiveData json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return ErrSendRejected
	}

	if _, err := c.hints.Record(level); err != nil {
		return err
	}
	c.cfg.PrimitiveData = primitiveData

	msg := OutboundMessage{
		Kind:          OutboundHintRequest,
		Silent:        true,
		Level:         level,
		PrimitiveData: primitiveData,
	}
	if err := c.transport.Send(msg); err != nil {
		return fmt.Errorf("send hint request: %w", err)
	}

	c.status = models.StatusResponding
	return nil
}

// UpdateContext pushes a live widget-state snapshot as a silent grounding
// event. The snapshot replaces the previous one wholesale; when disconnected
// it is only retained locally for the next Connect.
func (c *SessionController) UpdateContext(primitiveData json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.PrimitiveData = primitiveData
	if !c.activeLocked() {
		return nil
	}

	msg := OutboundMessage{
		Kind:          OutboundSystemEvent,
		Silent:        true,
		PrimitiveData: primitiveData,
	}
	if err := c.transport.Send(msg); err != nil {
		return fmt.Errorf("send context update: %w", err)
	}
	return nil
}

// ── Voice ──────────────────────────────────────────────

// StartListening enters audio capture. Rejected while not connected or while
// the assistant is responding (listening and responding are mutually
// exclusive).
func (c *SessionController) StartListening() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.StatusConnected && c.status != models.StatusListening {
		return ErrSendRejected
	}
	c.status = models.StatusListening
	return nil
}

// StopListening always succeeds, from any state.
func (c *SessionController) StopListening() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.StatusListening {
		c.status = models.StatusConnected
	}
}

// FinalizeUtterance hands a finalized voice transcript to the session. It is
// appended as an audio user turn and transmitted exactly like visible text.
func (c *SessionController) FinalizeUtterance(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.StatusListening {
		return ErrSendRejected
	}

	msg := OutboundMessage{Kind: OutboundUserText, Text: text, Silent: false}
	if err := c.transport.Send(msg); err != nil {
		c.status = models.StatusConnected
		return fmt.Errorf("send utterance: %w", err)
	}

	c.conv.Append(models.RoleUser, text, true)
	c.status = models.StatusResponding
	return nil
}

// ── Derived State ──────────────────────────────────────

func (c *SessionController) Status() models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *SessionController) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *SessionController) IsAIResponding() bool {
	return c.Status() == models.StatusResponding
}

func (c *SessionController) IsListening() bool {
	return c.Status() == models.StatusListening
}

func (c *SessionController) Turns() []models.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Turns()
}

func (c *SessionController) HintState() models.HintState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hints.Snapshot()
}

// Metrics derives the session's AI usage entirely from the conversation log
// and hint state.
func (c *SessionController) Metrics() models.AIMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	total, audio := c.conv.CountByRole(models.RoleUser)
	hints := c.hints.Snapshot()
	return models.AIMetrics{
		HintsGiven:        hints,
		TotalHints:        hints.Total(),
		TotalInteractions: total,
		VoiceInteractions: audio,
	}
}

func (c *SessionController) Config() models.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Reset clears conversation history and hint counters. This is the only
// path that decreases hint counts; reconnection never does.
func (c *SessionController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv.Reset()
	c.hints.Reset()
}

// activeLocked reports whether the session holds a live channel. Listening
// and responding are sub-states of connected.
func (c *SessionController) activeLocked() bool {
	switch c.status {
	case models.StatusConnected, models.StatusListening, models.StatusResponding:
		return true
	}
	return false
}
