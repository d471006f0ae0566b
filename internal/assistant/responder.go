package assistant

import (
	"context"
	"log"

	"github.com/primitive-tutor/backend/internal/models"
	"github.com/primitive-tutor/backend/internal/tutor"
)

// Session is the backend half of one tutoring channel. It keeps the
// conversation history and grounding context for a single widget instance
// and turns inbound envelopes into reply frames.
type Session struct {
	llm     LLMClient
	cfg     models.SessionConfig
	system  string
	history []Turn
}

func NewSession(llm LLMClient, cfg models.SessionConfig) *Session {
	s := &Session{
		llm:    llm,
		cfg:    cfg,
		system: TutorSystemPrompt(cfg),
	}
	if len(cfg.PrimitiveData) > 0 {
		s.history = append(s.history, Turn{Role: models.RoleUser, Content: GroundingNote(cfg.PrimitiveData)})
	}
	return s
}

// Handle processes one envelope from the widget and returns the frames to
// send back, in order. Silent system events ground the session without
// producing any frame; visible text and hint requests produce a
// responding_start / assistant_text / responding_end sequence.
func (s *Session) Handle(ctx context.Context, msg tutor.OutboundMessage) []tutor.InboundMessage {
	switch msg.Kind {
	case tutor.OutboundSystemEvent:
		if len(msg.PrimitiveData) > 0 {
			s.cfg.PrimitiveData = msg.PrimitiveData
			s.history = append(s.history, Turn{Role: models.RoleUser, Content: GroundingNote(msg.PrimitiveData)})
		}
		if msg.Text != "" {
			s.history = append(s.history, Turn{Role: models.RoleUser, Content: "[NOTE] " + msg.Text})
		}
		return nil

	case tutor.OutboundUserText:
		s.history = append(s.history, Turn{Role: models.RoleUser, Content: msg.Text})
		return s.respond(ctx)

	case tutor.OutboundHintRequest:
		if len(msg.PrimitiveData) > 0 {
			s.cfg.PrimitiveData = msg.PrimitiveData
		}
		s.history = append(s.history, Turn{Role: models.RoleUser, Content: HintInstruction(msg.Level, msg.PrimitiveData)})
		return s.respond(ctx)

	default:
		log.Printf("[assistant] ignoring unknown outbound kind %q from instance %s", msg.Kind, s.cfg.InstanceID)
		return nil
	}
}

func (s *Session) respond(ctx context.Context) []tutor.InboundMessage {
	frames := []tutor.InboundMessage{
		{Kind: tutor.InboundState, Value: tutor.StateRespondingStart},
	}

	resp, err := s.llm.Respond(ctx, s.system, s.history)
	if err != nil {
		// A failed exchange ends the responding phase without a turn; the
		// widget side reverts to connected.
		log.Printf("WARN: [assistant] reply failed for instance %s: %v", s.cfg.InstanceID, err)
		return append(frames, tutor.InboundMessage{Kind: tutor.InboundState, Value: tutor.StateRespondingEnd})
	}

	s.history = append(s.history, Turn{Role: models.RoleAssistant, Content: resp.Content})
	return append(frames,
		tutor.InboundMessage{Kind: tutor.InboundAssistantText, Text: resp.Content},
		tutor.InboundMessage{Kind: tutor.InboundState, Value: tutor.StateRespondingEnd},
	)
}

// History exposes the server-side turn sequence, hidden grounding included.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}
