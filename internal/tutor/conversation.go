package tutor

import (
	"time"

	"github.com/primitive-tutor/backend/internal/models"
)

// ConversationLog is the append-only ordered sequence of learner-visible
// turns. Silent events never become turns.
type ConversationLog struct {
	turns []models.ConversationTurn
}

func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

func (l *ConversationLog) Append(role models.TurnRole, content string, isAudio bool) models.ConversationTurn {
	turn := models.ConversationTurn{
		Role:      role,
		Content:   content,
		IsAudio:   isAudio,
		Timestamp: time.Now().UTC(),
	}
	l.turns = append(l.turns, turn)
	return turn
}

// Turns returns a copy of the log in append order.
func (l *ConversationLog) Turns() []models.ConversationTurn {
	out := make([]models.ConversationTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *ConversationLog) Len() int {
	return len(l.turns)
}

// CountByRole returns how many turns the given role has, and how many of
// those were audio.
func (l *ConversationLog) CountByRole(role models.TurnRole) (total, audio int) {
	for _, t := range l.turns {
		if t.Role != role {
			continue
		}
		total++
		if t.IsAudio {
			audio++
		}
	}
	return total, audio
}

func (l *ConversationLog) Reset() {
	l.turns = nil
}
