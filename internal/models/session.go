package models

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
	StatusListening    SessionStatus = "listening"
	StatusResponding   SessionStatus = "responding"
)

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

type PrimitiveType string

const (
	PrimitiveFractionBar  PrimitiveType = "fraction-bar"
	PrimitiveRatioTable   PrimitiveType = "ratio-table"
	PrimitiveBalanceScale PrimitiveType = "balance-scale"
	PrimitiveMatrix       PrimitiveType = "matrix"
	PrimitiveSkipCounting PrimitiveType = "skip-counting"
)

var ValidPrimitiveTypes = map[PrimitiveType]bool{
	PrimitiveFractionBar:  true,
	PrimitiveRatioTable:   true,
	PrimitiveBalanceScale: true,
	PrimitiveMatrix:       true,
	PrimitiveSkipCounting: true,
}

// ── Core Structs ───────────────────────────────────────

// SessionConfig identifies which widget instance owns a tutoring session.
// PrimitiveData is replaced wholesale on every update (last-write-wins).
type SessionConfig struct {
	PrimitiveType PrimitiveType   `json:"primitive_type"`
	InstanceID    string          `json:"instance_id"`
	PrimitiveData json.RawMessage `json:"primitive_data"`
	Topic         string          `json:"topic,omitempty"`
	GradeLevel    string          `json:"grade_level,omitempty"`
	ExhibitID     string          `json:"exhibit_id,omitempty"`
}

// ConversationTurn is immutable once appended. Ordering within the log is
// the sole source of truth for what the learner sees.
type ConversationTurn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	IsAudio   bool      `json:"is_audio"`
	Timestamp time.Time `json:"timestamp"`
}

// HintState counts hint requests per escalation level (1=nudge, 2=specific,
// 3=detailed). Monotonically non-decreasing within a session.
type HintState struct {
	Level1 int `json:"level1"`
	Level2 int `json:"level2"`
	Level3 int `json:"level3"`
}

func (h HintState) Total() int {
	return h.Level1 + h.Level2 + h.Level3
}

// AIMetrics is derived entirely from the conversation log and hint state.
type AIMetrics struct {
	HintsGiven        HintState `json:"hints_given"`
	TotalHints        int       `json:"total_hints"`
	TotalInteractions int       `json:"total_interactions"`
	VoiceInteractions int       `json:"voice_interactions"`
}
