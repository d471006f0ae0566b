package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ── Typed Metrics Union ────────────────────────────────

// PrimitiveMetrics is the closed set of per-widget-type metric shapes. Every
// variant shares the wire-level "type" discriminator, which must match the
// primitive type of the result it travels in.
type PrimitiveMetrics interface {
	MetricsType() PrimitiveType
}

type FractionBarMetrics struct {
	TargetFraction  string `json:"target_fraction"`
	CorrectSegments int    `json:"correct_segments"`
	TotalSegments   int    `json:"total_segments"`
	Partitions      int    `json:"partitions"`
}

func (FractionBarMetrics) MetricsType() PrimitiveType { return PrimitiveFractionBar }

type RatioTableMetrics struct {
	RowsCompleted int  `json:"rows_completed"`
	RowsCorrect   int  `json:"rows_correct"`
	UsedScaling   bool `json:"used_scaling"`
}

func (RatioTableMetrics) MetricsType() PrimitiveType { return PrimitiveRatioTable }

type BalanceScaleMetrics struct {
	TargetValue     int `json:"target_value"`
	FinalDifference int `json:"final_difference"`
	MovesUsed       int `json:"moves_used"`
}

func (BalanceScaleMetrics) MetricsType() PrimitiveType { return PrimitiveBalanceScale }

type MatrixMetrics struct {
	CellsCorrect int    `json:"cells_correct"`
	CellsTotal   int    `json:"cells_total"`
	Operation    string `json:"operation"`
}

func (MatrixMetrics) MetricsType() PrimitiveType { return PrimitiveMatrix }

type SkipCountingMetrics struct {
	StepSize     int `json:"step_size"`
	CorrectStops int `json:"correct_stops"`
	TotalStops   int `json:"total_stops"`
}

func (SkipCountingMetrics) MetricsType() PrimitiveType { return PrimitiveSkipCounting }

// GenericMetrics is the forward-compatibility variant: it carries the fields
// of a primitive type this build does not know a concrete shape for.
type GenericMetrics struct {
	Type   PrimitiveType
	Fields map[string]json.RawMessage
}

func (m GenericMetrics) MetricsType() PrimitiveType { return m.Type }

func (m GenericMetrics) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(m.Fields))
	for k, v := range m.Fields {
		if k == "type" {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

// MarshalMetrics serializes a metrics variant with its "type" discriminator
// inlined alongside the variant's own fields.
func MarshalMetrics(m PrimitiveMetrics) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("metrics must serialize to an object: %w", err)
	}
	tag, err := json.Marshal(m.MetricsType())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// UnmarshalMetrics decodes a metrics object by its "type" discriminator.
// Unknown types decode into GenericMetrics rather than failing.
func UnmarshalMetrics(data []byte) (PrimitiveMetrics, error) {
	var probe struct {
		Type PrimitiveType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode metrics discriminator: %w", err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("metrics missing type discriminator")
	}

	switch probe.Type {
	case PrimitiveFractionBar:
		var m FractionBarMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case PrimitiveRatioTable:
		var m RatioTableMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case PrimitiveBalanceScale:
		var m BalanceScaleMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case PrimitiveMatrix:
		var m MatrixMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case PrimitiveSkipCounting:
		var m SkipCountingMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	delete(fields, "type")
	return GenericMetrics{Type: probe.Type, Fields: fields}, nil
}

// ValidateMetrics checks that a metrics variant belongs to the primitive type
// that produced it. A mismatch is a caller bug, not a recoverable condition.
func ValidateMetrics(m PrimitiveMetrics, primitiveType PrimitiveType) error {
	if m == nil {
		return fmt.Errorf("metrics required")
	}
	if m.MetricsType() != primitiveType {
		return fmt.Errorf("metrics type %q does not match primitive type %q",
			m.MetricsType(), primitiveType)
	}
	return nil
}

// ── Evaluation Results ─────────────────────────────────

// EvaluationResult is the canonical record of one graded attempt. Created
// once per submitted attempt and immutable afterwards.
type EvaluationResult struct {
	AttemptID     string           `json:"attempt_id"`
	PrimitiveType PrimitiveType    `json:"primitive_type"`
	InstanceID    string           `json:"instance_id"`
	Success       bool             `json:"success"`
	Score         float64          `json:"score"`
	Metrics       PrimitiveMetrics `json:"-"`
	DurationMs    int64            `json:"duration_ms"`
	StudentWork   json.RawMessage  `json:"student_work,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

type evaluationResultWire struct {
	AttemptID     string          `json:"attempt_id"`
	PrimitiveType PrimitiveType   `json:"primitive_type"`
	InstanceID    string          `json:"instance_id"`
	Success       bool            `json:"success"`
	Score         float64         `json:"score"`
	Metrics       json.RawMessage `json:"metrics,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
	StudentWork   json.RawMessage `json:"student_work,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	wire := evaluationResultWire{
		AttemptID:     r.AttemptID,
		PrimitiveType: r.PrimitiveType,
		InstanceID:    r.InstanceID,
		Success:       r.Success,
		Score:         r.Score,
		DurationMs:    r.DurationMs,
		StudentWork:   r.StudentWork,
		Timestamp:     r.Timestamp,
	}
	if r.Metrics != nil {
		m, err := MarshalMetrics(r.Metrics)
		if err != nil {
			return nil, err
		}
		wire.Metrics = m
	}
	return json.Marshal(wire)
}

func (r *EvaluationResult) UnmarshalJSON(data []byte) error {
	var wire evaluationResultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.AttemptID = wire.AttemptID
	r.PrimitiveType = wire.PrimitiveType
	r.InstanceID = wire.InstanceID
	r.Success = wire.Success
	r.Score = wire.Score
	r.DurationMs = wire.DurationMs
	r.StudentWork = wire.StudentWork
	r.Timestamp = wire.Timestamp
	// Results without metrics arrive as an absent field or a JSON null;
	// both mean "no metrics", not a malformed union.
	if len(wire.Metrics) > 0 && string(wire.Metrics) != "null" {
		m, err := UnmarshalMetrics(wire.Metrics)
		if err != nil {
			return err
		}
		r.Metrics = m
	}
	return nil
}

// QueueEntry lives in the submission queue until acknowledged by the backend.
type QueueEntry struct {
	Result     *EvaluationResult `json:"result"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	RetryCount int               `json:"retry_count"`
}

// SessionSummary is recomputed on demand over all results observed in the
// current learning session.
type SessionSummary struct {
	TotalAttempts      int     `json:"total_attempts"`
	SuccessfulAttempts int     `json:"successful_attempts"`
	AverageScore       float64 `json:"average_score"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
