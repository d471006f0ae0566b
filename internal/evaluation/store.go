package evaluation

import (
	"database/sql"
	"fmt"

	"github.com/primitive-tutor/backend/internal/models"
)

// Store persists accepted evaluation results and server-side competency
// scores in Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertResult records a submitted result. Inserts are idempotent on
// attempt_id: a redelivered result reports inserted=false and changes
// nothing.
func (s *Store) InsertResult(result *models.EvaluationResult) (bool, error) {
	var metrics []byte
	if result.Metrics != nil {
		var err error
		metrics, err = models.MarshalMetrics(result.Metrics)
		if err != nil {
			return false, fmt.Errorf("encode metrics: %w", err)
		}
	}

	res, err := s.db.Exec(`
		INSERT INTO evaluation_results
			(attempt_id, primitive_type, instance_id, success, score, metrics, duration_ms, student_work, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (attempt_id) DO NOTHING`,
		result.AttemptID, result.PrimitiveType, result.InstanceID, result.Success,
		result.Score, metrics, result.DurationMs, []byte(result.StudentWork), result.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetSummary rolls up stored results, optionally scoped to one instance.
func (s *Store) GetSummary(instanceID string) (*models.SessionSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COALESCE(AVG(score), 0)
		FROM evaluation_results`

	var row *sql.Row
	if instanceID != "" {
		row = s.db.QueryRow(query+` WHERE instance_id = $1`, instanceID)
	} else {
		row = s.db.QueryRow(query)
	}

	var summary models.SessionSummary
	if err := row.Scan(&summary.TotalAttempts, &summary.SuccessfulAttempts, &summary.AverageScore); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &summary, nil
}

// GetOrCreateCompetency returns the stored mastery row for a primitive type,
// creating it at the starting score of 50 on first sight.
func (s *Store) GetOrCreateCompetency(primitiveType models.PrimitiveType) (score, attempts int, err error) {
	err = s.db.QueryRow(`
		INSERT INTO competency_scores (primitive_type)
		VALUES ($1)
		ON CONFLICT (primitive_type) DO UPDATE SET primitive_type = EXCLUDED.primitive_type
		RETURNING score, attempts_count`,
		primitiveType,
	).Scan(&score, &attempts)
	if err != nil {
		return 0, 0, fmt.Errorf("get or create competency: %w", err)
	}
	return score, attempts, nil
}

// UpdateCompetency stores a recomputed mastery score and bumps the attempt
// counter.
func (s *Store) UpdateCompetency(primitiveType models.PrimitiveType, score int) error {
	_, err := s.db.Exec(`
		UPDATE competency_scores
		SET score = $2, attempts_count = attempts_count + 1, updated_at = NOW()
		WHERE primitive_type = $1`,
		primitiveType, score,
	)
	if err != nil {
		return fmt.Errorf("update competency: %w", err)
	}
	return nil
}

// ListCompetencies returns all stored mastery scores.
func (s *Store) ListCompetencies() ([]CompetencyUpdate, error) {
	rows, err := s.db.Query(`
		SELECT primitive_type, score, attempts_count
		FROM competency_scores
		ORDER BY primitive_type`)
	if err != nil {
		return nil, fmt.Errorf("list competencies: %w", err)
	}
	defer rows.Close()

	var out []CompetencyUpdate
	for rows.Next() {
		var c CompetencyUpdate
		if err := rows.Scan(&c.PrimitiveType, &c.Score, &c.Attempts); err != nil {
			return nil, fmt.Errorf("scan competency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
