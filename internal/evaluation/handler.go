package evaluation

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/primitive-tutor/backend/internal/models"
)

// Handler exposes the gateway's evaluation API: idempotent result
// submission, session summaries, and competency scores.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) SubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	var result models.EvaluationResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	if result.AttemptID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "attempt_id is required"})
		return
	}
	if result.PrimitiveType == "" || result.InstanceID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "primitive_type and instance_id are required"})
		return
	}
	if result.Score < 0 || result.Score > 100 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "score must be in [0,100]"})
		return
	}
	if result.DurationMs < 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "duration_ms must be non-negative"})
		return
	}
	// Metrics are optional; when present the variant must match the widget type
	if result.Metrics != nil {
		if err := models.ValidateMetrics(result.Metrics, result.PrimitiveType); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
	}

	inserted, err := h.store.InsertResult(&result)
	if err != nil {
		log.Printf("WARN: [evaluations] insert failed for attempt %s: %v", result.AttemptID, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to record evaluation"})
		return
	}

	if !inserted {
		// Redelivery of an already-accepted attempt
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate", "attempt_id": result.AttemptID})
		return
	}

	// Propagate the competency update on first accept only
	current, attempts, err := h.store.GetOrCreateCompetency(result.PrimitiveType)
	if err != nil {
		log.Printf("WARN: [evaluations] competency lookup failed: %v", err)
	} else {
		updated := ComputeNewCompetency(current, result.Score, attempts)
		if err := h.store.UpdateCompetency(result.PrimitiveType, updated); err != nil {
			log.Printf("WARN: [evaluations] competency update failed: %v", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted", "attempt_id": result.AttemptID})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instance_id")

	summary, err := h.store.GetSummary(instanceID)
	if err != nil {
		log.Printf("WARN: [evaluations] summary failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to compute summary"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetCompetencies(w http.ResponseWriter, r *http.Request) {
	competencies, err := h.store.ListCompetencies()
	if err != nil {
		log.Printf("WARN: [evaluations] list competencies failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list competencies"})
		return
	}
	if competencies == nil {
		competencies = []CompetencyUpdate{}
	}
	writeJSON(w, http.StatusOK, competencies)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
