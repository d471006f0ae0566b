package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/primitive-tutor/backend/internal/assistant"
	"github.com/primitive-tutor/backend/internal/database"
	"github.com/primitive-tutor/backend/internal/evaluation"
	"github.com/rs/cors"
)

func main() {
	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize handlers
	evalStore := evaluation.NewStore(db)
	evalHandler := evaluation.NewHandler(evalStore)
	sessionHandler := assistant.NewHandler(assistant.NewClient())

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Tutoring session channel
	api.HandleFunc("/session", sessionHandler.HandleSession).Methods("GET")

	// Evaluation submission + rollups
	api.HandleFunc("/evaluations", evalHandler.SubmitEvaluation).Methods("POST")
	api.HandleFunc("/evaluations/summary", evalHandler.GetSummary).Methods("GET")
	api.HandleFunc("/competencies", evalHandler.GetCompetencies).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
