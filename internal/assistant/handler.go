package assistant

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/primitive-tutor/backend/internal/models"
	"github.com/primitive-tutor/backend/internal/tutor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Handler terminates tutoring WebSocket sessions.
type Handler struct {
	llm LLMClient
}

func NewHandler(llm LLMClient) *Handler {
	return &Handler{llm: llm}
}

// HandleSession upgrades the connection, reads the opening session config
// payload, and serves envelopes until the widget disconnects.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: [assistant] websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	var cfg models.SessionConfig
	if err := ws.ReadJSON(&cfg); err != nil {
		log.Printf("WARN: [assistant] invalid connect payload: %v", err)
		return
	}
	if cfg.PrimitiveType == "" || cfg.InstanceID == "" {
		log.Printf("WARN: [assistant] connect payload missing primitive_type or instance_id")
		return
	}
	if !models.ValidPrimitiveTypes[cfg.PrimitiveType] {
		log.Printf("WARN: [assistant] unknown primitive type %q from instance %s", cfg.PrimitiveType, cfg.InstanceID)
		return
	}

	log.Printf("[assistant] session started: instance=%s type=%s", cfg.InstanceID, cfg.PrimitiveType)
	session := NewSession(h.llm, cfg)

	for {
		var msg tutor.OutboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			log.Printf("[assistant] session closed: instance=%s (%v)", cfg.InstanceID, err)
			return
		}

		for _, frame := range session.Handle(r.Context(), msg) {
			if err := ws.WriteJSON(frame); err != nil {
				log.Printf("WARN: [assistant] write failed for instance %s: %v", cfg.InstanceID, err)
				return
			}
		}
	}
}
