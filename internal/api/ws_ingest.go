package api

import (
	"log"
	"net/http"
	"sync"

	"knowledge-agent/internal/services"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Type    string                 `json:"type"` // "report" or "summary"
	Report  *services.SourceReport `json:"report,omitempty"`
	Summary *services.RunSummary   `json:"summary,omitempty"`
}

// IngestStream runs an ingestion over the configured sources and streams a
// report per source as each completes, followed by the run summary. The
// connection closes when the run is done.
// GET /ws/ingest
func (h *Handler) IngestStream(w http.ResponseWriter, r *http.Request) {
	if len(h.defaultSources) == 0 {
		writeError(w, http.StatusBadRequest, "no sources configured", "")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reports arrive from concurrent pipeline workers; gorilla requires a
	// single writer at a time.
	var mu sync.Mutex
	send := func(ev wsEvent) {
		mu.Lock()
		defer mu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("⚠️  websocket write failed: %v", err)
		}
	}

	summary := h.ingestor.Run(r.Context(), h.defaultSources, func(report services.SourceReport) {
		send(wsEvent{Type: "report", Report: &report})
	})
	send(wsEvent{Type: "summary", Summary: summary})

	mu.Lock()
	defer mu.Unlock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"))
}
