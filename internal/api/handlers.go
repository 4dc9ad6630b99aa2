package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests.
type Handler struct {
	rag      Answerer
	ingestor Ingestor
	docs     DocumentStore

	defaultSources []string
	defaultTopK    int
}

func NewHandler(rag Answerer, ingestor Ingestor, docs DocumentStore, defaultSources []string, defaultTopK int) *Handler {
	return &Handler{
		rag:            rag,
		ingestor:       ingestor,
		docs:           docs,
		defaultSources: defaultSources,
		defaultTopK:    defaultTopK,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

// Ask answers a question from the knowledge base.
// POST /ask {"question": "...", "topK": 6}
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"topK"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Missing 'question' (string)", "")
		return
	}
	if req.TopK < 1 {
		req.TopK = h.defaultTopK
	}

	answer, err := h.rag.AnswerQuestion(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to answer question", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// Ingest runs the pipeline over the requested sources, defaulting to the
// configured list, and returns the per-source run summary.
// POST /api/ingest {"sources": ["https://..."]}
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sources []string `json:"sources"`
	}
	// An empty body is fine; it means "use the configured sources".
	_ = json.NewDecoder(r.Body).Decode(&req)

	sources := req.Sources
	if len(sources) == 0 {
		sources = h.defaultSources
	}
	if len(sources) == 0 {
		writeError(w, http.StatusBadRequest, "no sources provided and none configured", "")
		return
	}

	summary := h.ingestor.Run(r.Context(), sources, nil)
	writeJSON(w, http.StatusOK, summary)
}

// ListDocuments lists ingested documents with chunk counts.
// GET /api/documents?limit=50&offset=0
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	docs, err := h.docs.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"limit":     limit,
		"offset":    offset,
	})
}

// DeleteDocument removes a document and, by cascade, all its chunks.
// DELETE /api/documents/{id}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.docs.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete document", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
