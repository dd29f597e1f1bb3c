package analyses

import (
	"encoding/json"
	"net/http"
	"strings"

	"quorum/internal/analysis"
	"quorum/pkg/logger"
)

// Handler exposes analysis runs over HTTP. The surface is deliberately thin:
// submit, poll, cancel.
type Handler struct {
	service *analysis.Service
	log     *logger.Logger
}

// New creates the analyses handler.
func New(service *analysis.Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts the handler routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/analyses", h.handleCollection)
	mux.HandleFunc("/analyses/", h.handleItem)
}

type submitRequest struct {
	Symbol        string   `json:"symbol"`
	CompanyName   string   `json:"company_name"`
	Market        string   `json:"market"`
	AnalysisDate  string   `json:"analysis_date"`
	Analysts      []string `json:"analysts"`
	ResearchDepth int      `json:"research_depth"`
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.service.Submit(r.Context(), analysis.Request{
		Symbol:        req.Symbol,
		CompanyName:   req.CompanyName,
		Market:        req.Market,
		AnalysisDate:  req.AnalysisDate,
		Analysts:      req.Analysts,
		ResearchDepth: req.ResearchDepth,
	})
	if err != nil {
		h.log.Warnf("Analysis submit rejected: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"analysis_id": id})
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, id)
	case http.MethodDelete:
		h.handleCancel(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	progress, ok := h.service.Progress(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	response := map[string]interface{}{
		"progress": progress,
	}
	if result, runErr, done := h.service.Result(id); done {
		if runErr != nil {
			response["error"] = runErr.Error()
		} else {
			response["result"] = result
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if !h.service.Cancel(id) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"analysis_id": id, "status": "cancelling"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
