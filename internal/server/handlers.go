package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dn36772386/qrmatrix/internal/layout"
	"github.com/dn36772386/qrmatrix/internal/segment"
)

// Handlers binds the HTTP API to the session.
type Handlers struct {
	session *Session
}

func NewHandlers(session *Session) *Handlers {
	return &Handlers{session: session}
}

type loadRequest struct {
	Path      string `json:"path"`
	ChunkSize int    `json:"chunkSize"`
}

// LoadHandler processes a file and starts background frame generation.
func (h *Handlers) LoadHandler(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "missing file path", http.StatusBadRequest)
		return
	}
	header, err := h.session.Load(req.Path, req.ChunkSize)
	if err != nil {
		switch {
		case errors.Is(err, segment.ErrFileRead):
			http.Error(w, "file not found or unreadable", http.StatusNotFound)
		case errors.Is(err, layout.ErrGridTooSmall):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(header)
}

// StartHandler begins transmission of the loaded file.
func (h *Handlers) StartHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.StartTransmission(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "transmitting"})
}

// StopHandler cancels a running transmission.
func (h *Handlers) StopHandler(w http.ResponseWriter, r *http.Request) {
	h.session.StopTransmission()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "stopped"})
}

// StatusHandler returns the current session snapshot.
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.session.Status())
}
