package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the control API and the display websocket.
func NewRouter(h *Handlers, hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/api/load", h.LoadHandler).Methods("POST")
	r.HandleFunc("/api/start", h.StartHandler).Methods("POST")
	r.HandleFunc("/api/stop", h.StopHandler).Methods("POST")
	r.HandleFunc("/api/status", h.StatusHandler).Methods("GET")
	r.HandleFunc("/ws", hub.HandleWS)
	return r
}
