package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterDeps holds the handlers mounted by NewRouter. Metrics may be nil.
type RouterDeps struct {
	WS      *WSHandler
	Scores  *ScoreHandler
	Metrics http.Handler
}

// NewRouter wires the websocket endpoint, best-score API, health and metrics.
func NewRouter(d RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	r.HandleFunc("/ws", d.WS.ServeWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/best-score", d.Scores.Get).Methods(http.MethodGet)
	api.HandleFunc("/best-score", d.Scores.Clear).Methods(http.MethodDelete)
	return r
}
