package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"quiz-runner/internal/app"
)

// ScoreHandler exposes the persisted best score over REST.
type ScoreHandler struct {
	keeper *app.ScoreKeeper
	log    zerolog.Logger
}

func NewScoreHandler(keeper *app.ScoreKeeper, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{keeper: keeper, log: logger}
}

type bestScoreResponse struct {
	BestScore int `json:"bestScore"`
}

func (h *ScoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	best, err := h.keeper.Load(r.Context())
	if err != nil {
		// an unreadable value still reads as zero
		h.log.Warn().Err(err).Msg("load best score")
	}
	writeJSON(w, http.StatusOK, bestScoreResponse{BestScore: best})
}

func (h *ScoreHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.keeper.Clear(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("clear best score")
		writeJSON(w, http.StatusInternalServerError, errorPayload{Code: "internal", Message: "could not clear best score"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
