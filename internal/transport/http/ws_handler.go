package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-runner/internal/app"
	"quiz-runner/internal/domain"
)

// ConnectionTracker observes websocket lifetimes.
type ConnectionTracker interface {
	ConnectionOpened()
	ConnectionClosed()
}

// SessionConfig describes how each connection's session is built.
type SessionConfig struct {
	Options     app.Options
	SettleDelay time.Duration
	LoadTimeout time.Duration
	Clock       app.Clock
}

// WSHandler hosts one quiz session per websocket connection.
type WSHandler struct {
	store    app.QuestionStore
	kv       app.KVStore
	cfg      SessionConfig
	tracker  ConnectionTracker
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(store app.QuestionStore, kv app.KVStore, cfg SessionConfig, tracker ConnectionTracker, logger zerolog.Logger) *WSHandler {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = app.RealClock{}
	}
	return &WSHandler{
		store:   store,
		kv:      kv,
		cfg:     cfg,
		tracker: tracker,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type difficultyPayload struct {
	Difficulty string `json:"difficulty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type resultPayload struct {
	Score      int                 `json:"score"`
	Total      int                 `json:"total"`
	Percentage int                 `json:"percentage"`
	Remark     string              `json:"remark"`
	BestScore  int                 `json:"bestScore"`
	NewRecord  bool                `json:"newRecord"`
	Review     []domain.ReviewItem `json:"review"`
}

// ServeWS upgrades the request and runs a private quiz session until the client disconnects.
// An optional ?difficulty= query parameter preselects the filter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	opts := h.cfg.Options
	if raw := r.URL.Query().Get("difficulty"); raw != "" {
		filter, err := domain.ParseDifficultyFilter(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Difficulty = filter
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("conn_id", uuid.NewString()).Logger()
	if h.tracker != nil {
		h.tracker.ConnectionOpened()
		defer h.tracker.ConnectionClosed()
	}
	log.Debug().Msg("ws connected")

	opts.Logger = &log
	session := app.NewSession(h.store, app.NewScoreKeeper(h.kv), opts)

	send := make(chan outboundMessage, 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	countdown := app.NewCountdown(session, h.cfg.Clock, app.CountdownOptions{
		SettleDelay:    h.cfg.SettleDelay,
		AdvanceTimeout: h.cfg.LoadTimeout,
		OnTick: func(ev app.TickEvent) {
			push(outboundMessage{Type: "tick", Payload: ev})
		},
	})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write failed")
				// unblock the reader; keep draining so producers never stall
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	if err := session.LoadBestScore(r.Context()); err != nil {
		push(errorMessage(err))
	}

	updates, cancel := session.Subscribe()
	defer cancel()

	go func() {
		defer close(updatesDone)
		completed := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				push(outboundMessage{Type: "state", Payload: snap})
				if snap.Completed && !completed {
					push(outboundMessage{Type: "result", Payload: buildResult(snap, session.Review())})
				}
				completed = snap.Completed
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r.Context(), session, inbound); err != nil {
			push(errorMessage(err))
		}
	}

	close(closeSignals)
	countdown.Close()
	session.Close()
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug().Msg("ws disconnected")
}

func (h *WSHandler) dispatch(ctx context.Context, session *app.Session, msg inboundMessage) error {
	switch msg.Type {
	case "start":
		filter := session.Snapshot().DifficultyFilter
		if len(msg.Payload) > 0 {
			var payload difficultyPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return errBadPayload
			}
			if payload.Difficulty != "" {
				parsed, err := domain.ParseDifficultyFilter(payload.Difficulty)
				if err != nil {
					return err
				}
				filter = parsed
			}
		}
		loadCtx, cancel := context.WithTimeout(ctx, h.cfg.LoadTimeout)
		defer cancel()
		return session.Start(loadCtx, filter)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errBadPayload
		}
		return session.SubmitAnswer(payload.Option)
	case "next":
		return session.Advance(ctx)
	case "previous":
		return session.Retreat()
	case "restart":
		loadCtx, cancel := context.WithTimeout(ctx, h.cfg.LoadTimeout)
		defer cancel()
		return session.Restart(loadCtx)
	case "retry":
		loadCtx, cancel := context.WithTimeout(ctx, h.cfg.LoadTimeout)
		defer cancel()
		return session.RetryLoad(loadCtx)
	case "difficulty":
		var payload difficultyPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errBadPayload
		}
		filter, err := domain.ParseDifficultyFilter(payload.Difficulty)
		if err != nil {
			return err
		}
		return session.SetDifficultyFilter(filter)
	case "clearBestScore":
		return session.ClearBestScore(ctx)
	default:
		return errUnsupported
	}
}

var (
	errBadPayload  = errors.New("invalid payload")
	errUnsupported = errors.New("unsupported message type")
)

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

// errorCode maps errors to stable client-facing codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientQuestions):
		return "insufficient_questions"
	case errors.Is(err, domain.ErrLoadFailure):
		return "load_failure"
	case errors.Is(err, domain.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, domain.ErrAnswerRequired):
		return "answer_required"
	case errors.Is(err, domain.ErrAtFirstQuestion):
		return "at_first_question"
	case errors.Is(err, domain.ErrNotInProgress):
		return "not_in_progress"
	case errors.Is(err, domain.ErrNothingToRetry):
		return "nothing_to_retry"
	case errors.Is(err, domain.ErrInvalidDifficulty):
		return "invalid_difficulty"
	case errors.Is(err, errBadPayload):
		return "bad_payload"
	case errors.Is(err, errUnsupported):
		return "unsupported"
	default:
		return "internal"
	}
}

func buildResult(snap domain.Snapshot, review []domain.ReviewItem) resultPayload {
	total := len(snap.Questions)
	return resultPayload{
		Score:      snap.Score,
		Total:      total,
		Percentage: domain.Percentage(snap.Score, total),
		Remark:     domain.Remark(snap.Score, total),
		BestScore:  snap.BestScore,
		NewRecord:  snap.NewRecord,
		Review:     review,
	}
}
