package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"quiz-runner/internal/domain"
)

// Collector exposes session activity as Prometheus metrics. It implements app.Recorder.
type Collector struct {
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	loadFailures      *prometheus.CounterVec
	answers           *prometheus.CounterVec
	scores            prometheus.Histogram
	connections       prometheus.Gauge
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_started_total",
			Help:      "Quiz sessions that finished loading and began the first question.",
		}, []string{"difficulty"}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_completed_total",
			Help:      "Quiz sessions scored after the last question.",
		}, []string{"new_record"}),
		loadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "load_failures_total",
			Help:      "Session starts that ended in the errored state.",
		}, []string{"difficulty"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "answers_total",
			Help:      "Recorded answers by origin and correctness.",
		}, []string{"origin", "correct"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiz",
			Name:      "score_percent",
			Help:      "Final score as a percentage of questions asked.",
			Buckets:   []float64{20, 40, 60, 80, 100},
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiz",
			Name:      "ws_connections",
			Help:      "Open websocket connections, one session each.",
		}),
	}
	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsCompleted,
		c.loadFailures,
		c.answers,
		c.scores,
		c.connections,
	)
	return c
}

func (c *Collector) SessionStarted(filter domain.DifficultyFilter, _ int) {
	c.sessionsStarted.WithLabelValues(string(filter)).Inc()
}

func (c *Collector) LoadFailed(filter domain.DifficultyFilter) {
	c.loadFailures.WithLabelValues(string(filter)).Inc()
}

func (c *Collector) AnswerRecorded(auto, correct bool) {
	origin := "player"
	if auto {
		origin = "timeout"
	}
	c.answers.WithLabelValues(origin, strconv.FormatBool(correct)).Inc()
}

func (c *Collector) SessionCompleted(score, total int, newRecord bool) {
	c.sessionsCompleted.WithLabelValues(strconv.FormatBool(newRecord)).Inc()
	c.scores.Observe(float64(domain.Percentage(score, total)))
}

// ConnectionOpened and ConnectionClosed track live websocket sessions.
func (c *Collector) ConnectionOpened() { c.connections.Inc() }

func (c *Collector) ConnectionClosed() { c.connections.Dec() }
