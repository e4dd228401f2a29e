package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-runner/internal/domain"
)

const (
	// DefaultSampleSize is the number of questions drawn per session.
	DefaultSampleSize = 10
	// DefaultQuestionSeconds is the per-question time limit.
	DefaultQuestionSeconds = 30
)

// Options tunes a Session. Zero values fall back to defaults.
type Options struct {
	SampleSize      int
	QuestionSeconds int
	Difficulty      domain.DifficultyFilter
	Rand            Rand
	Logger          *zerolog.Logger
	Recorder        Recorder
}

// TickEvent describes the outcome of one timer tick.
type TickEvent struct {
	Index        int    `json:"index"`
	Remaining    int    `json:"remaining"`
	Expired      bool   `json:"expired"`
	AutoAnswered bool   `json:"autoAnswered"`
	Option       string `json:"option,omitempty"`

	epoch uint64
}

// Session is the quiz state machine for one client context. Methods are safe to call
// from the presentation goroutine and the timer goroutine concurrently.
type Session struct {
	store           QuestionStore
	keeper          *ScoreKeeper
	rnd             Rand
	log             zerolog.Logger
	rec             Recorder
	sampleSize      int
	questionSeconds int

	mu          sync.Mutex
	timer       Timer
	state       domain.State
	filter      domain.DifficultyFilter
	questions   []domain.Question
	current     int
	answers     map[int]string
	remaining   int
	timerActive bool
	score       int
	best        int
	newRecord   bool
	lastErr     error
	epoch       uint64
	timerGen    uint64
	closed      bool
	subscribers map[chan domain.Snapshot]struct{}
}

func NewSession(store QuestionStore, keeper *ScoreKeeper, opts Options) *Session {
	s := &Session{
		store:           store,
		keeper:          keeper,
		rnd:             opts.Rand,
		log:             zerolog.Nop(),
		rec:             opts.Recorder,
		sampleSize:      opts.SampleSize,
		questionSeconds: opts.QuestionSeconds,
		timer:           nopTimer{},
		state:           domain.StateIdle,
		filter:          opts.Difficulty,
		answers:         make(map[int]string),
		subscribers:     make(map[chan domain.Snapshot]struct{}),
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "session").Logger()
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.sampleSize <= 0 {
		s.sampleSize = DefaultSampleSize
	}
	if s.questionSeconds <= 0 {
		s.questionSeconds = DefaultQuestionSeconds
	}
	if !s.filter.Valid() {
		s.filter = domain.FilterAll
	}
	s.remaining = s.questionSeconds
	return s
}

// LoadBestScore reads the persisted best score once at startup.
// A malformed stored value is logged and treated as 0.
func (s *Session) LoadBestScore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	best, err := s.keeper.Load(ctx)
	s.best = best
	s.broadcastLocked()
	if err != nil {
		s.log.Warn().Err(err).Msg("best score unavailable, starting from 0")
		if errors.Is(err, errMalformedScore) {
			return nil
		}
		return err
	}
	return nil
}

// Start samples a new question set for filter and begins the first question.
func (s *Session) Start(ctx context.Context, filter domain.DifficultyFilter) error {
	if !filter.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, filter)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrNotInProgress
	}
	s.epoch++
	epoch := s.epoch
	s.filter = filter
	s.disarmLocked()
	s.state = domain.StateLoading
	s.lastErr = nil
	s.broadcastLocked()
	s.mu.Unlock()

	// the store may be slow (database, network); the lock is not held while loading
	pool, loadErr := s.store.GetAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		// superseded by a newer start or teardown
		return nil
	}

	var questions []domain.Question
	err := loadErr
	if err == nil {
		questions, err = Sample(s.rnd, pool, filter, s.sampleSize)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrLoadFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrLoadFailure, err)
		}
		s.questions = nil
		s.answers = make(map[int]string)
		s.current = 0
		s.state = domain.StateErrored
		s.lastErr = err
		s.rec.LoadFailed(filter)
		s.log.Warn().Err(err).Str("difficulty", string(filter)).Msg("question load failed")
		s.broadcastLocked()
		return err
	}

	if len(questions) < s.sampleSize {
		s.log.Warn().
			Str("difficulty", string(filter)).
			Int("wanted", s.sampleSize).
			Int("available", len(questions)).
			Msg("question pool smaller than sample size, session capped")
	}

	s.questions = questions
	s.current = 0
	s.answers = make(map[int]string, len(questions))
	s.score = 0
	s.newRecord = false
	s.state = domain.StateReady
	s.broadcastLocked()

	s.armLocked()
	s.state = domain.StateInProgress
	s.rec.SessionStarted(filter, len(questions))
	s.log.Debug().Str("difficulty", string(filter)).Int("questions", len(questions)).Msg("session started")
	s.broadcastLocked()
	return nil
}

// Restart starts a fresh session with the current difficulty filter. The best score is kept.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	return s.Start(ctx, filter)
}

// RetryLoad repeats sampling after a failed load without touching the filter.
func (s *Session) RetryLoad(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.StateErrored {
		s.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	filter := s.filter
	s.mu.Unlock()
	return s.Start(ctx, filter)
}

// SetDifficultyFilter stores the filter used by the next Start, Restart or RetryLoad.
func (s *Session) SetDifficultyFilter(filter domain.DifficultyFilter) error {
	if !filter.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	s.broadcastLocked()
	return nil
}

// SubmitAnswer records option for the current question and stops its timer.
func (s *Session) SubmitAnswer(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateInProgress {
		return domain.ErrNotInProgress
	}
	if _, answered := s.answers[s.current]; answered {
		return domain.ErrAlreadyAnswered
	}
	q := s.questions[s.current]
	if !q.HasOption(option) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidOption, option)
	}

	s.answers[s.current] = option
	s.disarmLocked()
	s.rec.AnswerRecorded(false, option == q.CorrectAnswer)
	s.broadcastLocked()
	return nil
}

// Advance moves to the next question, or completes the session on the last one.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(ctx)
}

// advanceAt advances only if the session is still open and on the given start and question.
func (s *Session) advanceAt(ctx context.Context, epoch uint64, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch || s.state != domain.StateInProgress || s.current != index {
		return nil
	}
	return s.advanceLocked(ctx)
}

func (s *Session) advanceLocked(ctx context.Context) error {
	if s.state != domain.StateInProgress {
		return domain.ErrNotInProgress
	}
	if _, answered := s.answers[s.current]; !answered {
		return domain.ErrAnswerRequired
	}

	if s.current < len(s.questions)-1 {
		s.current++
		s.armLocked()
		s.broadcastLocked()
		return nil
	}

	s.completeLocked(ctx)
	return nil
}

func (s *Session) completeLocked(ctx context.Context) {
	s.disarmLocked()
	s.score = FinalizeScore(s.questions, s.answers)
	s.current = len(s.questions)
	s.state = domain.StateCompleted

	best, isNew, err := s.keeper.Update(ctx, s.score)
	if err != nil {
		// completion stands; keep the best score in memory and report the failure
		s.log.Warn().Err(err).Int("score", s.score).Msg("persist best score failed")
		s.lastErr = err
		isNew = s.score > s.best
		if isNew {
			best = s.score
		} else {
			best = s.best
		}
	}
	s.best = best
	s.newRecord = isNew
	s.rec.SessionCompleted(s.score, len(s.questions), isNew)
	s.log.Info().
		Int("score", s.score).
		Int("total", len(s.questions)).
		Int("best", s.best).
		Bool("new_record", isNew).
		Msg("session completed")
	s.broadcastLocked()
}

// Retreat moves back one question and rearms the timer. The earlier answer stays locked.
func (s *Session) Retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateInProgress {
		return domain.ErrNotInProgress
	}
	if s.current == 0 {
		return domain.ErrAtFirstQuestion
	}
	s.current--
	s.armLocked()
	s.broadcastLocked()
	return nil
}

// Tick advances the countdown by one second. It is a no-op while the timer is disarmed.
// On expiry an unanswered question receives a random option; advancing is left to the caller.
func (s *Session) Tick() TickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked()
}

// tickGen ticks only if gen is still the armed generation.
func (s *Session) tickGen(gen uint64) (TickEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.timerGen || !s.timerActive {
		return TickEvent{}, false
	}
	return s.tickLocked(), true
}

func (s *Session) tickLocked() TickEvent {
	if !s.timerActive || s.state != domain.StateInProgress {
		return TickEvent{Index: s.current, Remaining: s.remaining, epoch: s.epoch}
	}
	if s.remaining > 0 {
		s.remaining--
	}
	ev := TickEvent{Index: s.current, Remaining: s.remaining, epoch: s.epoch}
	if s.remaining == 0 {
		ev.Expired = true
		if _, answered := s.answers[s.current]; !answered {
			q := s.questions[s.current]
			option := q.Options[s.rnd.Intn(len(q.Options))]
			s.answers[s.current] = option
			ev.AutoAnswered = true
			ev.Option = option
			s.rec.AnswerRecorded(true, option == q.CorrectAnswer)
			s.log.Debug().Int("index", s.current).Msg("time expired, answer auto-selected")
		}
		s.disarmLocked()
	}
	s.broadcastLocked()
	return ev
}

// ClearBestScore resets the persisted best score to zero.
func (s *Session) ClearBestScore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.keeper.Clear(ctx); err != nil {
		return err
	}
	s.best = 0
	s.newRecord = false
	s.broadcastLocked()
	return nil
}

// State returns the current lifecycle phase.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a deep copy of the presentation-facing state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Review summarizes every question of a completed session; nil otherwise.
func (s *Session) Review() []domain.ReviewItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateCompleted {
		return nil
	}
	items := make([]domain.ReviewItem, len(s.questions))
	for i, q := range s.questions {
		answer, answered := s.answers[i]
		items[i] = domain.ReviewItem{
			Index:         i,
			Prompt:        q.Prompt,
			Category:      q.Category,
			Difficulty:    q.Difficulty,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			Answered:      answered,
			Correct:       answered && answer == q.CorrectAnswer,
		}
	}
	return items
}

// Subscribe returns a channel that receives a snapshot after every state change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close tears the session down: the timer is disarmed and subscribers are released.
// Work scheduled from an earlier tick, such as a pending auto-advance, is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	s.disarmLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) attachTimer(t Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer.Disarm()
	s.timer = t
	if s.timerActive {
		t.Arm(s.timerGen)
	}
}

func (s *Session) armLocked() {
	s.remaining = s.questionSeconds
	s.timerActive = true
	s.timerGen++
	s.timer.Arm(s.timerGen)
}

func (s *Session) disarmLocked() {
	s.timerActive = false
	s.timer.Disarm()
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: replace the oldest pending snapshot with the latest
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	questions := make([]domain.Question, len(s.questions))
	for i, q := range s.questions {
		questions[i] = q.Clone()
	}
	answers := make(map[int]string, len(s.answers))
	for i, a := range s.answers {
		answers[i] = a
	}

	snap := domain.Snapshot{
		State:            s.state,
		Questions:        questions,
		CurrentIndex:     s.current,
		Answers:          answers,
		AnsweredCount:    len(answers),
		BestScore:        s.best,
		NewRecord:        s.newRecord,
		Completed:        s.state == domain.StateCompleted,
		Loading:          s.state == domain.StateLoading,
		TimeRemaining:    s.remaining,
		TimerActive:      s.timerActive,
		DifficultyFilter: s.filter,
	}
	if snap.Completed {
		snap.Score = s.score
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}
