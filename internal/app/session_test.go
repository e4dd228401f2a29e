package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quiz-runner/internal/app"
	"quiz-runner/internal/domain"
	"quiz-runner/internal/infra/memory"
)

func TestPerfectEasyRunSetsNewRecord(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	rec := new(mockRecorder)
	rec.On("SessionStarted", domain.FilterEasy, 10).Return()
	rec.On("AnswerRecorded", false, true).Return()
	rec.On("SessionCompleted", 10, 10, true).Return()

	s := newSession(staticStore(buildPool(12, 5, 5)), kv, app.Options{Recorder: rec})
	require.NoError(t, s.LoadBestScore(ctx))
	require.NoError(t, s.Start(ctx, domain.FilterEasy))

	snap := s.Snapshot()
	require.Equal(t, domain.StateInProgress, snap.State)
	require.Len(t, snap.Questions, 10)
	assert.True(t, snap.TimerActive)
	assert.Equal(t, 30, snap.TimeRemaining)

	for i := 0; i < 10; i++ {
		q := current(t, s)
		assert.Equal(t, domain.DifficultyEasy, q.Difficulty)
		require.NoError(t, s.SubmitAnswer(q.CorrectAnswer))
		require.NoError(t, s.Advance(ctx))
	}

	snap = s.Snapshot()
	assert.Equal(t, domain.StateCompleted, snap.State)
	assert.True(t, snap.Completed)
	assert.Equal(t, 10, snap.Score)
	assert.Equal(t, 10, snap.BestScore)
	assert.True(t, snap.NewRecord)
	assert.Equal(t, 10, snap.CurrentIndex)
	assert.False(t, snap.TimerActive)
	assert.Empty(t, snap.Error)

	stored, ok, _ := kv.Get(ctx, app.BestScoreKey)
	assert.True(t, ok)
	assert.Equal(t, "10", stored)

	rec.AssertExpectations(t)
	rec.AssertNumberOfCalls(t, "AnswerRecorded", 10)
}

func TestSampleHasNoDuplicates(t *testing.T) {
	s := newSession(staticStore(buildPool(10, 8, 6)), memory.NewKVStore(), app.Options{})
	require.NoError(t, s.Start(context.Background(), domain.FilterAll))

	seen := map[string]bool{}
	for _, q := range s.Snapshot().Questions {
		assert.False(t, seen[q.ID], "duplicate question %s", q.ID)
		seen[q.ID] = true
	}
	assert.Len(t, seen, 10)
}

func TestSmallPoolCapsSession(t *testing.T) {
	s := newSession(staticStore(buildPool(10, 0, 3)), memory.NewKVStore(), app.Options{})
	require.NoError(t, s.Start(context.Background(), domain.FilterHard))

	snap := s.Snapshot()
	assert.Equal(t, domain.StateInProgress, snap.State)
	assert.Len(t, snap.Questions, 3)
}

func TestEmptyFilteredPoolErrors(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("LoadFailed", domain.FilterHard).Return()
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{Recorder: rec})

	err := s.Start(context.Background(), domain.FilterHard)
	require.ErrorIs(t, err, domain.ErrLoadFailure)
	require.ErrorIs(t, err, domain.ErrInsufficientQuestions)

	snap := s.Snapshot()
	assert.Equal(t, domain.StateErrored, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.Empty(t, snap.Questions)
	assert.False(t, snap.TimerActive)
	rec.AssertExpectations(t)
}

func TestRetryLoadAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{pool: buildPool(10, 0, 0), broken: true}
	s := newSession(store, memory.NewKVStore(), app.Options{})

	require.ErrorIs(t, s.RetryLoad(ctx), domain.ErrNothingToRetry)

	err := s.Start(ctx, domain.FilterEasy)
	require.ErrorIs(t, err, domain.ErrLoadFailure)
	assert.Equal(t, domain.StateErrored, s.State())

	store.heal()
	require.NoError(t, s.RetryLoad(ctx))
	snap := s.Snapshot()
	assert.Equal(t, domain.StateInProgress, snap.State)
	assert.Equal(t, domain.FilterEasy, snap.DifficultyFilter)
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Questions, 10)

	require.ErrorIs(t, s.RetryLoad(ctx), domain.ErrNothingToRetry)
}

func TestInvalidFilterRejected(t *testing.T) {
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})
	require.ErrorIs(t, s.Start(context.Background(), "extreme"), domain.ErrInvalidDifficulty)
	require.ErrorIs(t, s.SetDifficultyFilter("extreme"), domain.ErrInvalidDifficulty)
	assert.Equal(t, domain.StateIdle, s.State())
}

func TestOperationsBeforeStart(t *testing.T) {
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})

	assert.ErrorIs(t, s.SubmitAnswer("A"), domain.ErrNotInProgress)
	assert.ErrorIs(t, s.Advance(context.Background()), domain.ErrNotInProgress)
	assert.ErrorIs(t, s.Retreat(), domain.ErrNotInProgress)

	ev := s.Tick()
	assert.False(t, ev.Expired)
	assert.Equal(t, domain.StateIdle, s.State())
}

func TestAnswerRules(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})
	require.NoError(t, s.Start(ctx, domain.FilterAll))

	require.ErrorIs(t, s.Advance(ctx), domain.ErrAnswerRequired)
	require.ErrorIs(t, s.SubmitAnswer("Z"), domain.ErrInvalidOption)

	q := current(t, s)
	require.NoError(t, s.SubmitAnswer(q.CorrectAnswer))
	assert.False(t, s.Snapshot().TimerActive, "answering stops the timer")

	before := s.Snapshot()
	require.ErrorIs(t, s.SubmitAnswer(wrongOption(q)), domain.ErrAlreadyAnswered)
	after := s.Snapshot()
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, 1, after.AnsweredCount)
}

func TestRetreatRearmsAndKeepsAnswerLocked(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})
	require.NoError(t, s.Start(ctx, domain.FilterAll))

	require.ErrorIs(t, s.Retreat(), domain.ErrAtFirstQuestion)

	first := current(t, s)
	require.NoError(t, s.SubmitAnswer(first.CorrectAnswer))
	require.NoError(t, s.Advance(ctx))
	for i := 0; i < 5; i++ {
		s.Tick()
	}
	assert.Equal(t, 25, s.Snapshot().TimeRemaining)

	require.NoError(t, s.Retreat())
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, 30, snap.TimeRemaining)
	assert.True(t, snap.TimerActive)
	assert.Equal(t, first.CorrectAnswer, snap.Answers[0])
	require.ErrorIs(t, s.SubmitAnswer(wrongOption(first)), domain.ErrAlreadyAnswered)

	// expiry on an answered question neither overwrites nor auto-answers
	var ev app.TickEvent
	for i := 0; i < 30; i++ {
		ev = s.Tick()
	}
	assert.True(t, ev.Expired)
	assert.False(t, ev.AutoAnswered)
	assert.Equal(t, first.CorrectAnswer, s.Snapshot().Answers[0])
	assert.Equal(t, 0, s.Snapshot().CurrentIndex)
}

func TestTimerExpiryAutoAnswers(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})
	require.NoError(t, s.Start(ctx, domain.FilterAll))

	q := current(t, s)
	for i := 0; i < 29; i++ {
		ev := s.Tick()
		require.False(t, ev.Expired)
		require.Equal(t, 29-i, ev.Remaining)
	}

	ev := s.Tick()
	require.True(t, ev.Expired)
	require.True(t, ev.AutoAnswered)
	assert.Equal(t, 0, ev.Index)
	assert.Contains(t, q.Options, ev.Option)

	snap := s.Snapshot()
	assert.Equal(t, ev.Option, snap.Answers[0])
	assert.False(t, snap.TimerActive)
	assert.Equal(t, 0, snap.TimeRemaining)
	assert.Equal(t, 0, snap.CurrentIndex, "tick does not advance")

	// further ticks are no-ops
	again := s.Tick()
	assert.False(t, again.Expired)
	assert.Equal(t, snap, s.Snapshot())

	require.ErrorIs(t, s.SubmitAnswer(q.CorrectAnswer), domain.ErrAlreadyAnswered)
	require.NoError(t, s.Advance(ctx))
	assert.Equal(t, 30, s.Snapshot().TimeRemaining)
}

func TestBestScoreNeverDecreases(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	s := newSession(staticStore(buildPool(10, 0, 0)), kv, app.Options{SampleSize: 4})

	play := func(correct int) domain.Snapshot {
		require.NoError(t, s.Restart(ctx))
		for i := 0; i < 4; i++ {
			q := current(t, s)
			answer := wrongOption(q)
			if i < correct {
				answer = q.CorrectAnswer
			}
			require.NoError(t, s.SubmitAnswer(answer))
			require.NoError(t, s.Advance(ctx))
		}
		return s.Snapshot()
	}

	first := play(3)
	assert.Equal(t, 3, first.Score)
	assert.True(t, first.NewRecord)

	second := play(1)
	assert.Equal(t, 1, second.Score)
	assert.Equal(t, 3, second.BestScore)
	assert.False(t, second.NewRecord)

	third := play(3)
	assert.False(t, third.NewRecord, "equal score is not a record")

	stored, _, _ := kv.Get(ctx, app.BestScoreKey)
	assert.Equal(t, "3", stored)
}

func TestPersistenceFailureKeepsCompletion(t *testing.T) {
	ctx := context.Background()
	kv := &faultyKV{KVStore: memory.NewKVStore(), failSet: true}
	s := newSession(staticStore(buildPool(10, 0, 0)), kv, app.Options{SampleSize: 2})
	require.NoError(t, s.Start(ctx, domain.FilterAll))

	for i := 0; i < 2; i++ {
		require.NoError(t, s.SubmitAnswer(current(t, s).CorrectAnswer))
		require.NoError(t, s.Advance(ctx))
	}

	snap := s.Snapshot()
	assert.True(t, snap.Completed)
	assert.Equal(t, 2, snap.Score)
	assert.Equal(t, 2, snap.BestScore)
	assert.True(t, snap.NewRecord)
	assert.Contains(t, snap.Error, "disk full")

	_, ok, _ := kv.KVStore.Get(ctx, app.BestScoreKey)
	assert.False(t, ok)
}

func TestUnreadableBestScoreIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewKVStore()
	require.NoError(t, inner.Set(ctx, app.BestScoreKey, "9"))
	kv := &faultyKV{KVStore: inner, failGet: true}

	s := newSession(staticStore(buildPool(10, 0, 0)), kv, app.Options{SampleSize: 1})
	require.Error(t, s.LoadBestScore(ctx))
	require.NoError(t, s.Start(ctx, domain.FilterAll))
	require.NoError(t, s.SubmitAnswer(current(t, s).CorrectAnswer))
	require.NoError(t, s.Advance(ctx))

	snap := s.Snapshot()
	assert.True(t, snap.Completed)
	assert.NotEmpty(t, snap.Error)
	stored, _, _ := inner.Get(ctx, app.BestScoreKey)
	assert.Equal(t, "9", stored)
}

func TestMalformedBestScoreTreatedAsZero(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(ctx, app.BestScoreKey, "lots"))

	s := newSession(staticStore(buildPool(10, 0, 0)), kv, app.Options{SampleSize: 1})
	require.NoError(t, s.LoadBestScore(ctx))
	assert.Equal(t, 0, s.Snapshot().BestScore)

	require.NoError(t, s.Start(ctx, domain.FilterAll))
	require.NoError(t, s.SubmitAnswer(current(t, s).CorrectAnswer))
	require.NoError(t, s.Advance(ctx))

	stored, _, _ := kv.Get(ctx, app.BestScoreKey)
	assert.Equal(t, "1", stored)
}

func TestClearBestScore(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(ctx, app.BestScoreKey, "7"))

	s := newSession(staticStore(buildPool(10, 0, 0)), kv, app.Options{})
	require.NoError(t, s.LoadBestScore(ctx))
	assert.Equal(t, 7, s.Snapshot().BestScore)

	require.NoError(t, s.ClearBestScore(ctx))
	assert.Equal(t, 0, s.Snapshot().BestScore)
	_, ok, _ := kv.Get(ctx, app.BestScoreKey)
	assert.False(t, ok)
}

func TestRestartKeepsFilterAndBest(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 10, 10)), memory.NewKVStore(), app.Options{SampleSize: 1})

	require.NoError(t, s.SetDifficultyFilter(domain.FilterMedium))
	require.NoError(t, s.Start(ctx, domain.FilterMedium))
	require.NoError(t, s.SubmitAnswer(current(t, s).CorrectAnswer))
	require.NoError(t, s.Advance(ctx))
	require.Equal(t, 1, s.Snapshot().BestScore)

	require.NoError(t, s.Restart(ctx))
	snap := s.Snapshot()
	assert.Equal(t, domain.StateInProgress, snap.State)
	assert.Equal(t, domain.FilterMedium, snap.DifficultyFilter)
	assert.Equal(t, domain.DifficultyMedium, snap.Questions[snap.CurrentIndex].Difficulty)
	assert.Equal(t, 1, snap.BestScore)
	assert.Equal(t, 0, snap.Score)
	assert.False(t, snap.NewRecord)
	assert.Empty(t, snap.Answers)
}

func TestSetDifficultyFilterDoesNotTouchRunningSession(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 10, 10)), memory.NewKVStore(), app.Options{SampleSize: 3})
	require.NoError(t, s.Start(ctx, domain.FilterEasy))
	before := s.Snapshot().Questions

	require.NoError(t, s.SetDifficultyFilter(domain.FilterHard))
	snap := s.Snapshot()
	assert.Equal(t, before, snap.Questions)
	assert.Equal(t, domain.FilterHard, snap.DifficultyFilter)

	require.NoError(t, s.Restart(ctx))
	for _, q := range s.Snapshot().Questions {
		assert.Equal(t, domain.DifficultyHard, q.Difficulty)
	}
}

func TestReviewAfterCompletion(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{SampleSize: 2})
	require.NoError(t, s.Start(ctx, domain.FilterAll))
	assert.Nil(t, s.Review())

	require.NoError(t, s.SubmitAnswer(current(t, s).CorrectAnswer))
	require.NoError(t, s.Advance(ctx))
	require.NoError(t, s.SubmitAnswer(wrongOption(current(t, s))))
	require.NoError(t, s.Advance(ctx))

	review := s.Review()
	require.Len(t, review, 2)
	assert.True(t, review[0].Correct)
	assert.True(t, review[1].Answered)
	assert.False(t, review[1].Correct)
	assert.Equal(t, "B", review[1].CorrectAnswer)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})
	updates, cancel := s.Subscribe()
	defer cancel()

	initial := <-updates
	assert.Equal(t, domain.StateIdle, initial.State)

	require.NoError(t, s.Start(ctx, domain.FilterAll))
	var states []domain.State
	for len(updates) > 0 {
		states = append(states, (<-updates).State)
	}
	assert.Equal(t, []domain.State{domain.StateLoading, domain.StateReady, domain.StateInProgress}, states)

	s.Close()
	_, open := <-updates
	assert.False(t, open)
	assert.ErrorIs(t, s.Start(ctx, domain.FilterAll), domain.ErrNotInProgress)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{})
	require.NoError(t, s.Start(context.Background(), domain.FilterAll))

	snap := s.Snapshot()
	snap.Answers[0] = "mutated"
	snap.Questions[0].Options[0] = "mutated"

	fresh := s.Snapshot()
	assert.NotContains(t, fresh.Answers, 0)
	assert.NotEqual(t, "mutated", fresh.Questions[0].Options[0])
}

func TestRecorderSeesAutoAnswers(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("SessionStarted", domain.FilterAll, 1).Return()
	rec.On("AnswerRecorded", true, mock.AnythingOfType("bool")).Return()

	s := newSession(staticStore(buildPool(10, 0, 0)), memory.NewKVStore(), app.Options{SampleSize: 1, QuestionSeconds: 2, Recorder: rec})
	require.NoError(t, s.Start(context.Background(), domain.FilterAll))
	s.Tick()
	s.Tick()

	rec.AssertNumberOfCalls(t, "AnswerRecorded", 1)
	rec.AssertExpectations(t)
}
