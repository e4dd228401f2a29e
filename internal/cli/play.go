package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-runner/internal/app"
	"quiz-runner/internal/domain"
	"quiz-runner/internal/logging"
)

// NewPlayCmd builds the interactive terminal quiz.
func NewPlayCmd(configPath *string) *cobra.Command {
	var difficulty string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath, difficulty, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "", "difficulty filter: all, easy, medium or hard")
	return cmd
}

func runPlay(ctx context.Context, configPath, difficulty string, in io.Reader, out io.Writer) error {
	d, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer d.Close()

	// log lines would interleave with the game screen
	if d.log.GetLevel() < zerolog.WarnLevel {
		d.log = d.log.Level(zerolog.WarnLevel)
	}
	ctx = logging.IntoContext(ctx, d.log)

	store, err := d.questionStore(ctx)
	if err != nil {
		return err
	}
	kv, err := d.kvStore(ctx)
	if err != nil {
		return err
	}
	opts, err := d.sessionOptions()
	if err != nil {
		return err
	}
	if difficulty != "" {
		if opts.Difficulty, err = domain.ParseDifficultyFilter(difficulty); err != nil {
			return err
		}
	}
	opts.Logger = &d.log

	session := app.NewSession(store, app.NewScoreKeeper(kv), opts)
	defer session.Close()
	term := newTerminal(session, in, out, d.loadTimeout())
	countdown := app.NewCountdown(session, app.RealClock{}, app.CountdownOptions{
		SettleDelay:    d.settleDelay(),
		OnTick:         term.onTick,
		AdvanceTimeout: d.loadTimeout(),
	})
	defer countdown.Close()

	return term.run(ctx)
}

// screenKey identifies what is on screen; a redraw happens only when it changes.
type screenKey struct {
	state    domain.State
	index    int
	answered int
	filter   domain.DifficultyFilter
	best     int
	err      string
}

// terminal renders a session as text screens and maps typed commands onto it.
// Redraws come from both the input loop and session updates (timer expiry),
// serialized by mu.
type terminal struct {
	session     *app.Session
	in          io.Reader
	loadTimeout time.Duration

	mu   sync.Mutex
	out  io.Writer
	last *screenKey
}

func newTerminal(session *app.Session, in io.Reader, out io.Writer, loadTimeout time.Duration) *terminal {
	if loadTimeout <= 0 {
		loadTimeout = 5 * time.Second
	}
	return &terminal{session: session, in: in, out: out, loadTimeout: loadTimeout}
}

// run reads commands until quit, end of input or ctx cancellation.
func (t *terminal) run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if err := t.session.LoadBestScore(ctx); err != nil {
		t.printf("! best score unavailable: %v\n", err)
	}

	updates, cancel := t.session.Subscribe()
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		for range updates {
			t.render()
		}
	}()
	defer func() {
		cancel()
		<-renderDone
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	t.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := t.handle(ctx, strings.TrimSpace(line))
			if err != nil && !errors.Is(err, domain.ErrLoadFailure) {
				t.printf("! %v\n", err)
			}
			if quit {
				t.printf("Bye!\n")
				return nil
			}
			t.render()
		}
	}
}

var errUnknownCommand = errors.New("unknown command, type h for help")

func (t *terminal) handle(ctx context.Context, line string) (bool, error) {
	snap := t.session.Snapshot()
	cmd, arg, _ := strings.Cut(line, " ")

	if n, err := strconv.Atoi(cmd); err == nil {
		q, ok := snap.Current()
		if !ok || snap.State != domain.StateInProgress {
			return false, domain.ErrNotInProgress
		}
		if n < 1 || n > len(q.Options) {
			return false, fmt.Errorf("%w: choose 1-%d", domain.ErrInvalidOption, len(q.Options))
		}
		return false, t.session.SubmitAnswer(q.Options[n-1])
	}

	switch strings.ToLower(cmd) {
	case "", "n":
		switch snap.State {
		case domain.StateInProgress:
			return false, t.session.Advance(ctx)
		case domain.StateCompleted:
			return false, t.load(ctx, t.session.Restart)
		case domain.StateErrored:
			return false, t.load(ctx, t.session.RetryLoad)
		default:
			return false, t.load(ctx, t.start)
		}
	case "s":
		return false, t.load(ctx, t.start)
	case "p":
		return false, t.session.Retreat()
	case "r":
		return false, t.load(ctx, t.session.Restart)
	case "t":
		return false, t.load(ctx, t.session.RetryLoad)
	case "d":
		filter, err := domain.ParseDifficultyFilter(strings.TrimSpace(arg))
		if err != nil {
			return false, err
		}
		return false, t.session.SetDifficultyFilter(filter)
	case "c":
		return false, t.session.ClearBestScore(ctx)
	case "h", "?":
		t.printf("%s\n", helpText)
		return false, nil
	case "q":
		return true, nil
	default:
		return false, errUnknownCommand
	}
}

func (t *terminal) start(ctx context.Context) error {
	return t.session.Start(ctx, t.session.Snapshot().DifficultyFilter)
}

func (t *terminal) load(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.loadTimeout)
	defer cancel()
	return fn(ctx)
}

func (t *terminal) onTick(ev app.TickEvent) {
	switch {
	case ev.AutoAnswered:
		t.printf("Time's up! Selected %q for you.\n", ev.Option)
	case ev.Expired:
		t.printf("Time's up!\n")
	case ev.Remaining == 10 || (ev.Remaining > 0 && ev.Remaining <= 5):
		t.printf("%ds left\n", ev.Remaining)
	}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// render draws the current screen if it differs from the last one drawn.
func (t *terminal) render() {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.session.Snapshot()
	key := screenKey{
		state:    snap.State,
		index:    snap.CurrentIndex,
		answered: snap.AnsweredCount,
		filter:   snap.DifficultyFilter,
		best:     snap.BestScore,
		err:      snap.Error,
	}
	if t.last != nil && *t.last == key {
		return
	}
	t.last = &key

	var b strings.Builder
	switch snap.State {
	case domain.StateIdle:
		writeHome(&b, snap)
	case domain.StateLoading, domain.StateReady:
		b.WriteString("Loading questions...\n")
	case domain.StateErrored:
		fmt.Fprintf(&b, "Could not load questions: %s\n", snap.Error)
		b.WriteString("[t] retry  [d <level>] change difficulty  [q] quit\n")
	case domain.StateInProgress:
		writeQuestion(&b, snap)
	case domain.StateCompleted:
		writeResults(&b, snap, t.session.Review())
	}
	io.WriteString(t.out, b.String())
}

const helpText = `Commands:
  1-9          select an option
  n or Enter   next question (start from the home screen)
  p            previous question
  s            start
  r            restart
  t            retry loading
  d <level>    difficulty: all, easy, medium, hard
  c            clear best score
  q            quit`

func writeHome(b *strings.Builder, snap domain.Snapshot) {
	b.WriteString("\n=== Quiz Runner ===\n")
	fmt.Fprintf(b, "Best score: %d\n", snap.BestScore)
	fmt.Fprintf(b, "Difficulty: %s\n", snap.DifficultyFilter)
	b.WriteString("[s] start  [d <level>] difficulty  [c] clear best score  [h] help  [q] quit\n")
}

func writeQuestion(b *strings.Builder, snap domain.Snapshot) {
	q, ok := snap.Current()
	if !ok {
		return
	}
	fmt.Fprintf(b, "\nQuestion %d/%d  [%s | %s]  %ds\n", snap.CurrentIndex+1, len(snap.Questions), q.Difficulty, q.Category, snap.TimeRemaining)
	fmt.Fprintf(b, "%s\n", q.Prompt)
	answer, answered := snap.Answer(snap.CurrentIndex)
	for i, opt := range q.Options {
		marker := " "
		if answered && opt == answer {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %d) %s\n", marker, i+1, opt)
	}
	if answered {
		fmt.Fprintf(b, "Answered: %s\n", answer)
	}
	fmt.Fprintf(b, "Answered %d of %d  [n] next  [p] previous  [r] restart  [q] quit\n", snap.AnsweredCount, len(snap.Questions))
}

func writeResults(b *strings.Builder, snap domain.Snapshot, review []domain.ReviewItem) {
	total := len(snap.Questions)
	b.WriteString("\n=== Results ===\n")
	fmt.Fprintf(b, "Score: %d/%d (%d%%)\n", snap.Score, total, domain.Percentage(snap.Score, total))
	fmt.Fprintf(b, "%s\n", domain.Remark(snap.Score, total))
	if snap.NewRecord {
		b.WriteString("New high score!\n")
	}
	fmt.Fprintf(b, "Best score: %d\n", snap.BestScore)
	if snap.Error != "" {
		fmt.Fprintf(b, "! best score not saved: %s\n", snap.Error)
	}
	for _, item := range review {
		mark := "x"
		if item.Correct {
			mark = "ok"
		}
		fmt.Fprintf(b, "%2d. [%s] %s\n", item.Index+1, mark, item.Prompt)
		if !item.Correct {
			fmt.Fprintf(b, "      your answer: %s, correct: %s\n", item.Answer, item.CorrectAnswer)
		}
	}
	b.WriteString("[r] play again  [d <level>] difficulty  [q] quit\n")
}
