package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quiz-runner/internal/domain"
	"quiz-runner/internal/infra/memory"
	pginfra "quiz-runner/internal/infra/postgres"
	redisinfra "quiz-runner/internal/infra/redis"
	"quiz-runner/internal/logging"
)

// NewImportCmd loads a question bank file (or the bundled bank) into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import [bank.json]",
		Short: "Upsert a question bank into Postgres; without a file the bundled bank is used",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runImport(cmd.Context(), *configPath, path)
		},
	}
}

func runImport(ctx context.Context, configPath, path string) error {
	d, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer d.Close()
	ctx = logging.IntoContext(ctx, d.log)

	var loader memory.QuestionLoader = memory.EmbeddedQuestionLoader{}
	if path != "" {
		loader = memory.NewFileQuestionLoader(path)
	}
	questions, err := loader.LoadQuestions(ctx)
	if err != nil {
		return err
	}

	if err := runMigrationsWithConfig(ctx, d.cfg); err != nil {
		return err
	}
	pool, err := d.postgres(ctx)
	if err != nil {
		return err
	}
	n, err := pginfra.NewImporter(pool).Import(ctx, questions)
	if err != nil {
		return err
	}

	// drop the shared pool cache so running servers pick up the new bank
	if d.cfg.Redis.Addr != "" {
		client, err := d.redis()
		if err != nil {
			return err
		}
		if err := redisinfra.NewQuestionRepository(client, nil, 0).Invalidate(ctx); err != nil {
			d.log.Warn().Err(err).Msg("invalidate question cache")
		}
	}

	d.log.Info().Int("questions", n).Interface("by_difficulty", countByDifficulty(questions)).Msg("question bank imported")
	fmt.Printf("imported %d questions\n", n)
	return nil
}

func countByDifficulty(questions []domain.Question) map[domain.Difficulty]int {
	counts := make(map[domain.Difficulty]int, 3)
	for _, q := range questions {
		counts[q.Difficulty]++
	}
	return counts
}
