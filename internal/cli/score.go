package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"quiz-runner/internal/app"
)

// NewScoreCmd groups best-score maintenance commands.
func NewScoreCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Inspect or reset the persisted best score",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the best score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), *configPath, cmd.OutOrStdout(), false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear the best score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), *configPath, cmd.OutOrStdout(), true)
		},
	})
	return cmd
}

func runScore(ctx context.Context, configPath string, out io.Writer, reset bool) error {
	d, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer d.Close()

	kv, err := d.kvStore(ctx)
	if err != nil {
		return err
	}
	keeper := app.NewScoreKeeper(kv)

	if reset {
		if err := keeper.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "best score cleared")
		return nil
	}

	best, err := keeper.Load(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("best score unreadable")
	}
	fmt.Fprintf(out, "best score: %d\n", best)
	return nil
}
