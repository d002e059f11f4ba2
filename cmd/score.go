package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Re-prioritize stored leads from their comments",
	Long: `Rescans every stored lead and raises its priority when its comments
mention packaging complaints. Priorities are never lowered, so running the
command twice changes nothing the second time.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, envOptions{Mode: "score", Lock: true})
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := scorer.NewRescorer(env.Store, env.Scorer).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "score")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d leads, raised %d, failed %d\n",
			stats.Scanned, stats.Changed, stats.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
