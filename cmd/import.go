package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/importer"
)

var (
	importDir    string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import lead spreadsheets from a directory",
	Long: `Reads every .csv and .xlsx file in a directory, normalizes each row,
skips leads already stored under the same name and city, assigns a client
code, routes the lead to a seller, and prioritizes it from its comments.

Examples:
  # Import the weekly exports
  import --dir ./planilhas

  # Report what would be imported without writing anything
  import --dir ./planilhas --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, envOptions{Mode: "import", Lock: true, Sellers: true})
		if err != nil {
			return err
		}
		defer env.Close()

		p := importer.New(env.Store,
			importer.WithMatcher(env.Matcher),
			importer.WithScorer(env.Scorer),
			importer.WithGeocoder(env.Geocoder),
			importer.WithClientCodeStart(cfg.Import.ClientCodeStart),
			importer.WithMaxCommentColumns(cfg.Import.MaxCommentColumns),
			importer.WithDryRun(importDryRun),
		)

		stats, err := p.Run(ctx, importDir)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		formatImportStats(cmd.OutOrStdout(), stats, importDryRun)
		return nil
	},
}

// formatImportStats writes the run counters to w.
func formatImportStats(out io.Writer, s importer.Stats, dryRun bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if dryRun {
		_, _ = fmt.Fprintln(w, "Dry run: nothing was written.")
	}
	_, _ = fmt.Fprintf(w, "Files:\t%d\n", s.Files)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "Created:\t%d\n", s.Created)
	_, _ = fmt.Fprintf(w, "  Assigned:\t%d\n", s.Assigned)
	_, _ = fmt.Fprintf(w, "  Unresolved:\t%d\n", s.Unresolved)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%d\n", s.Duplicates)
	_, _ = fmt.Fprintf(w, "Invalid:\t%d\n", s.Invalid)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	if s.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "Skipped files:\t%d\n", s.Skipped)
	}
	_ = w.Flush()
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory containing lead spreadsheets (required)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "normalize, route, and score without writing")
	_ = importCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(importCmd)
}
