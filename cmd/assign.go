package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/territory"
)

var (
	assignGeocode  bool
	assignPageSize int
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Route unassigned leads to sellers",
	Long: `Loads the territory file, syncs its sellers, and assigns every lead
that has no seller yet. Existing assignments are never changed.

With --geocode, leads without coordinates are geocoded from their postal
code when radius territories exist. Geocoding is rate limited to one
request per second.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, envOptions{Mode: "assign", Lock: true, Sellers: true, RequireSellers: true})
		if err != nil {
			return err
		}
		defer env.Close()

		opts := []territory.AssignerOption{territory.WithPageSize(assignPageSize)}
		if assignGeocode {
			opts = append(opts, territory.WithGeocoder(env.Geocoder))
		}

		stats, err := territory.NewAssigner(env.Store, env.Matcher, opts...).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "assign")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d leads: %d assigned, %d unmatched, %d geocoded, %d failed\n",
			stats.Scanned, stats.Assigned, stats.Unmatched, stats.Geocoded, stats.Failed)
		return nil
	},
}

func init() {
	assignCmd.Flags().BoolVar(&assignGeocode, "geocode", false, "geocode leads without coordinates for radius territories")
	assignCmd.Flags().IntVar(&assignPageSize, "page-size", 200, "leads read per query")
	rootCmd.AddCommand(assignCmd)
}
