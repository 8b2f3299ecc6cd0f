package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"qsnap-gateway/internal/config"
	"qsnap-gateway/internal/infra/postgres"
)

// NewHistoryCmd prints journaled solve attempts.
func NewHistoryCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [paperId]",
		Short: "Show recent solve attempts from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var paperID int64
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid paper id %q", args[0])
				}
				paperID = id
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			ctx := contextOf(cmd)
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			attempts, err := postgres.NewSolveJournal(pool).Recent(ctx, paperID, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tPAPER\tQUESTION\tOUTCOME\tDURATION\tERROR")
			for _, a := range attempts {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
					a.CreatedAt.Format("2006-01-02 15:04:05"), a.PaperID, a.QuestionID, a.Outcome, a.Duration, a.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum attempts to show")
	return cmd
}
