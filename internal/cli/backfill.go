package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/presence-api/internal/service"
)

// BackfillRunner is the part of service.BackfillService the command drives.
type BackfillRunner interface {
	ParseRequest(start, end string, dryRun bool) (service.BackfillRequest, error)
	Run(ctx context.Context, req service.BackfillRequest) (*service.BackfillReport, error)
}

// BackfillSetup opens the resources a run needs. The returned func releases them.
type BackfillSetup func(ctx context.Context) (BackfillRunner, func(), error)

// BackfillOptions holds the command flags.
type BackfillOptions struct {
	Start  string
	End    string
	DryRun bool
}

// NewBackfillCommand creates the backfill command. setup runs only when the command
// executes, so help and flag errors need no database.
func NewBackfillCommand(defaultStart string, setup BackfillSetup) *cobra.Command {
	opts := &BackfillOptions{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Insert missing ABSENT records for past school days",
		Long: `Walk every day from --start to --end (inclusive). On Monday to Friday days that
are not public holidays, every learner without a presence that day gets an ABSENT record
timestamped at the end of the day. Running it twice inserts nothing the second time.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd, opts, setup)
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", defaultStart, "first day to correct (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.End, "end", "", "last day to correct (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be inserted without writing")

	return cmd
}

func runBackfill(cmd *cobra.Command, opts *BackfillOptions, setup BackfillSetup) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := runner.ParseRequest(opts.Start, opts.End, opts.DryRun)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verb := "added"
	if report.DryRun {
		verb = "would be added"
	}
	for _, entry := range report.Entries {
		fmt.Fprintf(out, "absence %s for %s (%s) on %s\n", verb, entry.Name, entry.Matricule, entry.Day)
	}
	fmt.Fprintf(out, "backfill %s..%s done: %d absences %s (%d school days, %d skipped, %d learners)\n",
		report.Start, report.End, report.Inserted, verb, report.DaysScanned, report.DaysSkipped, report.Learners)
	return nil
}
