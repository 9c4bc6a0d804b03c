package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Harvester/internal/config"
	"github.com/shaiso/Harvester/internal/report"
)

func newRunsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs ADDRESS",
		Short: "Show recent runs of an account from the run log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRuns(cmd.Context(), *configPath, args[0], limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs")

	return cmd
}

func showRuns(ctx context.Context, configPath string, address string, limit int, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Report.DSN == "" {
		return errors.New("report: dsn is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := report.NewPool(ctx, cfg.Report.DSN)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer pool.Close()

	outcomes, err := report.NewRunLog(pool).LastRuns(ctx, address, limit)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(out, "no runs recorded for %s\n", address)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN_ID\tRESULT\tSTEPS\tSKIPPED\tDURATION\tFINISHED\tERROR")
	for _, o := range outcomes {
		result := "ok"
		if !o.Success {
			result = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			o.RunID,
			result,
			o.StepsDone,
			o.StepsSkipped,
			o.Duration().Round(time.Second),
			o.FinishedAt.Format("2006-01-02 15:04:05"),
			o.ErrorText(),
		)
	}
	return w.Flush()
}
