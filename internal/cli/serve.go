package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled agents until interrupted",
		Long: `Start the scheduler: salary collection, trend monitoring, correction,
change detection and pending re-enrichment run at their configured intervals.
SIGINT or SIGTERM stops the scheduler after in-flight jobs finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch := s.container.Orchestrator
			if err := orch.Start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Scheduler started. Next runs:")
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, r := range orch.NextRuns() {
				fmt.Fprintf(w, "  %s\tevery %s\t%s\n", r.JobID, r.Interval, r.NextRun.Local().Format("2006-01-02 15:04"))
			}
			w.Flush()

			<-ctx.Done()
			fmt.Fprintln(out, "Stopping scheduler...")
			orch.Stop()
			return nil
		},
	}
}
