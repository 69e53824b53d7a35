package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
)

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	var codes []string
	var limit int

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one agent task now",
		Long: fmt.Sprintf(`Run an agent synchronously. Tasks: %s.

Without --codes the agent picks its own batch.

Examples:
  metiers run salary_collection --codes M1805
  metiers run trend_monitoring --limit 10`, strings.Join(taskNames(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.orchestrator().RunTask(commandContext(cmd), args[0], primary.TaskParams{Codes: codes, Limit: limit})
			if err != nil {
				return err
			}
			if res.Status == "error" {
				return fmt.Errorf("task %s failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&codes, "codes", nil, "external codes to process (comma-separated)")
	cmd.Flags().IntVar(&limit, "limit", 0, "batch size override")
	return cmd
}

// DetectCmd returns the detect command
func DetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Run one referential change detection cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.orchestrator().Detect(commandContext(cmd))
			return err
		},
	}
}

// RunsCmd returns the runs command
func RunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show detection run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.orchestrator().Runs(commandContext(cmd), limit)
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}

func taskNames() []string {
	return []string{
		primary.TaskSalaryCollection,
		primary.TaskTrendMonitoring,
		primary.TaskCorrection,
		primary.TaskVariantGeneration,
	}
}
