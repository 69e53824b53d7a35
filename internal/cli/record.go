package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
)

// RecordCmd returns the record command
func RecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect and move occupation records through the lifecycle",
		Long: `Occupation records go draft → enriched → pending_validation → published
→ archived. Enrichment steps move a record forward; review publishes or sends
it back to draft.`,
	}

	cmd.AddCommand(recordListCmd())
	cmd.AddCommand(recordShowCmd())
	cmd.AddCommand(recordProcessCmd())
	cmd.AddCommand(recordReviewCmd())
	cmd.AddCommand(recordArchiveCmd())
	return cmd
}

func recordListCmd() *cobra.Command {
	var filters primary.RecordFilters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.records().List(commandContext(cmd), filters)
			return err
		},
	}

	cmd.Flags().StringVarP(&filters.Status, "status", "s", "", "filter by status")
	cmd.Flags().BoolVar(&filters.PendingOnly, "pending", false, "only records flagged by change detection")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "maximum number of records")
	return cmd
}

func recordShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.records().Show(commandContext(cmd), args[0])
			return err
		},
	}
}

func recordProcessCmd() *cobra.Command {
	var steps []string

	cmd := &cobra.Command{
		Use:   "process <code>",
		Short: "Run enrichment steps on one record",
		Long: `Run correction, variants and validation, in that order, on one record.
A failing step is reported and the remaining steps still run.

Examples:
  metiers record process M1805
  metiers record process M1805 --steps correction,variants`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.records().Process(commandContext(cmd), args[0], steps)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&steps, "steps", nil, "steps to run (default correction,variants,validation)")
	return cmd
}

func recordReviewCmd() *cobra.Command {
	var reviewer, comment string
	var approve, reject bool

	cmd := &cobra.Command{
		Use:   "review <code>",
		Short: "Approve or reject a record awaiting validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve == reject {
				return errors.New("exactly one of --approve or --reject is required")
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.records().Review(commandContext(cmd), primary.ReviewRequest{
				ExternalCode: args[0],
				Reviewer:     reviewer,
				Approved:     approve,
				Comment:      comment,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer name (required)")
	cmd.Flags().BoolVar(&approve, "approve", false, "publish the record")
	cmd.Flags().BoolVar(&reject, "reject", false, "send the record back to draft")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "review comment")
	cmd.MarkFlagRequired("reviewer")
	return cmd
}

func recordArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <code>",
		Short: "Archive a published record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.records().Archive(commandContext(cmd), args[0])
		},
	}
}
