package cli

import (
	"github.com/spf13/cobra"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
)

// ChangeCmd returns the change command
func ChangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Review referential changes found by detection",
	}

	cmd.AddCommand(changeListCmd())
	cmd.AddCommand(changeReviewCmd())
	return cmd
}

func changeListCmd() *cobra.Command {
	var filters primary.ChangeFilters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List change records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.records().Changes(commandContext(cmd), filters)
			return err
		},
	}

	cmd.Flags().StringVar(&filters.ExternalCode, "code", "", "filter by external code")
	cmd.Flags().BoolVar(&filters.UnreviewedOnly, "unreviewed", false, "only changes not yet reviewed")
	cmd.Flags().IntVar(&filters.Limit, "limit", 50, "maximum number of changes")
	return cmd
}

func changeReviewCmd() *cobra.Command {
	var req primary.ReviewChangeRequest

	cmd := &cobra.Command{
		Use:   "review <change-id>",
		Short: "Acknowledge a change or re-enrich the affected record",
		Long: `Mark a change record as reviewed.

  --action acknowledge   clear the record's pending flag
  --action re-enrich     run correction and variants on the record`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			req.ChangeID = args[0]
			_, err = s.records().ReviewChange(commandContext(cmd), req)
			return err
		},
	}

	cmd.Flags().StringVar(&req.Reviewer, "reviewer", "", "reviewer name (required)")
	cmd.Flags().StringVar(&req.Action, "action", "acknowledge", "acknowledge or re-enrich")
	cmd.MarkFlagRequired("reviewer")
	return cmd
}
