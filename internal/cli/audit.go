package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
)

// AuditCmd returns the audit command
func AuditCmd() *cobra.Command {
	var filters primary.AuditFilters
	var since, until string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
		Long: `List audit entries, most recent last.

--since and --until take a date (2006-01-02), an RFC 3339 timestamp, or a
duration back from now (24h, 90m).

Examples:
  metiers audit --entity M1805
  metiers audit --kind review --since 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			var err error
			if filters.Since, err = parseTimeFlag(since, now); err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			if filters.Until, err = parseTimeFlag(until, now); err != nil {
				return fmt.Errorf("--until: %w", err)
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.records().Audit(commandContext(cmd), filters)
			return err
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only entries at or after this time")
	cmd.Flags().StringVar(&until, "until", "", "only entries before this time")
	cmd.Flags().StringVar(&filters.EntityID, "entity", "", "filter by entity (external code, change or run id)")
	cmd.Flags().StringVar(&filters.Kind, "kind", "", "filter by kind")
	cmd.Flags().StringVar(&filters.Agent, "agent", "", "filter by agent or actor")
	cmd.Flags().IntVar(&filters.Limit, "limit", 100, "maximum number of entries")
	return cmd
}

// parseTimeFlag accepts a date, an RFC 3339 timestamp or a look-back duration.
func parseTimeFlag(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as date, timestamp or duration", s)
}
