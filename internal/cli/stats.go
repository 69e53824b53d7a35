package cli

import (
	"github.com/spf13/cobra"
)

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show agent counters, record counts and the schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.orchestrator().Stats(commandContext(cmd))
			return err
		},
	}

	cmd.AddCommand(statsResetCmd())
	return cmd
}

func statsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [agent]",
		Short: "Zero the counters of one agent, or all agents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return s.orchestrator().ResetStats(commandContext(cmd), name)
		},
	}
}
