package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/cli"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "metiers",
		Short:   "Metiers - agents maintaining the occupation referential",
		Version: version.String(),
		Long: `metiers keeps a database of occupation records in sync with the national
referential. Agents collect salaries, refresh outlooks, rewrite descriptions
and generate gendered titles; change detection flags records whose source
moved; reviewers publish the result.`,
		SilenceUsage: true,
	}
	cli.BindGlobalFlags(rootCmd)

	// Setup
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	// Agents and detection
	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.DetectCmd())
	rootCmd.AddCommand(cli.RunsCmd())
	rootCmd.AddCommand(cli.StatsCmd())

	// Records and review
	rootCmd.AddCommand(cli.RecordCmd())
	rootCmd.AddCommand(cli.ChangeCmd())
	rootCmd.AddCommand(cli.AuditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
