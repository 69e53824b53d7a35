package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/config"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var force, seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and initialize the database",
		Long: `Write config.yaml with defaults and create the metiers database with the
required schema.

Examples:
  metiers init
  metiers init --seed
  metiers --config ./dev.yaml init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}

			_, statErr := os.Stat(path)
			switch {
			case statErr == nil && !force:
				fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s (use --force to overwrite)\n", path)
			case statErr == nil || errors.Is(statErr, fs.ErrNotExist):
				if err := config.Save(path, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written to %s\n", path)
			default:
				return fmt.Errorf("failed to stat config: %w", statErr)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			c, err := wire.New(cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Database initialized at %s\n", cfg.Database.Path)

			if seed {
				if err := db.SeedFixtures(c.DB); err != nil {
					return fmt.Errorf("failed to seed database: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Development fixtures loaded")
			}

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
			fmt.Fprintln(cmd.OutOrStdout(), "  metiers detect")
			fmt.Fprintln(cmd.OutOrStdout(), "  metiers record list")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&seed, "seed", false, "load development fixtures")
	return cmd
}
