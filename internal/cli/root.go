package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	cliadapter "github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/cli"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/config"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ctxutil"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/wire"
)

// Global flags shared by every command.
var (
	configPath   string
	outputFormat string
	actorName    string
)

// BindGlobalFlags registers the persistent flags on the root command.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.metiers/config.yaml or $METIERS_CONFIG)")
	root.PersistentFlags().StringVarP(&outputFormat, "format", "o", "", "output format: table or json (default table on a terminal)")
	root.PersistentFlags().StringVar(&actorName, "as", "", "actor recorded in the audit trail")
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func resolveFormat() (string, error) {
	if outputFormat == "" {
		return cliadapter.DefaultFormat(), nil
	}
	return cliadapter.ParseFormat(outputFormat)
}

// session is what a command needs to talk to the services.
type session struct {
	container *wire.Container
	out       io.Writer
	format    string
}

func (s *session) Close() {
	if err := s.container.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: close: %v\n", err)
	}
}

func (s *session) records() *cliadapter.RecordAdapter {
	return s.container.RecordAdapter(s.out, s.format)
}

func (s *session) orchestrator() *cliadapter.OrchestratorAdapter {
	return s.container.OrchestratorAdapter(s.out, s.format)
}

// openSession loads config and wires the services for one command.
func openSession(cmd *cobra.Command) (*session, error) {
	format, err := resolveFormat()
	if err != nil {
		return nil, err
	}
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c, err := wire.New(cfg)
	if err != nil {
		return nil, err
	}
	return &session{container: c, out: cmd.OutOrStdout(), format: format}, nil
}

// commandContext tags the command context with the --as actor.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if actorName != "" {
		ctx = ctxutil.WithActorID(ctx, actorName)
	}
	return ctx
}
