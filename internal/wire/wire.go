// Package wire builds the metiers object graph from configuration.
// Everything is constructed once in New and torn down in Close.
package wire

import (
	"database/sql"
	"fmt"
	"io"

	cliadapter "github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/cli"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/llm"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/referential"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/salary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/sqlite"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/agent"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/app"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/config"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// Container holds the wired services.
type Container struct {
	Config *config.Config
	Log    *logbook.Logbook
	DB     *sql.DB

	Orchestrator primary.OrchestratorService
	Detection    primary.DetectionService
	Records      primary.RecordService
}

// New opens the database and wires every service.
func New(cfg *config.Config) (*Container, error) {
	log, err := logbook.Open(cfg.Log.File)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		log.Close()
		return nil, err
	}

	c := &Container{Config: cfg, Log: log, DB: database}
	if err := c.build(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build() error {
	cfg := c.Config

	// Secondary adapters
	occupations := sqlite.NewOccupationRepository(c.DB)
	snapshots := sqlite.NewSnapshotRepository(c.DB)
	changes := sqlite.NewChangeRepository(c.DB)
	audit := sqlite.NewAuditRepository(c.DB)
	runs := sqlite.NewDetectionRunRepository(c.DB)
	validations := sqlite.NewValidationRepository(c.DB)
	writer := sqlite.NewDetectionWriter(c.DB)

	refClient := referential.NewClient(cfg.Referential.BaseURL, cfg.Referential.Token, cfg.Referential.Timeout)
	gen := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)

	sources := make([]secondary.SalarySource, 0, len(cfg.Salary.Sources))
	for _, s := range cfg.Salary.Sources {
		src, err := salary.NewSource(s.Name, s.Kind, s.BaseURL, s.APIKey, cfg.Salary.Timeout)
		if err != nil {
			return fmt.Errorf("salary source %s: %w", s.Name, err)
		}
		sources = append(sources, src)
	}

	retrier := agent.NewRetrier(agent.RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	}, c.Log.With("retry"))

	// Agents
	batch := cfg.Agents.BatchLimit
	agents := []*agent.Agent{
		agent.New(agent.NewSalaryCollector(occupations, sources, audit, retrier, agent.SalaryCollectorConfig{
			Weights:       cfg.SourceWeights(),
			MaxConcurrent: cfg.Salary.MaxConcurrent,
			BatchLimit:    batch,
			StaleAfter:    cfg.Schedule.SalaryCollection,
		}, c.Log), audit, c.Log),
		agent.New(agent.NewTrendMonitor(occupations, gen, retrier, cfg.LLM.MaxTokens, cfg.Agents.OutlookMaxAge, batch, c.Log), audit, c.Log),
		agent.New(agent.NewCorrector(occupations, snapshots, audit, gen, retrier, cfg.LLM.MaxTokens, batch, c.Log), audit, c.Log),
		agent.New(agent.NewVariantGenerator(occupations, audit, gen, retrier, cfg.LLM.MaxTokens, batch, c.Log), audit, c.Log),
	}

	// Services
	detector := app.NewDetectionService(refClient, snapshots, writer, runs, audit, retrier, app.DetectionConfig{
		PageSize:       cfg.Referential.PageSize,
		MaxPages:       cfg.Referential.MaxPages,
		VolatileFields: cfg.Referential.VolatileFields,
	}, c.Log)

	c.Detection = detector
	c.Records = app.NewRecordService(occupations, changes, audit)
	c.Orchestrator = app.NewOrchestratorService(app.OrchestratorDeps{
		Agents:      agents,
		Occupations: occupations,
		Changes:     changes,
		Validations: validations,
		Runs:        runs,
		Audit:       audit,
		Detector:    detector,
	}, app.ScheduleConfig{
		SalaryCollection:    cfg.Schedule.SalaryCollection,
		TrendMonitoring:     cfg.Schedule.TrendMonitoring,
		Correction:          cfg.Schedule.Correction,
		ChangeDetection:     cfg.Schedule.ChangeDetection,
		PendingReenrichment: cfg.Schedule.PendingReenrichment,
	}, batch, c.Log)
	return nil
}

// RecordAdapter returns a CLI adapter for record commands.
func (c *Container) RecordAdapter(out io.Writer, format string) *cliadapter.RecordAdapter {
	return cliadapter.NewRecordAdapter(c.Records, c.Orchestrator, out, format)
}

// OrchestratorAdapter returns a CLI adapter for agent and detection commands.
func (c *Container) OrchestratorAdapter(out io.Writer, format string) *cliadapter.OrchestratorAdapter {
	return cliadapter.NewOrchestratorAdapter(c.Orchestrator, c.Detection, out, format)
}

// Close stops the orchestrator and releases the database and log file.
func (c *Container) Close() error {
	if c.Orchestrator != nil {
		c.Orchestrator.Stop()
	}
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	if lerr := c.Log.Close(); err == nil {
		err = lerr
	}
	return err
}
