package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func newTestCollector(repo secondary.OccupationRepository, sources ...secondary.SalarySource) *SalaryCollector {
	r, _ := testRetrier(1)
	return NewSalaryCollector(repo, sources, nil, r, SalaryCollectorConfig{
		Weights:       map[string]float64{"insee": 1.0, "apec": 0.5, "jobboard": 0.5},
		MaxConcurrent: 2,
		BatchLimit:    10,
	}, nil)
}

func TestSalaryCollector_AggregatesByWeight(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805", Status: occupation.StatusEnriched})
	insee := &mockSalarySource{name: "insee", data: map[aggregate.Level]aggregate.Value{
		aggregate.LevelJunior: {Min: aggregate.Int(30000), Median: aggregate.Int(32000)},
	}}
	apec := &mockSalarySource{name: "apec", data: map[aggregate.Level]aggregate.Value{
		aggregate.LevelJunior: {Min: aggregate.Int(27000)},
	}}
	c := newTestCollector(repo, insee, apec)

	out, err := c.Execute(context.Background(), Params{Codes: []string{"M1805"}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out.Items != 1 {
		t.Errorf("expected 1 updated record, got %d", out.Items)
	}

	junior := repo.get("M1805").Salaries[aggregate.LevelJunior]
	if junior.Min == nil || *junior.Min != 29000 {
		t.Errorf("expected weighted min 29000, got %v", junior.Min)
	}
	if junior.Median == nil || *junior.Median != 32000 {
		t.Errorf("expected median from the only reporting source, got %v", junior.Median)
	}
	if junior.Max != nil {
		t.Errorf("expected no max, got %d", *junior.Max)
	}
	if repo.get("M1805").SalariesUpdatedAt.IsZero() {
		t.Error("expected salaries timestamp")
	}
}

func TestSalaryCollector_PartialSourceFailure(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805"})
	ok := &mockSalarySource{name: "insee", data: map[aggregate.Level]aggregate.Value{
		aggregate.LevelSenior: {Median: aggregate.Int(50000)},
	}}
	broken := &mockSalarySource{name: "apec", err: secondary.Transient("apec", errors.New("503"))}
	c := newTestCollector(repo, ok, broken)

	out, err := c.Execute(context.Background(), Params{Codes: []string{"M1805"}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	report := out.Output.(*SalaryReport)
	if report.SourceFailures != 1 || len(report.Updated) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if broken.calls != 2 {
		t.Errorf("expected transient source retried once, got %d calls", broken.calls)
	}
	if got := repo.get("M1805").Salaries[aggregate.LevelSenior].Median; got == nil || *got != 50000 {
		t.Errorf("expected senior median from healthy source, got %v", got)
	}
}

func TestSalaryCollector_NoData(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805"})
	c := newTestCollector(repo, &mockSalarySource{name: "insee"})

	out, err := c.Execute(context.Background(), Params{Codes: []string{"M1805"}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	report := out.Output.(*SalaryReport)
	if len(report.NoData) != 1 || out.Items != 0 {
		t.Errorf("expected no-data report, got %+v", report)
	}
	if repo.updates != 0 {
		t.Error("expected no write without data")
	}
}

func TestSalaryCollector_UnweightedSourceIgnored(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805"})
	c := newTestCollector(repo, &mockSalarySource{name: "unknown", data: map[aggregate.Level]aggregate.Value{
		aggregate.LevelJunior: {Min: aggregate.Int(1)},
	}})

	out, err := c.Execute(context.Background(), Params{Codes: []string{"M1805"}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out.Items != 0 {
		t.Errorf("expected nothing stored from an unweighted source, got %d", out.Items)
	}
}

func TestSalaryCollector_UnknownCode(t *testing.T) {
	c := newTestCollector(newMockOccupationRepository(), &mockSalarySource{name: "insee"})
	_, err := c.Execute(context.Background(), Params{Codes: []string{"X0000"}})
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSalaryCollector_FailsWhenNothingPersists(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805"})
	repo.updateErr = errors.New("disk full")
	c := newTestCollector(repo, &mockSalarySource{name: "insee", data: map[aggregate.Level]aggregate.Value{
		aggregate.LevelJunior: {Min: aggregate.Int(1)},
	}})

	if _, err := c.Execute(context.Background(), Params{}); err == nil {
		t.Error("expected error when no record could be stored")
	}
}

func TestSalaryCollector_AuditsEachUpdate(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{
		ExternalCode: "M1805",
		Salaries:     map[aggregate.Level]aggregate.Value{aggregate.LevelJunior: {Min: aggregate.Int(25000)}},
	})
	insee := &mockSalarySource{name: "insee", data: map[aggregate.Level]aggregate.Value{
		aggregate.LevelJunior: {Min: aggregate.Int(30000)},
	}}
	audit := &mockAuditRepository{}
	r, _ := testRetrier(0)
	c := NewSalaryCollector(repo, []secondary.SalarySource{insee}, audit, r, SalaryCollectorConfig{
		Weights: map[string]float64{"insee": 1.0},
	}, nil)

	if _, err := c.Execute(context.Background(), Params{Codes: []string{"M1805"}}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	e := audit.entries[0]
	if e.Kind != secondary.AuditUpdate || e.EntityID != "M1805" || e.Agent != NameSalaryCollection {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !strings.Contains(e.Before, "25000") || !strings.Contains(e.After, "30000") {
		t.Errorf("expected before and after bands, got before=%q after=%q", e.Before, e.After)
	}
}
