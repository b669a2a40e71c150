package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/primordium/entity"
)

func TestLogRecordAndDrain(t *testing.T) {
	log := NewLog()
	log.Record(Event{Type: EventBirth, Tick: 1, EntityID: entity.NewID()})
	log.Record(Event{Type: EventDeath, Tick: 1, EntityID: entity.NewID()})
	log.RaiseAlert(EcoAlert{Kind: AlertTrophicCollapse, Tick: 1, Detail: "predator biomass share collapsed"})

	if log.Count(EventBirth) != 1 {
		t.Fatalf("expected 1 birth event")
	}

	events, alerts := log.Drain()
	if len(events) != 2 || len(alerts) != 1 {
		t.Fatalf("expected 2 events and 1 alert, got %d/%d", len(events), len(alerts))
	}
	if len(log.Events()) != 0 || len(log.Alerts()) != 0 {
		t.Fatalf("expected Drain to clear the log")
	}
}

func TestSummarizeCountsEventTypes(t *testing.T) {
	events := []Event{
		{Type: EventBirth}, {Type: EventBirth}, {Type: EventDeath}, {Type: EventPredation},
	}
	r := Summarize(42, events, 3)
	if r.Tick != 42 || r.Births != 2 || r.Deaths != 1 || r.PredationEvents != 1 || r.DroppedProposals != 3 {
		t.Fatalf("unexpected summary: %+v", r)
	}
}

func TestOutputManagerNilIsNoOp(t *testing.T) {
	var om *OutputManager
	if err := om.WriteReport(TickReport{Tick: 1}); err != nil {
		t.Fatalf("nil OutputManager.WriteReport should be a no-op: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("nil OutputManager.Close should be a no-op: %v", err)
	}
	if om.Dir() != "" {
		t.Fatalf("nil OutputManager.Dir should return empty string")
	}
}

func TestOutputManagerWritesCSVWithHeader(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(filepath.Join(dir, "run1"))
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	if err := om.WriteReport(TickReport{Tick: 1, Population: 10}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if err := om.WriteReport(TickReport{Tick: 2, Population: 11}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	om.Close()

	data, err := os.ReadFile(filepath.Join(dir, "run1", "tick_report.csv"))
	if err != nil {
		t.Fatalf("reading tick_report.csv: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty CSV output")
	}
}
