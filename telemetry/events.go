// Package telemetry implements the TickEventLog, ecological alert stream,
// per-tick summary reports, and CSV export. Grounded on
// telemetry/events.go, telemetry/output.go, and telemetry/stats.go.
package telemetry

import "github.com/pthm-cable/primordium/entity"

// EventType identifies a recorded tick side-effect.
type EventType uint8

const (
	EventBirth EventType = iota
	EventDeath
	EventPredation
	EventForage
	EventShare
	EventMigrationIn
	EventMigrationOut
	EventSpeciation
	EventFossilization
	EventSignal
	EventClimateShift
	EventSnapshotPublished
	EventMetamorph
)

// DeathCause names why an entity was removed from the store, carried on a
// Death event per the persistence contract's Death{id,age,offspring,tick,
// cause,x,y} record.
type DeathCause uint8

const (
	CauseUnknown DeathCause = iota
	CauseStarvation
	CauseOldAge
	CausePredation
	CauseSmite
)

func (c DeathCause) String() string {
	switch c {
	case CauseStarvation:
		return "Starvation"
	case CauseOldAge:
		return "OldAge"
	case CausePredation:
		return "Predation"
	case CauseSmite:
		return "Smite"
	default:
		return "Unknown"
	}
}

// Event is a single recorded side-effect, timestamped by tick. Only the
// fields relevant to Type are meaningful; this mirrors Proposal's
// flat-tagged-union shape rather than a Go interface, so the log never
// allocates per-event.
type Event struct {
	Type     EventType
	Tick     uint64
	EntityID entity.ID
	TargetID entity.ID
	Lineage  entity.LineageID
	Amount   float64

	X, Y float64 // Birth/Death site

	Cause      DeathCause // Death
	Age        int64      // Death
	Offspring  uint32     // Death

	ClimateFrom, ClimateTo uint8 // ClimateShift

	Detail string // Metamorph / free-text
}

// EcoAlertKind identifies an ecological-threshold alert.
type EcoAlertKind uint8

const (
	AlertTrophicCollapse EcoAlertKind = iota
	AlertCarbonCatastrophe
	AlertMassExtinction
	AlertTickBudgetExceeded
)

// EcoAlert is a raised ecological condition, surfaced to external observers
// through the same log as ordinary events.
type EcoAlert struct {
	Kind    EcoAlertKind
	Tick    uint64
	Lineage entity.LineageID
	Detail  string
}

// Log accumulates events and alerts for a tick (or a run), append-only from
// a single writer (Phase B/C never run concurrently with a Log reader).
type Log struct {
	events []Event
	alerts []EcoAlert
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Record appends an event.
func (l *Log) Record(e Event) {
	l.events = append(l.events, e)
}

// RaiseAlert appends an ecological alert.
func (l *Log) RaiseAlert(a EcoAlert) {
	l.alerts = append(l.alerts, a)
}

// Events returns all recorded events so far.
func (l *Log) Events() []Event { return l.events }

// Alerts returns all raised alerts so far.
func (l *Log) Alerts() []EcoAlert { return l.alerts }

// Drain returns and clears the accumulated events and alerts, for handoff
// to a per-tick report without retaining history in the live Log.
func (l *Log) Drain() ([]Event, []EcoAlert) {
	events, alerts := l.events, l.alerts
	l.events = nil
	l.alerts = nil
	return events, alerts
}

// Count returns the number of events of a given type currently buffered.
func (l *Log) Count(t EventType) int {
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
