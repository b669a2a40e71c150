package telemetry

// TickReport is the per-tick summary published alongside a world snapshot,
// grounded on telemetry/stats.go's WindowStats shape but scoped to one tick
// instead of a rolling window.
type TickReport struct {
	Tick             uint64  `csv:"tick"`
	Population       int     `csv:"population"`
	FoodCount        int     `csv:"food_count"`
	Births           int     `csv:"births"`
	Deaths           int     `csv:"deaths"`
	PredationEvents  int     `csv:"predation_events"`
	ForageEvents     int     `csv:"forage_events"`
	AverageEnergy    float64 `csv:"average_energy"`
	AverageFitness   float64 `csv:"average_fitness"`
	Carbon           float64 `csv:"carbon"`
	Climate          uint8   `csv:"climate"`
	Era              uint8   `csv:"era"`
	LineageCount     int     `csv:"lineage_count"`
	DroppedProposals int     `csv:"dropped_proposals"`
}

// Summarize folds a drained event/alert batch into a TickReport. Callers
// fill in the world-state fields (Population, Carbon, ...) separately;
// Summarize only derives the event-count fields.
func Summarize(tick uint64, events []Event, droppedProposals int) TickReport {
	r := TickReport{Tick: tick, DroppedProposals: droppedProposals}
	for _, e := range events {
		switch e.Type {
		case EventBirth:
			r.Births++
		case EventDeath:
			r.Deaths++
		case EventPredation:
			r.PredationEvents++
		case EventForage:
			r.ForageEvents++
		}
	}
	return r
}
