// Package lineage implements the Lineage Registry and Ancestry DAG: a
// process-wide map from lineage id to aggregate stats, fossilization on
// extinction, and pruning of short-lived lineages. Grounded on
// telemetry/halloffame.go's best-ever checkpoint pattern and
// telemetry/lifetime.go's per-entity running-stats map.
package lineage

import (
	"sort"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/neural"
)

// legendaryRankThreshold and legendaryOffspringThreshold gate fossilization.
const (
	legendaryRankThreshold       = 0.95
	legendaryOffspringThreshold  = 50
	pruneExtinctAfterTicks       = 10000
	pruneMinTotalProduced        = 3
)

// Record is one lineage's aggregate state.
type Record struct {
	ID entity.LineageID

	ParentID   entity.LineageID
	HasParent  bool
	FoundedAt  uint64

	LivingCount    int
	TotalProduced  int
	TotalEnergy    float64
	BestRank       float64
	BestGenome     *neural.Brain
	TopOffspring   int

	Extinct     bool
	ExtinctTick uint64
}

// Stats is a delta applied to a lineage's running aggregates.
type Stats struct {
	DeltaLiving   int
	DeltaProduced int
	DeltaEnergy   float64
	Rank          float64 // candidate for BestRank, only raises it
	OffspringGeneratedByMember int
	CandidateGenome *neural.Brain
}

// Fossil is a frozen checkpoint of a legendary lineage's best genotype,
// handed to external persistence on extinction.
type Fossil struct {
	LineageID entity.LineageID
	BestRank  float64
	Genome    *neural.Brain
	ExtinctAt uint64
}

// Registry is the process-wide lineage_id -> Record map plus the ancestry
// DAG edges (parent lineage -> child lineage).
type Registry struct {
	records map[entity.LineageID]*Record
	edges   map[entity.LineageID][]entity.LineageID // parent -> children
	fossils []Fossil
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		records: make(map[entity.LineageID]*Record),
		edges:   make(map[entity.LineageID][]entity.LineageID),
	}
}

// Get returns the record for id, or nil if unknown.
func (r *Registry) Get(id entity.LineageID) *Record {
	return r.records[id]
}

// Insert registers a new lineage, optionally recording a parent edge in the
// ancestry DAG (e.g. when a speciation event spins off a new lineage from
// an existing one).
func (r *Registry) Insert(id entity.LineageID, parent entity.LineageID, hasParent bool, tick uint64) *Record {
	rec := &Record{ID: id, ParentID: parent, HasParent: hasParent, FoundedAt: tick}
	r.records[id] = rec
	if hasParent {
		r.edges[parent] = append(r.edges[parent], id)
	}
	return rec
}

// UpdateStats folds a delta into a lineage's running aggregates. No-op if
// the lineage is unknown (defensive: never panics inside a tick).
func (r *Registry) UpdateStats(id entity.LineageID, delta Stats) {
	rec := r.records[id]
	if rec == nil {
		return
	}
	rec.LivingCount += delta.DeltaLiving
	rec.TotalProduced += delta.DeltaProduced
	rec.TotalEnergy += delta.DeltaEnergy
	if delta.Rank > rec.BestRank {
		rec.BestRank = delta.Rank
		if delta.CandidateGenome != nil {
			rec.BestGenome = delta.CandidateGenome
		}
	}
	if delta.OffspringGeneratedByMember > rec.TopOffspring {
		rec.TopOffspring = delta.OffspringGeneratedByMember
	}
}

// MarkExtinct flags a lineage extinct at the given tick and fossilizes it
// if it clears the legendary thresholds.
func (r *Registry) MarkExtinct(id entity.LineageID, tick uint64) {
	rec := r.records[id]
	if rec == nil || rec.Extinct {
		return
	}
	rec.Extinct = true
	rec.ExtinctTick = tick

	if rec.BestRank >= legendaryRankThreshold || rec.TopOffspring >= legendaryOffspringThreshold {
		if rec.BestGenome != nil {
			r.fossils = append(r.fossils, Fossil{
				LineageID: id,
				BestRank:  rec.BestRank,
				Genome:    rec.BestGenome,
				ExtinctAt: tick,
			})
		}
	}
}

// Fossils returns all fossil records accumulated so far.
func (r *Registry) Fossils() []Fossil { return r.fossils }

// TopKBy returns the k lineages with the highest value of metric, applied
// to every tracked record (extinct, not-yet-pruned ones included), in
// descending order.
func (r *Registry) TopKBy(k int, metric func(*Record) float64) []*Record {
	all := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return metric(all[i]) > metric(all[j]) })
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// Children returns the direct descendant lineages of id in the ancestry DAG.
func (r *Registry) Children(id entity.LineageID) []entity.LineageID {
	return r.edges[id]
}

// Prune removes extinct lineages that produced fewer than
// pruneMinTotalProduced entities and have been extinct for at least
// pruneExtinctAfterTicks ticks. Ancestry edges pointing at a pruned lineage
// are left as dangling ids (the DAG keeps its shape); Get returns nil for a
// pruned id, the same as for an id that never existed.
func (r *Registry) Prune(currentTick uint64) int {
	pruned := 0
	for id, rec := range r.records {
		if !rec.Extinct {
			continue
		}
		if rec.TotalProduced >= pruneMinTotalProduced {
			continue
		}
		if currentTick-rec.ExtinctTick < pruneExtinctAfterTicks {
			continue
		}
		delete(r.records, id)
		delete(r.edges, id)
		pruned++
	}
	return pruned
}

// Count returns the number of lineages currently tracked (including extinct
// but not-yet-pruned ones).
func (r *Registry) Count() int { return len(r.records) }
