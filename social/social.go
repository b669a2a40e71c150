// Package social implements the Social & Ecological Systems (C10): social
// rank, tribal splintering under crowding, reputation drift, cross-lineage
// symbiosis, and trophic-cascade alerting. Runs after biology. Grounded on
// traits/traits.go's herding/breeding trait bitset and systems/disease.go's
// proximity-scan idiom, reused here for density/neighborhood queries.
package social

import (
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/genetics"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/telemetry"
)

const (
	rankDensityRadius     = 8.0
	rankDensityNormalizer = 20.0 // neighbor count mapping to density == 1.0

	ageNormCap       = 20000.0 // mirrors biology.maxAgeBase without importing it
	offspringNormCap = 20.0

	tribeSplitRankThreshold    = 0.2
	tribeSplitDensityThreshold = 0.8
	tribeSplitProb             = 0.01
	colorJitterThreshold       = 40 // sum |ΔR|+|ΔG|+|ΔB| needed to found a new tribe

	reputationDrift = 0.001

	bondSymbiosisTicks = 2000 // ticks a cross-lineage bond must hold before it qualifies

	biomassHistoryWindow  = 20
	trophicCollapseFactor = 0.3 // >30% drop below the rolling mean raises an alert
)

// System runs the post-biology per-entity social update plus the
// population-level trophic cascade check.
type System struct {
	Store   *entity.Store
	Spatial *spatial.Hash
	Lineage *lineage.Registry
	Log     *telemetry.Log

	NextLineageID func() entity.LineageID
	WorldSeed     int64

	biomassHistory []float64
}

// Update computes every live organism's social rank, drifts reputation
// toward trust, evaluates tribal splintering and symbiosis eligibility, and
// checks for a population-level trophic collapse.
func (s *System) Update(tick uint64) {
	var predatorBiomass float64

	s.Store.Each(func(row entity.OrganismRow) {
		s.updateRank(row)
		driftReputation(row.Health)
		s.maybeSplitTribe(tick, row)
		s.maybeFormSymbiosis(tick, row)

		if row.Health.Specialization == entity.SpecSoldier || row.Genotype.Genes.TrophicPotential > 0.5 {
			predatorBiomass += row.Metabolism.Energy
		}
	})

	s.checkTrophicCollapse(tick, predatorBiomass)
}

// updateRank computes Rank = 0.3*energy_norm + 0.3*age_norm +
// 0.1*offspring_norm + 0.3*reputation.
func (s *System) updateRank(row entity.OrganismRow) {
	met := row.Metabolism
	health := row.Health

	energyNorm := 0.0
	if met.MaxEnergy > 0 {
		energyNorm = clamp01(met.Energy / met.MaxEnergy)
	}
	ageNorm := clamp01(float64(met.Age) / ageNormCap)
	offspringNorm := clamp01(float64(met.OffspringCount) / offspringNormCap)

	health.SocialRank = clamp01(0.3*energyNorm + 0.3*ageNorm + 0.1*offspringNorm + 0.3*health.Reputation)
}

// driftReputation nudges reputation toward 1.0 by a fixed step each tick;
// Action's betrayal/altruism adjustments already apply their own deltas
// in-tick, this is the passive trust recovery on top of those.
func driftReputation(h *entity.Health) {
	h.Reputation = clamp01(h.Reputation + reputationDrift)
}

// maybeSplitTribe evaluates the tribe-split precondition (low rank, high
// local density) and, on a successful probability + color-jitter roll,
// reassigns the entity to a freshly founded lineage descended from its own.
func (s *System) maybeSplitTribe(tick uint64, row entity.OrganismRow) {
	if row.Health.SocialRank >= tribeSplitRankThreshold {
		return
	}
	density := s.localDensity(row)
	if density <= tribeSplitDensityThreshold {
		return
	}

	rng := genetics.EntityStream(s.WorldSeed, tick, row.Genotype.ID)
	if rng.Float64() >= tribeSplitProb {
		return
	}

	dr := int(rng.Float64()*60) - 30
	dg := int(rng.Float64()*60) - 30
	db := int(rng.Float64()*60) - 30
	jitter := absInt(dr) + absInt(dg) + absInt(db)
	if jitter <= colorJitterThreshold {
		return
	}

	parentLineage := row.Genotype.Lineage
	newLineage := s.NextLineageID()
	s.Lineage.Insert(newLineage, parentLineage, true, tick)
	s.Lineage.UpdateStats(parentLineage, lineage.Stats{DeltaLiving: -1})
	s.Lineage.UpdateStats(newLineage, lineage.Stats{DeltaLiving: 1, DeltaProduced: 1})
	if rec := s.Lineage.Get(parentLineage); rec != nil && rec.LivingCount <= 0 {
		s.Lineage.MarkExtinct(parentLineage, tick)
	}

	row.Genotype.Lineage = newLineage
	row.Genotype.R = clampColorByte(int(row.Genotype.R) + dr)
	row.Genotype.G = clampColorByte(int(row.Genotype.G) + dg)
	row.Genotype.B = clampColorByte(int(row.Genotype.B) + db)

	s.Log.Record(telemetry.Event{
		Type: telemetry.EventSpeciation, Tick: tick, EntityID: row.Genotype.ID, Lineage: newLineage,
		Detail: "tribe split",
	})
}

// localDensity normalizes the live-neighbor count within rankDensityRadius
// into [0,1], 1.0 meaning at or above rankDensityNormalizer neighbors.
func (s *System) localDensity(row entity.OrganismRow) float64 {
	if s.Spatial == nil {
		return 0
	}
	n := s.Spatial.CountInRadius(row.Position.X, row.Position.Y, rankDensityRadius, nil) - 1
	if n < 0 {
		n = 0
	}
	return clamp01(float64(n) / rankDensityNormalizer)
}

// maybeFormSymbiosis marks a bond symbiotic once it has held across a
// cross-lineage pair for long enough, letting Action's reproduction path
// blend both parents' physical genes for the child.
func (s *System) maybeFormSymbiosis(tick uint64, row entity.OrganismRow) {
	bond := row.Bond
	if !bond.HasPartner || bond.Symbiotic {
		return
	}
	if int64(tick)-bond.TickFormed < bondSymbiosisTicks {
		return
	}
	partner, ok := s.Store.Resolve(bond.Partner)
	if !ok || !s.Store.Alive(partner) {
		return
	}
	partnerGeno := s.Store.GenotypeOf(partner)
	if partnerGeno.Lineage == row.Genotype.Lineage {
		return
	}
	bond.Symbiotic = true
}

// checkTrophicCollapse compares current predator biomass against the
// rolling mean of the last biomassHistoryWindow ticks and raises an
// EcoAlert::TrophicCollapse if it dropped by more than trophicCollapseFactor.
func (s *System) checkTrophicCollapse(tick uint64, predatorBiomass float64) {
	if len(s.biomassHistory) > 0 {
		mean := stat.Mean(s.biomassHistory, nil)
		if mean > 0 && (mean-predatorBiomass)/mean > trophicCollapseFactor {
			s.Log.RaiseAlert(telemetry.EcoAlert{
				Kind: telemetry.AlertTrophicCollapse, Tick: tick,
				Detail: "predator biomass collapsed against its rolling mean",
			})
		}
	}

	s.biomassHistory = append(s.biomassHistory, predatorBiomass)
	if len(s.biomassHistory) > biomassHistoryWindow {
		s.biomassHistory = s.biomassHistory[len(s.biomassHistory)-biomassHistoryWindow:]
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampColorByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
