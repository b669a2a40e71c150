// Package biology implements the Biological System (C9): per-tick metabolic
// cost, aging, starvation/old-age death, caste promotion, oxygen effects, and
// corpse fertilization. Grounded on systems/energy.go's UpdateEnergy/
// TransferEnergy conservation accounting and systems/disease.go's
// proximity-biased infection spread.
package biology

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/genetics"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/telemetry"
	"github.com/pthm-cable/primordium/terrain"
)

// maxAgeBase is the tick count at which a maturity_gene of 1.0 dies of old
// age; death fires at age > maxAgeBase*maturity_gene.
const maxAgeBase = 20000

// circadianPeriod is the tick period of the metabolic circadian wave. The
// spec names circadian_mult without fixing its source; math.Sin over a fixed
// period is used rather than the teacher's fastSin (a float32 hot-path
// micro-optimization for rendering, not a documented game-balance term), and
// this decision is recorded in DESIGN.md.
const circadianPeriod = 1000.0
const circadianAmplitude = 0.1

// Caste promotion thresholds: once an accumulator crosses this, the
// organism's Specialization locks in (first accumulator to cross wins).
const casteThreshold = 20.0

// hebbianEta is the Hebbian learning rate; the spec names the delta_w
// formula but not a magnitude, so this is a hand-tuned constant kept small
// enough that ten ticks of a saturated +-1 reinforcement signal perturb a
// connection weight by a fraction of ApplyHebbian's +-2.0 bound.
const hebbianEta = 0.01

// reinforcementDecayPerTick drains ReinforcementAcc back to 0 over exactly
// 10 ticks after a +1/-1 event.
const reinforcementDecayPerTick = 0.1

// Disease spread constants, grounded on systems/disease.go's
// diseaseSpreadRadius/diseaseSpreadProb/sameSpeciesMultiplier table.
const (
	diseaseSpreadRadius       = 8.0
	diseaseSpreadProb         = 0.001
	sameLineageMultiplier     = 5.0
	crossLineageMultiplier    = 0.1
	spontaneousInfectionProb  = 0.00005
	incubationTicks           = 200
	pathogenDamagePerTick     = 0.5
	immunityGainPerTick       = 0.002
)

// System runs the post-Action per-entity biological update.
type System struct {
	Store   *entity.Store
	Terrain *terrain.Grid
	Env     *environment.State
	Lineage *lineage.Registry
	Log     *telemetry.Log
	Spatial *spatial.Hash

	WorldSeed int64
}

// eraMetabolismMultiplier scales cost with the macro era, later eras driving
// harsher attrition as the war/apex rule table in environment.go implies.
func eraMetabolismMultiplier(e environment.Era) float64 {
	switch e {
	case environment.DominanceWar:
		return 1.2
	case environment.ApexEra:
		return 1.4
	case environment.Flourishing:
		return 1.05
	default:
		return 1.0
	}
}

func circadianMult(tick uint64) float64 {
	return 1 + circadianAmplitude*math.Sin(2*math.Pi*float64(tick)/circadianPeriod)
}

// deathInfo is collected during the live scan and resolved after Each
// returns, since the store forbids despawning mid-iteration.
type deathInfo struct {
	entity ecs.Entity
	id     entity.ID
	lineage entity.LineageID
	cause  telemetry.DeathCause
	age    int64
	offspring uint32
	x, y   float64
	maxEnergy float64
}

// Update runs one tick's metabolic cost, aging, caste promotion, oxygen
// effects, and disease spread, then despawns the dead and fertilizes their
// corpse sites.
func (s *System) Update(tick uint64) {
	var deaths []deathInfo
	var totalHeatLoss float64

	s.Store.Each(func(row entity.OrganismRow) {
		met := row.Metabolism
		health := row.Health
		genes := row.Genotype.Genes
		brain := row.Genotype.Brain

		speed := math.Hypot(row.Velocity.DX, row.Velocity.DY)
		brainComplexity := 0.0
		if brain != nil {
			brainComplexity = brain.MetabolicCost()
		}

		cost := (met.PendingIdleCost + brainComplexity*0.1 + speed*genes.MaxSpeed) *
			s.Env.MetabolismMultiplier *
			eraMetabolismMultiplier(s.Env.Era) *
			s.Env.IdleMultiplier *
			circadianMult(tick) *
			(1 + genes.SensingRange*0.02/60 + genes.MaxSpeed*0.05/4)

		if s.Env.Hypoxic() {
			cost *= environment.HypoxicMetabolismMult
		}

		met.Energy -= cost
		met.PendingIdleCost = 0
		totalHeatLoss += cost

		met.Age++
		if met.DigestCooldown > 0 {
			met.DigestCooldown--
		}

		if brain != nil {
			brain.ApplyHebbian(hebbianEta, met.ReinforcementAcc)
			brain.Prune()
		}
		met.ReinforcementAcc = decayToward(met.ReinforcementAcc, 0, reinforcementDecayPerTick)

		s.promoteCaste(tick, row.Genotype.ID, health, brain)
		s.updateInfection(row)

		maxAge := maxAgeBase * genes.MaturityGene
		if met.Energy <= 0 || float64(met.Age) > maxAge {
			cause := telemetry.CauseStarvation
			if float64(met.Age) > maxAge {
				cause = telemetry.CauseOldAge
			}
			deaths = append(deaths, deathInfo{
				entity: row.Entity, id: row.Genotype.ID, lineage: row.Genotype.Lineage,
				cause: cause, age: met.Age, offspring: met.OffspringCount,
				x: row.Position.X, y: row.Position.Y, maxEnergy: met.MaxEnergy,
			})
		}
	})

	s.Env.RecordHeatLoss(totalHeatLoss)
	s.spreadDisease(tick)

	for _, d := range deaths {
		s.Store.Despawn(d.entity)
		s.Terrain.At(int(d.x), int(d.y)).ApplyCorpseFertilization(d.maxEnergy)
		s.Env.AvailableEnergy += d.maxEnergy * 0.1 // unharvested remainder decomposes back in, slowly
		s.Lineage.UpdateStats(d.lineage, lineage.Stats{DeltaLiving: -1})

		s.Log.Record(telemetry.Event{
			Type: telemetry.EventDeath, Tick: tick, EntityID: d.id, Lineage: d.lineage,
			Cause: d.cause, Age: d.age, Offspring: d.offspring, X: d.x, Y: d.y,
		})

		if rec := s.Lineage.Get(d.lineage); rec != nil && rec.LivingCount <= 0 {
			s.Lineage.MarkExtinct(d.lineage, tick)
		}
	}
}

// promoteCaste locks in a Specialization once an accumulator clears
// casteThreshold, first one across wins and further accumulation is harmless
// (the three caste action handlers keep crediting it regardless).
func (s *System) promoteCaste(tick uint64, id entity.ID, h *entity.Health, brain *neural.Brain) {
	if h.Specialization != entity.SpecNone {
		return
	}
	var detail string
	protect := false
	switch {
	case h.CasteSoldier >= casteThreshold:
		h.Specialization = entity.SpecSoldier
		detail = "soldier"
		protect = true
	case h.CasteEngineer >= casteThreshold:
		h.Specialization = entity.SpecEngineer
		detail = "engineer"
		protect = true
	case h.CasteProvider >= casteThreshold:
		h.Specialization = entity.SpecProvider
		detail = "provider"
	default:
		return
	}
	// Soldier/engineer subnets lock in once mature; MarkProtected exempts
	// their current hidden nodes from further weight/topology mutation.
	if protect && brain != nil {
		brain.MarkProtected(brain.HiddenNodeIDs())
	}
	s.Log.Record(telemetry.Event{Type: telemetry.EventMetamorph, Tick: tick, EntityID: id, Detail: detail})
}

// decayToward steps v by step toward target, clamping on overshoot.
func decayToward(v, target, step float64) float64 {
	if v > target {
		v -= step
		if v < target {
			v = target
		}
	} else if v < target {
		v += step
		if v > target {
			v = target
		}
	}
	return v
}

// updateInfection advances one organism's infection lifecycle: incubating
// organisms either clear to Immune or progress to Active, and Active
// organisms take ongoing pathogen damage while slowly building immunity.
func (s *System) updateInfection(row entity.OrganismRow) {
	health := row.Health
	switch health.Infection {
	case entity.InfectionIncubating:
		health.PathogenLoad += 1
		if health.PathogenLoad >= incubationTicks {
			if health.Immunity > 0.5 {
				health.Infection = entity.InfectionImmune
			} else {
				health.Infection = entity.InfectionActive
			}
			health.PathogenLoad = 0
		}
	case entity.InfectionActive:
		row.Metabolism.Energy -= pathogenDamagePerTick
		health.Immunity = clamp01(health.Immunity + immunityGainPerTick)
		if health.Immunity > 0.9 {
			health.Infection = entity.InfectionImmune
		}
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

// spreadDisease scans live organisms for proximity-biased infection spread,
// biased toward same-lineage contacts the way the teacher's disease system
// biases same-species contact, plus a small spontaneous-infection roll.
func (s *System) spreadDisease(tick uint64) {
	if s.Spatial == nil {
		return
	}
	type carrier struct {
		entity  ecs.Entity
		x, y    float64
		lineage entity.LineageID
	}
	var infected []carrier

	s.Store.Each(func(row entity.OrganismRow) {
		if row.Health.Infection == entity.InfectionActive {
			infected = append(infected, carrier{row.Entity, row.Position.X, row.Position.Y, row.Genotype.Lineage})
		}

		// Spontaneous infection roll, independent of proximity to a carrier.
		if row.Health.Infection == entity.InfectionNone {
			rng := genetics.EntityStream(s.WorldSeed, tick, row.Genotype.ID)
			if rng.Float64() < spontaneousInfectionProb {
				row.Health.Infection = entity.InfectionIncubating
			}
		}
	})

	for _, src := range infected {
		s.Spatial.QueryCallback(src.x, src.y, diseaseSpreadRadius, func(p spatial.Point, dist float64) {
			target, ok := s.Store.Resolve(p.ID)
			if !ok || target == src.entity {
				return
			}
			health := s.Store.HealthOf(target)
			if health.Infection != entity.InfectionNone {
				return
			}
			mult := crossLineageMultiplier
			if p.Lineage == src.lineage {
				mult = sameLineageMultiplier
			}
			falloff := 1 - dist/diseaseSpreadRadius
			if falloff < 0 {
				falloff = 0
			}
			prob := diseaseSpreadProb * mult * falloff
			rng := genetics.EntityStream(s.WorldSeed, tick, p.ID)
			if rng.Float64() < prob {
				health.Infection = entity.InfectionIncubating
			}
		})
	}
}
