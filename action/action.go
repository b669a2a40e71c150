// Package action implements the Action/Interaction System: sequential,
// single-threaded application of Phase A's proposals against live store
// state. Every precondition is re-checked here against current state, since
// a proposal was decided against a snapshot that may be stale by the time
// its turn comes up in the deterministic application order. Grounded on
// game/simulation.go's updateFeeding/reproduction energy-split sequencing
// and systems/breeding.go's mate-proximity/pairing checks.
package action

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/config"
	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/perception"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/telemetry"
	"github.com/pthm-cable/primordium/terrain"
)

const (
	eatDistance       = 1.0
	attackDistance    = 1.5
	shareDistance     = 10.0
	bondFormDistance  = 2.0
	bondBreakDistance = 20.0

	// crowdingRadius is the neighborhood the idle crowding tax and the
	// group-defense multiplier both scan; unspecified by name, picked to
	// sit between attack range and bond-break range.
	crowdingRadius = 8.0

	relatednessShareThreshold = 0.25
	shareRate                 = 0.05
	reputationShareGain       = 0.01
	reputationBetrayalPenalty = -0.3
	reputationDrift           = 0.001

	baseAttackDamage = 12.0
	rankBonusScale    = 0.5
	warZoneMultiplier = 2.0
	soldierMultiplier = 1.5
	groupDefenseFloor = 0.4
	groupDefenseSlope = 0.15

	engineerDigBuildDiscount = 0.5

	foundingReputation = 0.5
	foundingImmunity    = 0.5
)

// System applies one tick's admitted proposals against live store state,
// in the exact order Phase A produced them, and records every side effect
// to a TickEventLog.
type System struct {
	Store       *entity.Store
	Spatial     *spatial.Hash // read-only this phase: rebuilt during Phase 0, positions mutate here but the hash itself is not rebuilt mid-tick
	FoodSpatial *spatial.Hash
	Terrain     *terrain.Grid
	Grids       *stigmergy.Grids
	Env         *environment.State
	Lineage     *lineage.Registry
	Log         *telemetry.Log

	Physics   config.PhysicsConfig
	Evolution config.EvolutionConfig

	Innovations   *neural.InnovationCounter
	GenomeIDs     *neural.GenomeIDCounter
	WorldSeed     int64
	NextLineageID func() entity.LineageID

	Width, Height float64

	// Zones holds active god-mode area effects (World::apply_command's
	// PeaceZone/WarZone), consulted by applyAttack alongside the era-driven
	// war bonus.
	Zones []Zone
}

// ZoneKind distinguishes the two area-effect commands World exposes.
type ZoneKind uint8

const (
	ZonePeace ZoneKind = iota
	ZoneWar
)

// Zone is an active rectangular area effect. Peace suppresses attacks with
// either participant inside it; War stacks an extra damage multiplier on
// top of the DominanceWar/ApexEra era bonus.
type Zone struct {
	MinX, MinY, MaxX, MaxY float64
	Kind                   ZoneKind
}

func (z Zone) contains(x, y float64) bool {
	return x >= z.MinX && x <= z.MaxX && y >= z.MinY && y <= z.MaxY
}

func (s *System) inZone(x, y float64, kind ZoneKind) bool {
	for _, z := range s.Zones {
		if z.Kind == kind && z.contains(x, y) {
			return true
		}
	}
	return false
}

// birthRequest defers store insertion until after the proposal pass, so a
// newborn this tick never receives or blocks a proposal meant for someone
// else's entity handle.
type birthRequest struct {
	tick        uint64
	parent      ecs.Entity
	parentID    entity.ID
	partnerID   entity.ID
	hasPartner  bool
	childHidden [neural.RecurrentHiddenSlots]float64
}

// Apply runs every proposal against current store state, sequentially, and
// returns the count dropped because their source had already despawned by
// the time its turn came up.
func (s *System) Apply(tick uint64, proposals []perception.Proposal) int {
	dropped := 0
	var births []birthRequest

	for _, p := range proposals {
		source, ok := s.Store.Resolve(p.Source)
		if !ok || !s.Store.Alive(source) {
			dropped++
			continue
		}
		switch p.Kind {
		case perception.ProposalMove:
			s.applyMove(source, p)
			s.applyCrowdingTax(source)
			s.applyAutoEat(tick, source)
		case perception.ProposalAttack:
			s.applyAttack(tick, source, p)
		case perception.ProposalShare:
			s.applyShare(tick, source, p)
		case perception.ProposalBond:
			s.applyBond(tick, source, p)
		case perception.ProposalUnbond:
			s.applyUnbond(source)
		case perception.ProposalDig:
			s.applyDig(source, p)
		case perception.ProposalBuild:
			s.applyBuild(source, p)
		case perception.ProposalSignal:
			s.applySignal(tick, source, p)
		case perception.ProposalReproduce:
			if req, ok := s.prepareReproduce(tick, source, p); ok {
				births = append(births, req)
			}
		case perception.ProposalEmit:
			s.applyEmit(p)
		}
	}

	s.breakStaleBonds()

	for _, req := range births {
		s.spawnChild(req)
	}

	return dropped
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

func distSq(ax, ay, bx, by float64) float64 {
	dx, dy := ax-bx, ay-by
	return dx*dx + dy*dy
}

func sqrt(v float64) float64 { return math.Sqrt(v) }
