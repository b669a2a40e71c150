package action

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/perception"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/telemetry"
)

// terraformRange bounds how far a Dig or Build proposal's target cell may sit
// from the organism issuing it; outside this the proposal is a no-op rather
// than teleporting the terraform effect to wherever the stale snapshot
// thought the organism was.
const terraformRange = 1.5

// engineerDiscountFor returns engineerDigBuildDiscount for Engineer-caste
// organisms, 0 otherwise.
func engineerDiscountFor(h *entity.Health) float64 {
	if h.Specialization == entity.SpecEngineer {
		return engineerDigBuildDiscount
	}
	return 0
}

// applyDig converts the organism's current cell to Barren, draining the
// dig cost from its energy (Engineer caste gets a discount).
func (s *System) applyDig(e ecs.Entity, p perception.Proposal) {
	pos := s.Store.Position(e)
	if distSq(pos.X, pos.Y, float64(p.Cell.X), float64(p.Cell.Y)) > terraformRange*terraformRange {
		return
	}
	health := s.Store.HealthOf(e)
	met := s.Store.Metabolism(e)

	cell := s.Terrain.At(p.Cell.X, p.Cell.Y)
	cost := cell.Dig(engineerDiscountFor(health))
	met.Energy -= cost
	health.CasteEngineer += 0.5
}

// applyBuild converts the organism's current cell to an Outpost, draining
// the build cost and claiming the cell for the builder's lineage.
func (s *System) applyBuild(e ecs.Entity, p perception.Proposal) {
	pos := s.Store.Position(e)
	if distSq(pos.X, pos.Y, float64(p.Cell.X), float64(p.Cell.Y)) > terraformRange*terraformRange {
		return
	}
	health := s.Store.HealthOf(e)
	met := s.Store.Metabolism(e)
	geno := s.Store.GenotypeOf(e)

	cell := s.Terrain.At(p.Cell.X, p.Cell.Y)
	cost := cell.Build(p.BuildKind, engineerDiscountFor(health))
	met.Energy -= cost
	cell.Claim(geno.Lineage)
	health.CasteEngineer += 1.0
}

// applySignal nudges the organism's display color by ColorDelta and
// deposits vocalization onto the Sound channel at its current position.
func (s *System) applySignal(tick uint64, e ecs.Entity, p perception.Proposal) {
	pos := s.Store.Position(e)
	geno := s.Store.GenotypeOf(e)

	geno.R = clampColorByte(int(geno.R) + int(p.ColorDelta[0]))
	geno.G = clampColorByte(int(geno.G) + int(p.ColorDelta[1]))
	geno.B = clampColorByte(int(geno.B) + int(p.ColorDelta[2]))

	if p.VocalIntensity > 0 {
		s.Grids.Deposit(stigmergy.ChannelSound, int(pos.X), int(pos.Y), p.VocalIntensity)
	}

	s.Log.Record(telemetry.Event{Type: telemetry.EventSignal, Tick: tick, EntityID: geno.ID, Amount: p.VocalIntensity})
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

// applyEmit deposits directly onto the named stigmergic channel. Action runs
// single-threaded, so this bypasses the per-worker queue Phase A uses and
// writes straight through Grids.Deposit.
func (s *System) applyEmit(p perception.Proposal) {
	s.Grids.Deposit(p.Channel, p.EmitX, p.EmitY, p.Amount)
}
