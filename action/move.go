package action

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/perception"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/telemetry"
	"github.com/pthm-cable/primordium/terrain"
)

// nearestFoodWithin linearly scans live food entities for the closest one
// within radius of (x,y). Food count is small relative to organism count in
// practice, so this stays cheaper than standing up a second ID-resolvable
// index purely for eating.
func (s *System) nearestFoodWithin(x, y, radius float64) (ecs.Entity, entity.FoodNutrient, bool) {
	var best ecs.Entity
	var bestNutrient entity.FoodNutrient
	bestDistSq := radius * radius
	found := false
	s.Store.EachFood(func(fe ecs.Entity, pos *entity.Position, nutrient *entity.FoodNutrient) {
		d := distSq(x, y, pos.X, pos.Y)
		if d <= bestDistSq {
			bestDistSq = d
			best = fe
			bestNutrient = *nutrient
			found = true
		}
	})
	return best, bestNutrient, found
}

// foodEnergyValue is the raw energy a food point offers before digestive
// efficiency and trophic potential scale it down.
func foodEnergyValue(storedEnergy float64) float64 { return storedEnergy }

// digestiveEfficiency models metabolic_niche as a specialization dial: high
// niche values digest NutrientGreen (plant) well, low values digest
// NutrientBlue (mineral-rich) well.
func digestiveEfficiency(niche float64, nutrient entity.NutrientType) float64 {
	if nutrient == entity.NutrientBlue {
		return 1 - niche
	}
	return niche
}

// terrainSpeedModifier scales an organism's effective speed by the cell
// type it currently occupies. Mountains, barren ground and rivers slow
// movement; nothing else does.
func terrainSpeedModifier(t terrain.CellType) float64 {
	switch t {
	case terrain.Mountain:
		return 0.5
	case terrain.Barren:
		return 0.7
	case terrain.River:
		return 0.8
	default:
		return 1.0
	}
}

// applyMove integrates one Move proposal: velocity blends the previous
// velocity (inertia) with the proposed force (responsiveness), is capped by
// the organism's max speed (doubled under boost), scaled by terrain, and
// then resolved against walls, nests, and world edges.
func (s *System) applyMove(e ecs.Entity, p perception.Proposal) {
	pos := s.Store.Position(e)
	vel := s.Store.Velocity(e)
	geno := s.Store.GenotypeOf(e)
	met := s.Store.Metabolism(e)
	health := s.Store.HealthOf(e)

	forceX, forceY := p.DX, p.DY
	newVX := vel.DX*s.Physics.Inertia + forceX*s.Physics.Responsiveness
	newVY := vel.DY*s.Physics.Inertia + forceY*s.Physics.Responsiveness

	maxSpeed := geno.Genes.MaxSpeed
	if p.Boost {
		maxSpeed *= 2
		met.Energy -= maxSpeed * 0.05 // boosting costs extra on top of baseline move metabolism
	}

	cell := s.Terrain.At(int(pos.X), int(pos.Y))
	maxSpeed *= terrainSpeedModifier(cell.Type)
	maxSpeed *= s.Env.OxygenSpeedMultiplier()

	speed := math.Hypot(newVX, newVY)
	if speed > maxSpeed && speed > 0 {
		scale := maxSpeed / speed
		newVX *= scale
		newVY *= scale
	}
	vel.DX, vel.DY = newVX, newVY

	nx, ny := pos.X+vel.DX, pos.Y+vel.DY

	if cell.Type == terrain.Wall {
		// Already inside a wall cell (shouldn't normally happen): cancel
		// velocity and do not move further into it.
		vel.DX, vel.DY = 0, 0
		return
	}
	destCell := s.Terrain.At(int(nx), int(ny))
	if destCell.Type == terrain.Wall {
		vel.DX, vel.DY = -vel.DX*0.5, -vel.DY*0.5
		nx, ny = pos.X, pos.Y
	}

	nx, ny = s.resolveEdges(nx, ny, &vel.DX, &vel.DY)

	pos.X, pos.Y = nx, ny

	if destCell.Type == terrain.Nest {
		health.Reputation = clamp01(health.Reputation + 0.001)
	}
}

// resolveEdges wraps or reflects a position that crossed the world bounds,
// per config.PhysicsConfig.EdgeMode.
func (s *System) resolveEdges(x, y float64, vx, vy *float64) (float64, float64) {
	switch s.Physics.EdgeMode {
	case "bounce":
		if x < 0 {
			x = -x
			*vx = -*vx
		} else if x >= s.Width {
			x = 2*s.Width - x
			*vx = -*vx
		}
		if y < 0 {
			y = -y
			*vy = -*vy
		} else if y >= s.Height {
			y = 2*s.Height - y
			*vy = -*vy
		}
	default: // "wrap"
		if x < 0 {
			x += s.Width
		} else if x >= s.Width {
			x -= s.Width
		}
		if y < 0 {
			y += s.Height
		} else if y >= s.Height {
			y -= s.Height
		}
	}
	return x, y
}

// applyCrowdingTax levies the idle-energy surcharge for dense neighborhoods:
// base_idle * neighbor_count^1.5 * crowding_k, accrued for the next
// biological update to drain.
func (s *System) applyCrowdingTax(e ecs.Entity) {
	pos := s.Store.Position(e)
	met := s.Store.Metabolism(e)
	if s.Spatial == nil {
		return
	}
	n := s.Spatial.CountInRadius(pos.X, pos.Y, crowdingRadius, nil) - 1
	if n < 0 {
		n = 0
	}
	met.PendingIdleCost += s.Physics.BaseIdleCost * math.Pow(float64(n), 1.5) * s.Physics.CrowdingK
}

// applyAutoEat is the passive consumption step: any organism within
// eatDistance of a food point at its current position eats it. Eating has
// no brain output of its own (unlike Attack/Share/Bond); every organism
// always eats opportunistically when food is in reach. Food entities have
// no entity.ID (they are never a Proposal source/target), so the nearest
// food search goes straight through Store.EachFood rather than the
// entity.ID-keyed Resolve index.
func (s *System) applyAutoEat(tick uint64, e ecs.Entity) {
	pos := s.Store.Position(e)
	geno := s.Store.GenotypeOf(e)
	met := s.Store.Metabolism(e)

	target, nutrient, ok := s.nearestFoodWithin(pos.X, pos.Y, eatDistance)
	if !ok {
		return
	}

	gain := foodEnergyValue(nutrient.Energy) *
		digestiveEfficiency(geno.Genes.MetabolicNiche, nutrient.Nutrient) *
		(1 - geno.Genes.TrophicPotential)
	met.Energy += gain
	if met.Energy > met.MaxEnergy {
		met.Energy = met.MaxEnergy
	}
	met.ReinforcementAcc = 1.0
	s.Terrain.At(int(pos.X), int(pos.Y)).Graze(gain * 0.01)
	s.Store.DespawnFood(target)
	s.Grids.Deposit(stigmergy.ChannelFoodTrail, int(pos.X), int(pos.Y), 0.2)
	s.Log.Record(telemetry.Event{Type: telemetry.EventForage, Tick: tick, EntityID: geno.ID, Amount: gain})
}
