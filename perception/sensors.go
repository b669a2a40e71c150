package perception

import (
	"math"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/terrain"
)

// baseMaturityAge is the unscaled tick count at which an organism is
// considered mature before PhysicalGenes.MaturityGene is applied.
const baseMaturityAge = 500

// scanResult holds the aggregate and nearest-of-kind facts sampleSensors
// needs; decodeOutputs reuses scratch.neighbors rather than re-scanning.
type scanResult struct {
	nearestFood spatial.Point
	hasFood     bool
	foodDistSq  float64

	neighborCount int
	kinCount      int
	kinCentroidDX float64
	kinCentroidDY float64
}

// sampleSensors builds the 29-input vector for one entity and leaves
// scratch.neighbors populated with every organism within sensing range, for
// decodeOutputs to pick attack/bond/share targets from. Indices 7-12 are
// left zero; Brain.Think splices the previous tick's hidden state into them
// regardless of what this function writes.
func sampleSensors(snap *Snapshot, world Context, scratch *workerScratch) [neural.BrainInputs]float64 {
	var inputs [neural.BrainInputs]float64
	scratch.neighbors = scratch.neighbors[:0]
	scan := scanNeighbors(snap, world, scratch)

	if scan.hasFood {
		inputs[0] = (scan.nearestFood.X - snap.Pos.X) / snap.Genes.SensingRange
		inputs[1] = (scan.nearestFood.Y - snap.Pos.Y) / snap.Genes.SensingRange
	}
	if snap.MaxEnergy > 0 {
		inputs[2] = snap.Energy / snap.MaxEnergy
	}
	inputs[3] = normalizeCount(scan.neighborCount, 10)

	cx, cy := gridCoord(snap.Pos, world.CellSize)
	inputs[4] = world.Grids.At(stigmergy.ChannelFoodTrail, cx, cy)
	inputs[5] = normalizeCount(scan.kinCount, 10)
	inputs[6] = world.Grids.At(stigmergy.ChannelDanger, cx, cy)

	// 7-12 reserved for recurrent hidden state, spliced by Brain.Think.

	inputs[13] = wallProximity(snap.Pos, world.Terrain)

	if scan.kinCount > 0 {
		inputs[14] = (scan.kinCentroidDX/float64(scan.kinCount) - snap.Pos.X) / snap.Genes.SensingRange
		inputs[15] = (scan.kinCentroidDY/float64(scan.kinCount) - snap.Pos.Y) / snap.Genes.SensingRange
	}

	inputs[16] = world.Grids.At(stigmergy.ChannelSignalA, cx, cy)
	inputs[17] = world.Grids.At(stigmergy.ChannelSignalB, cx, cy)

	maturity := baseMaturityAge * snap.Genes.MaturityGene
	if maturity > 0 {
		inputs[18] = clampUnit(float64(snap.Age) / maturity)
	}

	if scan.hasFood {
		cell := world.Terrain.At(int(scan.nearestFood.X), int(scan.nearestFood.Y))
		if environment.NutrientBiasForCell(cell.Type) == entity.NutrientBlue {
			inputs[19] = 1
		}
	}

	inputs[20] = clampUnit(world.Env.Oxygen / 100)
	inputs[21] = clampUnit(world.Env.Carbon / 2000)

	inputs[22] = world.Grids.At(stigmergy.ChannelInfluence, cx, cy)
	inputs[23] = world.Grids.At(stigmergy.ChannelSound, cx, cy)

	if lin := world.Lineage.Get(snap.Lineage); lin != nil {
		inputs[24] = normalizeCount(lin.LivingCount, 200)
		inputs[25] = clampUnit(lin.TotalEnergy / 10000)
	}

	inputs[26] = 0 // outpost proximity: no cheap index available at this layer
	if snap.Protected {
		inputs[27] = 1
	}
	inputs[28] = 0

	return inputs
}

func gridCoord(pos entity.Position, cellSize float64) (int, int) {
	if cellSize <= 0 {
		cellSize = 1
	}
	return int(pos.X / cellSize), int(pos.Y / cellSize)
}

func normalizeCount(n, scale int) float64 {
	if scale <= 0 {
		return 0
	}
	v := float64(n) / float64(scale)
	if v > 1 {
		v = 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func wallProximity(pos entity.Position, grid *terrain.Grid) float64 {
	w, h := grid.Dims()
	x, y := int(pos.X), int(pos.Y)
	distLeft, distRight := x, w-1-x
	distTop, distBottom := y, h-1-y
	min := distLeft
	for _, d := range []int{distRight, distTop, distBottom} {
		if d < min {
			min = d
		}
	}
	span := w
	if h > span {
		span = h
	}
	if span == 0 {
		return 0
	}
	return 1 - clampUnit(float64(min)/float64(span/2))
}

// scanNeighbors queries the spatial hashes once: it fills scratch.neighbors
// with every organism within sensing range (for decodeOutputs to pick
// targets from) and returns the aggregate/nearest-food facts sampleSensors
// needs. Ties in nearest-food distance break on byte-lexicographic entity id
// so results never depend on query iteration order.
func scanNeighbors(snap *Snapshot, world Context, scratch *workerScratch) scanResult {
	var res scanResult

	if world.FoodSpatial != nil {
		world.FoodSpatial.QueryCallback(snap.Pos.X, snap.Pos.Y, snap.Genes.SensingRange, func(p spatial.Point, distSq float64) {
			if !res.hasFood || distSq < res.foodDistSq || (distSq == res.foodDistSq && lessID(p.ID, res.nearestFood.ID)) {
				res.hasFood = true
				res.foodDistSq = distSq
				res.nearestFood = p
			}
		})
	}

	if world.Spatial != nil {
		world.Spatial.QueryCallback(snap.Pos.X, snap.Pos.Y, snap.Genes.SensingRange, func(p spatial.Point, distSq float64) {
			if p.ID == snap.ID {
				return
			}
			res.neighborCount++
			dx := p.X - snap.Pos.X
			dy := p.Y - snap.Pos.Y
			if p.Lineage == snap.Lineage {
				res.kinCount++
				res.kinCentroidDX += p.X
				res.kinCentroidDY += p.Y
			}
			scratch.neighbors = append(scratch.neighbors, neighborInfo{
				id:      p.ID,
				lineage: p.Lineage,
				dx:      dx,
				dy:      dy,
				distSq:  distSq,
			})
		})
	}

	return res
}

// nearestBy scans scratch.neighbors for the closest entry matching keep,
// breaking ties on byte-lexicographic entity id for determinism.
func nearestBy(neighbors []neighborInfo, keep func(neighborInfo) bool) (neighborInfo, bool) {
	var best neighborInfo
	found := false
	for _, n := range neighbors {
		if !keep(n) {
			continue
		}
		if !found || n.distSq < best.distSq || (n.distSq == best.distSq && lessID(n.id, best.id)) {
			best = n
			found = true
		}
	}
	return best, found
}
