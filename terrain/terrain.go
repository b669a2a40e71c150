// Package terrain implements the Terrain Grid: cell type + fertility + biome
// state, with probabilistic succession, disasters, and carbon sinks.
// Procedural generation layers coherent opensimplex noise passes, driven
// by fertility/biomass rather than visual collision cells.
package terrain

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/primordium/entity"
)

// CellType enumerates terrain kinds.
type CellType uint8

const (
	Plains CellType = iota
	River
	Mountain
	Oasis
	Forest
	Desert
	Barren
	Wall
	Nest
	Outpost
)

// OutpostSpecialization names an outpost's function, set only on Outpost
// cells.
type OutpostSpecialization uint8

const (
	OutpostNone OutpostSpecialization = iota
	OutpostForge
	OutpostGranary
	OutpostWatchtower
)

// Cell holds one terrain cell's mutable state.
type Cell struct {
	Type                CellType
	Fertility           float64 // [0,1]
	Biomass             float64
	CumulativeGrazing   float64
	OwningLineage       entity.LineageID
	HasOwner            bool
	OutpostSpec         OutpostSpecialization

	// Succession bookkeeping: consecutive ticks each precondition has held.
	fertileStreak int // Plains->Forest: fertility>0.7 sustained
	barrenStreak  int // Forest->Plains: fertility<0.4 or biomass<20
	noGrazeStreak int // Desert->Plains: no grazing
}

// Grid is the world terrain store.
type Grid struct {
	width, height int
	cells         []Cell
}

// Succession probabilities.
const (
	plainsToForestProb = 0.05
	forestToPlainsProb = 0.10
	plainsToDesertProb = 0.03
	desertToPlainsProb = 0.02

	plainsToForestStreak = 500
	forestToPlainsStreak = 200
	desertNoGrazeStreak  = 1000

	forestCarbonSeqPerTick = 0.5
)

// New generates a terrain grid from opensimplex noise, seeded
// deterministically from `seed`.
func New(width, height int, seed int64) *Grid {
	g := &Grid{width: width, height: height, cells: make([]Cell, width*height)}
	noise := opensimplex.NewNormalized(seed)
	riverNoise := opensimplex.NewNormalized(seed + 1)

	const scale = 0.06
	const riverScale = 0.02

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			elevation := noise.Eval2(float64(x)*scale, float64(y)*scale)
			riverVal := riverNoise.Eval2(float64(x)*riverScale, float64(y)*riverScale)

			c := &g.cells[g.idx(x, y)]
			switch {
			case riverVal > 0.92:
				c.Type = River
				c.Fertility = 0.6
			case elevation > 0.8:
				c.Type = Mountain
				c.Fertility = 0.1
			case elevation > 0.65:
				c.Type = Forest
				c.Fertility = 0.7
				c.Biomass = 60
			case elevation < 0.15:
				c.Type = Desert
				c.Fertility = 0.1
			case elevation > 0.45 && elevation < 0.5:
				c.Type = Oasis
				c.Fertility = 0.9
			default:
				c.Type = Plains
				c.Fertility = 0.5
				c.Biomass = 20
			}
		}
	}
	return g
}

func (g *Grid) idx(x, y int) int { return y*g.width + x }

func (g *Grid) clamp(x, y int) (int, int) {
	if x < 0 {
		x = 0
	} else if x >= g.width {
		x = g.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.height {
		y = g.height - 1
	}
	return x, y
}

// At returns a pointer to the cell at (x,y), clamped into bounds.
func (g *Grid) At(x, y int) *Cell {
	x, y = g.clamp(x, y)
	return &g.cells[g.idx(x, y)]
}

// Dims returns grid dimensions.
func (g *Grid) Dims() (width, height int) { return g.width, g.height }

// ForestCarbonSequestration returns the total carbon sequestered by forest cells this tick,
// to be credited to Environment.
func (g *Grid) ForestCarbonSequestration() float64 {
	var total float64
	for i := range g.cells {
		if g.cells[i].Type == Forest {
			total += forestCarbonSeqPerTick
		}
	}
	return total
}

// UpdateFertility applies the per-cell fertility recurrence: f <- clamp(f +
// recovery + biomass*0.0002 - grazing_pressure - erosion, 0, 1)
func (c *Cell) UpdateFertility(recovery, grazingPressure, erosion float64) {
	f := c.Fertility + recovery + c.Biomass*0.0002 - grazingPressure - erosion
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	c.Fertility = f
}

// Graze records grazing pressure on a cell, feeding both fertility erosion
// and the Plains->Desert succession precondition.
func (c *Cell) Graze(amount float64) {
	c.CumulativeGrazing += amount
}

// SampleSuccession evaluates the probabilistic succession table for a single
// cell. Call on a sampled subset of cells per tick to amortize O(W*H).
func (c *Cell) SampleSuccession(rng *rand.Rand) {
	switch c.Type {
	case Plains:
		if c.Fertility > 0.7 && c.Biomass > 50 {
			c.fertileStreak++
		} else {
			c.fertileStreak = 0
		}
		if c.fertileStreak >= plainsToForestStreak && rng.Float64() < plainsToForestProb {
			c.Type = Forest
			c.fertileStreak = 0
			return
		}
		if c.Fertility < 0.15 && c.CumulativeGrazing > 200 && rng.Float64() < plainsToDesertProb {
			c.Type = Desert
			return
		}
	case Forest:
		if c.Fertility < 0.4 || c.Biomass < 20 {
			c.barrenStreak++
		} else {
			c.barrenStreak = 0
		}
		if c.barrenStreak >= forestToPlainsStreak && rng.Float64() < forestToPlainsProb {
			c.Type = Plains
			c.barrenStreak = 0
		}
	case Desert:
		if c.CumulativeGrazing == 0 {
			c.noGrazeStreak++
		} else {
			c.noGrazeStreak = 0
		}
		if c.Fertility > 0.25 && c.noGrazeStreak >= desertNoGrazeStreak && rng.Float64() < desertToPlainsProb {
			c.Type = Plains
			c.noGrazeStreak = 0
		}
	}
}

// ApplyCorpseFertilization bumps fertility near a death site: fertility +=
// (max_energy/100) * 0.02
func (c *Cell) ApplyCorpseFertilization(maxEnergy float64) {
	c.Fertility += (maxEnergy / 100) * 0.02
	if c.Fertility > 1 {
		c.Fertility = 1
	}
}

// Dig and Build mutate terrain via Action proposals.

// Dig converts a cell to Barren and zeroes its biomass (fertility is left
// unchanged), and returns the energy the digger should be charged.
func (c *Cell) Dig(engineerDiscount float64) (cost float64) {
	base := 5.0
	cost = base * (1 - engineerDiscount)
	c.Type = Barren
	c.Biomass = 0
	return cost
}

// Build converts a cell to Outpost with the given specialization and returns
// the energy cost charged to the builder.
func (c *Cell) Build(spec OutpostSpecialization, engineerDiscount float64) (cost float64) {
	base := 20.0
	cost = base * (1 - engineerDiscount)
	c.Type = Outpost
	c.OutpostSpec = spec
	return cost
}

// Claim assigns a lineage as the owner of a cell (used by Nest/Outpost
// placement and tribe-territory bookkeeping).
func (c *Cell) Claim(lineage entity.LineageID) {
	c.OwningLineage = lineage
	c.HasOwner = true
}
