package terrain

import (
	"math/rand"
	"testing"
)

func TestNewProducesInBoundsFertility(t *testing.T) {
	g := New(64, 64, 42)
	w, h := g.Dims()
	if w != 64 || h != 64 {
		t.Fatalf("dims = %d,%d want 64,64", w, h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := g.At(x, y)
			if c.Fertility < 0 || c.Fertility > 1 {
				t.Fatalf("cell (%d,%d) fertility out of range: %v", x, y, c.Fertility)
			}
		}
	}
}

func TestAtClampsOutOfBounds(t *testing.T) {
	g := New(10, 10, 1)
	inner := g.At(5, 5)
	corner := g.At(-100, 999)
	if corner != g.At(0, 9) {
		t.Fatalf("expected out-of-bounds coordinate to clamp to (0,9)")
	}
	_ = inner
}

func TestUpdateFertilityClamps(t *testing.T) {
	c := Cell{Fertility: 0.02}
	c.UpdateFertility(0, 0, 1.0)
	if c.Fertility != 0 {
		t.Fatalf("expected fertility clamped to 0, got %v", c.Fertility)
	}
	c.Fertility = 0.98
	c.UpdateFertility(1.0, 0, 0)
	if c.Fertility != 1 {
		t.Fatalf("expected fertility clamped to 1, got %v", c.Fertility)
	}
}

func TestPlainsToForestRequiresSustainedStreak(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	c := Cell{Type: Plains, Fertility: 0.9, Biomass: 80}

	became := false
	for i := 0; i < plainsToForestStreak+50; i++ {
		c.SampleSuccession(rng)
		if c.Type == Forest {
			became = true
			break
		}
	}
	if !became {
		t.Fatalf("expected plains to eventually transition to forest under sustained high fertility")
	}
}

func TestDesertRequiresNoGrazing(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	c := Cell{Type: Desert, Fertility: 0.9}
	c.CumulativeGrazing = 1 // grazing present every tick resets the streak

	for i := 0; i < desertNoGrazeStreak+50; i++ {
		c.SampleSuccession(rng)
	}
	if c.Type != Desert {
		t.Fatalf("expected desert with continuous grazing to remain desert, got %v", c.Type)
	}
}

func TestForestCarbonSequestrationCountsOnlyForestCells(t *testing.T) {
	g := &Grid{width: 2, height: 1, cells: []Cell{{Type: Forest}, {Type: Plains}}}
	got := g.ForestCarbonSequestration()
	if got != forestCarbonSeqPerTick {
		t.Fatalf("got %v want %v", got, forestCarbonSeqPerTick)
	}
}

func TestDigConvertsToBarren(t *testing.T) {
	c := &Cell{Type: Forest, Biomass: 40}
	cost := c.Dig(0)
	if c.Type != Barren || c.Biomass != 0 {
		t.Fatalf("expected cell to become barren with 0 biomass, got %v biomass=%v", c.Type, c.Biomass)
	}
	if cost <= 0 {
		t.Fatalf("expected positive dig cost, got %v", cost)
	}
}

func TestBuildSetsOutpostSpecialization(t *testing.T) {
	c := &Cell{Type: Plains}
	c.Build(OutpostForge, 0.5)
	if c.Type != Outpost || c.OutpostSpec != OutpostForge {
		t.Fatalf("expected outpost/forge, got %v/%v", c.Type, c.OutpostSpec)
	}
}
