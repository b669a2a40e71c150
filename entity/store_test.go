package entity

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
)

func TestInsertAndDespawn(t *testing.T) {
	s := NewStore()
	e := s.Insert(Position{X: 1, Y: 2}, Velocity{}, Metabolism{Energy: 50}, Health{}, Intel{}, Genotype{Genes: DefaultPhysicalGenes()}, Bond{})
	if !s.Alive(e) {
		t.Fatalf("expected newly inserted entity to be alive")
	}
	if s.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.Count())
	}

	s.Despawn(e)
	if s.Alive(e) {
		t.Fatalf("expected despawned entity to be dead")
	}
	if s.Count() != 0 {
		t.Fatalf("expected count 0 after despawn, got %d", s.Count())
	}
}

func TestEachVisitsAllOrganisms(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Insert(Position{X: float64(i)}, Velocity{}, Metabolism{}, Health{}, Intel{}, Genotype{Genes: DefaultPhysicalGenes()}, Bond{})
	}
	visited := 0
	s.Each(func(r OrganismRow) { visited++ })
	if visited != 5 {
		t.Fatalf("expected 5 rows, got %d", visited)
	}
}

func TestSnapshotPositionsMatchesLiveCount(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		s.Insert(Position{X: float64(i), Y: float64(i)}, Velocity{}, Metabolism{}, Health{}, Intel{}, Genotype{Genes: DefaultPhysicalGenes()}, Bond{})
	}
	snap := s.SnapshotPositions(nil)
	if len(snap) != 3 {
		t.Fatalf("expected 3 position records, got %d", len(snap))
	}
}

func TestFoodInsertAndCount(t *testing.T) {
	s := NewStore()
	s.InsertFood(Position{X: 5, Y: 5}, FoodNutrient{Energy: 10, Nutrient: NutrientGreen})
	s.InsertFood(Position{X: 6, Y: 6}, FoodNutrient{Energy: 10, Nutrient: NutrientBlue})
	if s.FoodCount() != 2 {
		t.Fatalf("expected 2 food entities, got %d", s.FoodCount())
	}

	var seen int
	var totalEnergy float64
	s.EachFood(func(_ ecs.Entity, _ *Position, nutrient *FoodNutrient) {
		seen++
		totalEnergy += nutrient.Energy
	})
	if seen != 2 {
		t.Fatalf("expected to visit 2 food entities, got %d", seen)
	}
	if totalEnergy != 20 {
		t.Fatalf("expected total energy 20, got %v", totalEnergy)
	}
}
