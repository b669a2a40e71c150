package biology

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/telemetry"
	"github.com/pthm-cable/primordium/terrain"
)

func newTestSystem() (*System, *entity.Store) {
	store := entity.NewStore()
	return &System{
		Store:   store,
		Terrain: terrain.New(16, 16, 1),
		Env:     environment.New(1, environment.NewMockSampler(1), environment.DefaultSolarRate),
		Lineage: lineage.New(),
		Log:     telemetry.NewLog(),
	}, store
}

func spawnOrganism(store *entity.Store, energy, age float64, maturity float64) entity.ID {
	rng := rand.New(rand.NewSource(1))
	innov := neural.NewInnovationCounter()
	genome := neural.CreateFounderGenome(rng, innov, 1, 0.3)
	brain, err := neural.NewBrain(genome)
	if err != nil {
		panic(err)
	}
	id := entity.NewID()
	genes := entity.DefaultPhysicalGenes()
	genes.MaturityGene = maturity
	store.Insert(
		entity.Position{X: 5, Y: 5},
		entity.Velocity{},
		entity.Metabolism{Energy: energy, MaxEnergy: 100, Age: int64(age)},
		entity.Health{Reputation: 0.5},
		entity.Intel{},
		entity.Genotype{ID: id, Brain: brain, Genes: genes, Lineage: 1},
		entity.Bond{},
	)
	return id
}

func TestUpdateDeductsMetabolicCost(t *testing.T) {
	sys, store := newTestSystem()
	sys.Lineage.Insert(1, 0, false, 0)
	sys.Lineage.UpdateStats(1, lineage.Stats{DeltaLiving: 1})
	spawnOrganism(store, 50, 0, 1.0)

	sys.Update(1)

	var found bool
	store.Each(func(row entity.OrganismRow) {
		found = true
		if row.Metabolism.Energy >= 50 {
			t.Fatalf("expected energy to decrease from metabolic cost, got %v", row.Metabolism.Energy)
		}
	})
	if !found {
		t.Fatalf("expected organism to survive one tick starting at 50 energy")
	}
}

func TestUpdateKillsOnStarvation(t *testing.T) {
	sys, store := newTestSystem()
	sys.Lineage.Insert(1, 0, false, 0)
	sys.Lineage.UpdateStats(1, lineage.Stats{DeltaLiving: 1})
	spawnOrganism(store, 0.001, 0, 1.0)

	sys.Update(1)

	if store.Count() != 0 {
		t.Fatalf("expected starved organism to be despawned")
	}
	events, _ := sys.Log.Drain()
	if len(events) != 1 || events[0].Type != telemetry.EventDeath || events[0].Cause != telemetry.CauseStarvation {
		t.Fatalf("expected one starvation death event, got %+v", events)
	}
}

func TestUpdateKillsOnOldAge(t *testing.T) {
	sys, store := newTestSystem()
	sys.Lineage.Insert(1, 0, false, 0)
	sys.Lineage.UpdateStats(1, lineage.Stats{DeltaLiving: 1})
	spawnOrganism(store, 100, maxAgeBase+1, 1.0)

	sys.Update(1)

	if store.Count() != 0 {
		t.Fatalf("expected aged-out organism to be despawned")
	}
	events, _ := sys.Log.Drain()
	if len(events) != 1 || events[0].Cause != telemetry.CauseOldAge {
		t.Fatalf("expected one old-age death event, got %+v", events)
	}
}

func TestUpdateFertilizesCorpseSite(t *testing.T) {
	sys, store := newTestSystem()
	sys.Lineage.Insert(1, 0, false, 0)
	sys.Lineage.UpdateStats(1, lineage.Stats{DeltaLiving: 1})
	spawnOrganism(store, 0.001, 0, 1.0)

	before := sys.Terrain.At(5, 5).Fertility
	sys.Update(1)
	after := sys.Terrain.At(5, 5).Fertility

	if after <= before {
		t.Fatalf("expected corpse fertilization to raise fertility: before=%v after=%v", before, after)
	}
}

func TestPromoteCasteLocksInSpecialization(t *testing.T) {
	sys, _ := newTestSystem()
	h := &entity.Health{CasteSoldier: casteThreshold + 1}
	sys.promoteCaste(0, entity.NewID(), h, nil)
	if h.Specialization != entity.SpecSoldier {
		t.Fatalf("expected Soldier specialization, got %v", h.Specialization)
	}

	h2 := &entity.Health{Specialization: entity.SpecSoldier, CasteEngineer: casteThreshold + 1}
	sys.promoteCaste(0, entity.NewID(), h2, nil)
	if h2.Specialization != entity.SpecSoldier {
		t.Fatalf("expected existing specialization to stick, got %v", h2.Specialization)
	}
}

func TestPromoteCasteEngineerKeepsTopology(t *testing.T) {
	sys, store := newTestSystem()
	id := spawnOrganism(store, 50, 0, 1.0)

	var brain *neural.Brain
	store.Each(func(row entity.OrganismRow) {
		if row.Genotype.ID == id {
			brain = row.Genotype.Brain
		}
	})
	if brain == nil {
		t.Fatalf("expected to find spawned organism's brain")
	}
	before := brain.NodeCount()

	h := &entity.Health{CasteEngineer: casteThreshold + 1}
	sys.promoteCaste(0, id, h, brain)
	if h.Specialization != entity.SpecEngineer {
		t.Fatalf("expected Engineer specialization, got %v", h.Specialization)
	}
	if brain.NodeCount() != before {
		t.Fatalf("promoteCaste should not alter network topology")
	}
}

func TestUpdateAppliesHebbianAndDecaysReinforcement(t *testing.T) {
	sys, store := newTestSystem()
	sys.Lineage.Insert(1, 0, false, 0)
	sys.Lineage.UpdateStats(1, lineage.Stats{DeltaLiving: 1})
	id := spawnOrganism(store, 50, 0, 1.0)

	store.Each(func(row entity.OrganismRow) {
		if row.Genotype.ID == id {
			row.Metabolism.ReinforcementAcc = 1.0
		}
	})

	sys.Update(1)

	store.Each(func(row entity.OrganismRow) {
		if row.Genotype.ID == id {
			if row.Metabolism.ReinforcementAcc >= 1.0 {
				t.Fatalf("expected reinforcement accumulator to decay, got %v", row.Metabolism.ReinforcementAcc)
			}
		}
	})
}

func TestCircadianMultOscillatesAroundOne(t *testing.T) {
	sum := 0.0
	const n = 1000
	for tick := uint64(0); tick < n; tick++ {
		sum += circadianMult(tick)
	}
	mean := sum / n
	if mean < 0.99 || mean > 1.01 {
		t.Fatalf("expected circadian multiplier to average to ~1.0 over a full period, got %v", mean)
	}
}

func TestUpdateInfectionProgressesIncubationToActiveOrImmune(t *testing.T) {
	sys, _ := newTestSystem()
	met := &entity.Metabolism{Energy: 100, MaxEnergy: 100}
	health := &entity.Health{Infection: entity.InfectionIncubating, Immunity: 0.9}
	row := entity.OrganismRow{Metabolism: met, Health: health}

	for i := 0; i < incubationTicks; i++ {
		sys.updateInfection(row)
	}
	if health.Infection != entity.InfectionImmune {
		t.Fatalf("expected high-immunity organism to clear infection to Immune, got %v", health.Infection)
	}
}
