package perception

import (
	"context"
	"math/rand"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/terrain"
)

func newTestBrain(t *testing.T, seed uint64) *neural.Brain {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(seed)))
	innov := neural.NewInnovationCounter()
	genome := neural.CreateFounderGenome(rng, innov, 1, 0.5)
	brain, err := neural.NewBrain(genome)
	if err != nil {
		t.Fatalf("NewBrain: %v", err)
	}
	return brain
}

func newTestContext(width, height int) Context {
	grid := terrain.New(width, height, 1)
	return Context{
		Spatial:     spatial.New(float64(width), float64(height), 20),
		FoodSpatial: spatial.New(float64(width), float64(height), 20),
		Grids:       stigmergy.New(width, height, nil),
		Terrain:     grid,
		Env:         environment.New(1, environment.NewMockSampler(1), environment.DefaultSolarRate),
		Lineage:     lineage.New(),
		CellSize:    20,
	}
}

func newTestSnapshot(t *testing.T, x, y float64, lin entity.LineageID) Snapshot {
	return Snapshot{
		Entity:    ecs.Entity{},
		ID:        entity.NewID(),
		Lineage:   lin,
		Pos:       entity.Position{X: x, Y: y},
		Energy:    80,
		MaxEnergy: 100,
		Age:       100,
		Genes:     entity.DefaultPhysicalGenes(),
		Brain:     newTestBrain(t, 1),
	}
}

func TestRunProducesDeterministicOrder(t *testing.T) {
	world := newTestContext(100, 100)
	world.Lineage.Insert(1, 0, false, 0)

	snaps := []Snapshot{
		newTestSnapshot(t, 10, 10, 1),
		newTestSnapshot(t, 50, 50, 1),
		newTestSnapshot(t, 90, 90, 1),
	}

	out1, err := Run(context.Background(), snaps, world, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out2, err := Run(context.Background(), snaps, world, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out1) != len(out2) {
		t.Fatalf("proposal count differs across worker counts: %d vs %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i].Source != out2[i].Source || out1[i].Kind != out2[i].Kind {
			t.Fatalf("proposal %d order differs across worker counts", i)
		}
	}
}

func TestRunEveryEntityProposesAtLeastMove(t *testing.T) {
	world := newTestContext(100, 100)
	world.Lineage.Insert(1, 0, false, 0)
	snaps := []Snapshot{newTestSnapshot(t, 20, 20, 1)}

	out, err := Run(context.Background(), snaps, world, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected at least the Move proposal")
	}
	if out[0].Kind != ProposalMove {
		t.Fatalf("expected first proposal to be Move, got %v", out[0].Kind)
	}
}

func TestDecodeOutputsCapsProposalCount(t *testing.T) {
	snap := newTestSnapshot(t, 5, 5, 1)
	scratch := &workerScratch{neighbors: []neighborInfo{
		{id: entity.NewID(), lineage: 2, dx: 1, dy: 1, distSq: 4},
		{id: entity.NewID(), lineage: 1, dx: 2, dy: 2, distSq: 9},
	}}
	outputs := [neural.BrainOutputs]float64{}
	for i := range outputs {
		outputs[i] = 1.0
	}

	proposals := decodeOutputs(&snap, outputs, scratch, make([]Proposal, 0, maxProposalsPerEntity))
	if len(proposals) > maxProposalsPerEntity {
		t.Fatalf("expected at most %d proposals, got %d", maxProposalsPerEntity, len(proposals))
	}
}

func TestDecodeOutputsAttackTargetsForeignLineage(t *testing.T) {
	snap := newTestSnapshot(t, 5, 5, 1)
	foreignID := entity.NewID()
	scratch := &workerScratch{neighbors: []neighborInfo{
		{id: entity.NewID(), lineage: 1, dx: 1, dy: 1, distSq: 2},
		{id: foreignID, lineage: 2, dx: 3, dy: 3, distSq: 18},
	}}
	var outputs [neural.BrainOutputs]float64
	outputs[neural.OutAggression] = 0.9

	proposals := decodeOutputs(&snap, outputs, scratch, make([]Proposal, 0, maxProposalsPerEntity))
	found := false
	for _, p := range proposals {
		if p.Kind == ProposalAttack {
			found = true
			if p.Target != foreignID {
				t.Fatalf("expected attack target to be the foreign neighbor")
			}
		}
	}
	if !found {
		t.Fatalf("expected an Attack proposal")
	}
}

func TestNearestByBreaksTiesDeterministically(t *testing.T) {
	a := entity.NewID()
	b := entity.NewID()
	lo, hi := a, b
	if lessID(b, a) {
		lo, hi = b, a
	}
	neighbors := []neighborInfo{
		{id: hi, distSq: 5},
		{id: lo, distSq: 5},
	}
	got, ok := nearestBy(neighbors, func(neighborInfo) bool { return true })
	if !ok || got.id != lo {
		t.Fatalf("expected tie-break to pick the lexicographically smaller id")
	}
}
