package neural

import (
	"math"
	"math/rand"
	"testing"
)

func TestThinkProducesFiniteOutputs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	innov := NewInnovationCounter()
	genome := CreateFounderGenome(rng, innov, 1, 0.5)

	brain, err := NewBrain(genome)
	if err != nil {
		t.Fatalf("NewBrain: %v", err)
	}

	var inputs [BrainInputs]float64
	for i := range inputs {
		inputs[i] = rng.Float64()*2 - 1
	}

	outputs, err := brain.Think(inputs)
	if err != nil {
		t.Fatalf("Think: %v", err)
	}
	for i, v := range outputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("output %d not finite: %v", i, v)
		}
	}
}

func TestMutateAddNodeGrowsTopology(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	innov := NewInnovationCounter()
	genome := CreateFounderGenome(rng, innov, 1, 1.0)
	brain, err := NewBrain(genome)
	if err != nil {
		t.Fatalf("NewBrain: %v", err)
	}

	before := len(brain.Genome.Nodes)
	if !brain.MutateAddNode(rng, innov) {
		t.Fatalf("expected MutateAddNode to succeed with a fully connected founder")
	}
	after := len(brain.Genome.Nodes)
	if after != before+1 {
		t.Fatalf("expected exactly one new node, got %d -> %d", before, after)
	}
}

func TestHiddenNodeIDsTracksAddedNodes(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	innov := NewInnovationCounter()
	genome := CreateFounderGenome(rng, innov, 1, 1.0)
	brain, err := NewBrain(genome)
	if err != nil {
		t.Fatalf("NewBrain: %v", err)
	}
	if len(brain.HiddenNodeIDs()) != 0 {
		t.Fatalf("expected a founder genome to have no hidden nodes")
	}

	if !brain.MutateAddNode(rng, innov) {
		t.Fatalf("expected MutateAddNode to succeed")
	}
	if err := brain.RebuildNetwork(); err != nil {
		t.Fatalf("RebuildNetwork: %v", err)
	}

	ids := brain.HiddenNodeIDs()
	if len(ids) != 1 {
		t.Fatalf("expected exactly one hidden node after MutateAddNode, got %d", len(ids))
	}
}

func TestProtectedClusterExcludedFromMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	innov := NewInnovationCounter()
	genome := CreateFounderGenome(rng, innov, 1, 1.0)
	brain, err := NewBrain(genome)
	if err != nil {
		t.Fatalf("NewBrain: %v", err)
	}

	var protectedIDs []int
	for _, n := range brain.Genome.Nodes {
		protectedIDs = append(protectedIDs, n.Id)
	}
	brain.MarkProtected(protectedIDs)

	weightsBefore := make([]float64, len(brain.Genome.Genes))
	for i, g := range brain.Genome.Genes {
		weightsBefore[i] = g.Link.ConnectionWeight
	}

	rates := MutationRates{WeightMutProb: 1.0, WeightAmount: 1.0}
	brain.MutateWeights(rng, rates)

	for i, g := range brain.Genome.Genes {
		if g.Link.ConnectionWeight != weightsBefore[i] {
			t.Fatalf("protected connection %d weight changed: %v -> %v", i, weightsBefore[i], g.Link.ConnectionWeight)
		}
	}
}

func TestApplyHebbianSkipsProtectedConnections(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	innov := NewInnovationCounter()
	genome := CreateFounderGenome(rng, innov, 1, 1.0)
	brain, err := NewBrain(genome)
	if err != nil {
		t.Fatalf("NewBrain: %v", err)
	}

	var inputs [BrainInputs]float64
	for i := range inputs {
		inputs[i] = 1.0
	}
	if _, err := brain.Think(inputs); err != nil {
		t.Fatalf("Think: %v", err)
	}

	var protectedIDs []int
	for _, n := range brain.Genome.Nodes {
		protectedIDs = append(protectedIDs, n.Id)
	}
	brain.MarkProtected(protectedIDs)

	weightsBefore := make([]float64, len(brain.Genome.Genes))
	for i, g := range brain.Genome.Genes {
		weightsBefore[i] = g.Link.ConnectionWeight
	}

	brain.ApplyHebbian(1.0, 1.0)

	for i, g := range brain.Genome.Genes {
		if g.Link.ConnectionWeight != weightsBefore[i] {
			t.Fatalf("protected connection %d weight changed under ApplyHebbian: %v -> %v", i, weightsBefore[i], g.Link.ConnectionWeight)
		}
	}
}

func TestCrossoverPreservesInputOutputSchema(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	innov := NewInnovationCounter()
	p1 := CreateFounderGenome(rng, innov, 1, 0.6)
	p2 := CreateFounderGenome(rng, innov, 2, 0.6)

	child, err := Crossover(rng, p1, p2, 1.0, 0.5, 3)
	if err != nil {
		t.Fatalf("Crossover: %v", err)
	}

	brain, err := NewBrain(child)
	if err != nil {
		t.Fatalf("NewBrain(child): %v", err)
	}
	var inputs [BrainInputs]float64
	outputs, err := brain.Think(inputs)
	if err != nil {
		t.Fatalf("Think(child): %v", err)
	}
	if len(outputs) != BrainOutputs {
		t.Fatalf("expected %d outputs, got %d", BrainOutputs, len(outputs))
	}
}
