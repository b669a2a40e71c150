package neural

import (
	"math/rand"

	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// InnovationCounter is the global monotonic innovation-number allocator. It
// lives inside World; this type is just the counter itself, owned by exactly
// one World instance.
type InnovationCounter struct {
	next int64
}

// NewInnovationCounter starts the counter at 1000. Founder genomes and
// mutations both draw their innovation numbers from it (MutateAddNode also
// takes new hidden-node ids from it), so every value sits above the input and
// output node ids 1..41.
func NewInnovationCounter() *InnovationCounter {
	return &InnovationCounter{next: 1000}
}

// Next allocates and returns the next innovation number.
func (c *InnovationCounter) Next() int64 {
	n := c.next
	c.next++
	return n
}

// GenomeIDCounter allocates unique genome ids.
type GenomeIDCounter struct{ next int }

// NewGenomeIDCounter starts a fresh genome id allocator.
func NewGenomeIDCounter() *GenomeIDCounter { return &GenomeIDCounter{next: 1} }

// Next allocates and returns the next genome id.
func (c *GenomeIDCounter) Next() int {
	id := c.next
	c.next++
	return id
}

// CreateFounderGenome builds a sparsely-connected input/output genome for a
// generation-0 organism.
func CreateFounderGenome(rng *rand.Rand, innov *InnovationCounter, genomeID int, connectionProb float64) *genetics.Genome {
	nodes := make([]*network.NNode, 0, BrainInputs+BrainOutputs)

	for i := 1; i <= BrainInputs; i++ {
		n := network.NewNNode(i, network.InputNeuron)
		n.ActivationType = neatmath.LinearActivation
		nodes = append(nodes, n)
	}
	for i := 1; i <= BrainOutputs; i++ {
		n := network.NewNNode(BrainInputs+i, network.OutputNeuron)
		n.ActivationType = ActivationTanh
		nodes = append(nodes, n)
	}

	genes := make([]*genetics.Gene, 0)
	for i := 0; i < BrainInputs; i++ {
		for j := 0; j < BrainOutputs; j++ {
			currentInnov := innov.Next()
			if rng.Float64() < connectionProb {
				weight := rng.Float64()*4 - 2
				gene := genetics.NewGeneWithTrait(nil, weight, nodes[i], nodes[BrainInputs+j], false, currentInnov, 0)
				genes = append(genes, gene)
			}
		}
	}
	if len(genes) == 0 {
		gene := genetics.NewGeneWithTrait(nil, rng.Float64()*2-1, nodes[0], nodes[BrainInputs], false, innov.Next(), 0)
		genes = append(genes, gene)
	}

	return genetics.NewGenome(genomeID, nil, nodes, genes)
}

func copyNode(n *network.NNode) *network.NNode {
	cp := network.NewNNode(n.Id, n.NeuronType)
	cp.ActivationType = n.ActivationType
	return cp
}
