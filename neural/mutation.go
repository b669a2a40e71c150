package neural

import (
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Mutation tuning constants.
const (
	perturbProb          = 0.9
	largePerturbProb     = 0.01
	largePerturbAmount   = 0.5
	maxConnectionWeight  = 8.0
	maxLinkAttempts      = 20
	pruneWeightThreshold = 0.01
	pruneTickThreshold   = 200
)

// MutationRates scale with population size.
type MutationRates struct {
	WeightMutProb     float64
	AddNodeProb       float64
	AddLinkProb       float64
	ToggleEnableProb  float64
	WeightAmount      float64
}

// ScaleForPopulation scales rates by population bracket: below bottleneck
// triples them, above stasis halves them, otherwise leaves them unscaled.
func ScaleForPopulation(base MutationRates, population, bottleneck, stasis int) MutationRates {
	factor := 1.0
	if population < bottleneck {
		factor = 3.0
	} else if population > stasis {
		factor = 0.5
	}
	return ScaleByFactor(base, factor)
}

// ScaleByFactor applies a flat multiplier to every probability field,
// clamped to [0,1]. The reproduction path passes genetics.MutationScale's
// factor here; ScaleForPopulation applies its own 3x/0.5x brackets.
func ScaleByFactor(base MutationRates, factor float64) MutationRates {
	return MutationRates{
		WeightMutProb:    clamp01(base.WeightMutProb * factor),
		AddNodeProb:      clamp01(base.AddNodeProb * factor),
		AddLinkProb:      clamp01(base.AddLinkProb * factor),
		ToggleEnableProb: clamp01(base.ToggleEnableProb * factor),
		WeightAmount:     base.WeightAmount,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MutateWeights perturbs each non-protected connection's weight (enabled or
// not) with probability rates.WeightMutProb, with a 1% chance of a large jump.
func (b *Brain) MutateWeights(rng *rand.Rand, rates MutationRates) {
	for _, gene := range b.Genome.Genes {
		if b.isProtectedGene(gene) {
			continue
		}
		if rng.Float64() >= rates.WeightMutProb {
			continue
		}
		amount := rates.WeightAmount
		if rng.Float64() < largePerturbProb {
			amount = largePerturbAmount
		}
		delta := (rng.Float64()*2 - 1) * amount
		newWeight := gene.Link.ConnectionWeight + delta
		if newWeight > maxConnectionWeight {
			newWeight = maxConnectionWeight
		} else if newWeight < -maxConnectionWeight {
			newWeight = -maxConnectionWeight
		}
		gene.Link.ConnectionWeight = newWeight
	}
}

// MutateAddNode picks an enabled, non-protected connection, disables it, and
// splices in a new hidden node with input_weight=1.0 and
// output_weight=old_weight.
func (b *Brain) MutateAddNode(rng *rand.Rand, innov *InnovationCounter) bool {
	var candidates []*genetics.Gene
	for _, g := range b.Genome.Genes {
		if g.IsEnabled && !b.isProtectedGene(g) {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	gene := candidates[rng.Intn(len(candidates))]
	gene.IsEnabled = false

	newNodeID := int(innov.Next())
	newNode := network.NewNNode(newNodeID, network.HiddenNeuron)
	newNode.ActivationType = ActivationTanh
	b.Genome.Nodes = append(b.Genome.Nodes, newNode)

	gIn := genetics.NewGeneWithTrait(nil, 1.0, gene.Link.InNode, newNode, false, innov.Next(), 0)
	gOut := genetics.NewGeneWithTrait(nil, gene.Link.ConnectionWeight, newNode, gene.Link.OutNode, false, innov.Next(), 0)
	b.Genome.Genes = append(b.Genome.Genes, gIn, gOut)
	return true
}

// MutateAddLink picks two unconnected, non-protected nodes and inserts a new
// connection with a random weight.
func (b *Brain) MutateAddLink(rng *rand.Rand, innov *InnovationCounter) bool {
	nodes := b.Genome.Nodes
	if len(nodes) < 2 {
		return false
	}
	existing := make(map[[2]int]bool, len(b.Genome.Genes))
	for _, g := range b.Genome.Genes {
		existing[[2]int{g.Link.InNode.Id, g.Link.OutNode.Id}] = true
	}

	for attempt := 0; attempt < maxLinkAttempts; attempt++ {
		a := nodes[rng.Intn(len(nodes))]
		c := nodes[rng.Intn(len(nodes))]
		if a.Id == c.Id {
			continue
		}
		if a.NeuronType == network.OutputNeuron || c.NeuronType == network.InputNeuron {
			continue
		}
		if b.protected[a.Id] || b.protected[c.Id] {
			continue
		}
		if existing[[2]int{a.Id, c.Id}] {
			continue
		}
		weight := rng.Float64()*4 - 2
		gene := genetics.NewGeneWithTrait(nil, weight, a, c, false, innov.Next(), 0)
		b.Genome.Genes = append(b.Genome.Genes, gene)
		return true
	}
	return false
}

// MutateToggleEnable flips a random connection's enabled flag with low
// probability.
func (b *Brain) MutateToggleEnable(rng *rand.Rand, prob float64) {
	if len(b.Genome.Genes) == 0 || rng.Float64() >= prob {
		return
	}
	gene := b.Genome.Genes[rng.Intn(len(b.Genome.Genes))]
	if b.isProtectedGene(gene) {
		return
	}
	gene.IsEnabled = !gene.IsEnabled
}

// Prune removes connections whose |weight| has stayed below the pruning
// threshold for pruneTickThreshold consecutive ticks. Call once per tick.
func (b *Brain) Prune() {
	kept := b.Genome.Genes[:0:0]
	for _, g := range b.Genome.Genes {
		if g.Link.ConnectionWeight < pruneWeightThreshold && g.Link.ConnectionWeight > -pruneWeightThreshold {
			b.staleBelowThreshold[g.InnovationNum]++
		} else {
			delete(b.staleBelowThreshold, g.InnovationNum)
		}
		if b.staleBelowThreshold[g.InnovationNum] >= pruneTickThreshold {
			continue // drop this gene
		}
		kept = append(kept, g)
	}
	b.Genome.Genes = kept
}

// MarkProtected tags node ids belonging to a mature caste's subnet as
// Protected, excluding them from weight/topology mutation.
func (b *Brain) MarkProtected(nodeIDs []int) {
	for _, id := range nodeIDs {
		b.protected[id] = true
	}
}

func (b *Brain) isProtectedGene(g *genetics.Gene) bool {
	return b.protected[g.Link.InNode.Id] || b.protected[g.Link.OutNode.Id]
}

// ApplyHebbian updates non-Protected connection weights from a reinforcement
// signal: delta_w = eta * pre * post * reinforcement bounded to |w| <= 2.0.
func (b *Brain) ApplyHebbian(eta, reinforcement float64) {
	const bound = 2.0
	for _, g := range b.Genome.Genes {
		if !g.IsEnabled || b.isProtectedGene(g) {
			continue
		}
		pre := g.Link.InNode.GetActiveOut()
		post := g.Link.OutNode.GetActiveOut()
		delta := eta * pre * post * reinforcement
		w := g.Link.ConnectionWeight + delta
		if w > bound {
			w = bound
		} else if w < -bound {
			w = -bound
		}
		g.Link.ConnectionWeight = w
	}
}
