// Package neural implements the NEAT-lite brain: a directed graph network with
// topological forward evaluation, topology mutation, innovation-number-aligned
// crossover, and Hebbian plasticity, built on github.com/yaricom/goNEAT/v4.
package neural

import (
	"fmt"
	"math"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// BrainInputs is the fixed sensor count.
const BrainInputs = 29

// BrainOutputs is the fixed motor/action output count.
const BrainOutputs = 12

// Output slot indices.
const (
	OutMoveX = iota
	OutMoveY
	OutBoost
	OutAggression
	OutShare
	OutSignalColor
	OutVocalize
	OutBond
	OutDig
	OutBuild
	OutOvermindSignal
	OutSignalAB
)

// RecurrentHiddenSlots is how many of the previous tick's hidden activations
// feed back as inputs 7-12.
const RecurrentHiddenSlots = 6

// Brain wraps a goNEAT genome/phenotype pair for runtime evaluation, plus the
// two reusable activation buffers the forward pass swaps each tick.
type Brain struct {
	Genome  *genetics.Genome
	network *network.Network

	hiddenA, hiddenB []float64
	useA             bool

	// protected marks node ids excluded from weight/topology mutation.
	protected map[int]bool

	// staleBelowThreshold counts consecutive ticks each connection
	// (by innovation number) has had |weight| < 0.01, for pruning.
	staleBelowThreshold map[int64]int
}

// NewBrain wraps a genome, building its phenotype network.
func NewBrain(genome *genetics.Genome) (*Brain, error) {
	phenotype, err := genome.Genesis(genome.Id)
	if err != nil {
		return nil, fmt.Errorf("neural: genesis: %w", err)
	}
	return &Brain{
		Genome:              genome,
		network:             phenotype,
		staleBelowThreshold: make(map[int64]int),
		protected:           make(map[int]bool),
	}, nil
}

// RebuildNetwork recreates the phenotype network after the genome mutates.
func (b *Brain) RebuildNetwork() error {
	phenotype, err := b.Genome.Genesis(b.Genome.Id)
	if err != nil {
		return fmt.Errorf("neural: rebuild: %w", err)
	}
	b.network = phenotype
	return nil
}

// NodeCount returns the number of nodes in the phenotype network.
func (b *Brain) NodeCount() int { return b.network.NodeCount() }

// LinkCount returns the number of connections in the phenotype network.
func (b *Brain) LinkCount() int { return b.network.LinkCount() }

// MetabolicCost is the idle-cost contribution of a brain's complexity.
func (b *Brain) MetabolicCost() float64 {
	hidden := 0
	for _, n := range b.network.AllNodes() {
		if n.IsNeuron() && n.NeuronType == network.HiddenNeuron {
			hidden++
		}
	}
	enabled := 0
	for _, g := range b.Genome.Genes {
		if g.IsEnabled {
			enabled++
		}
	}
	return 0.02*float64(hidden) + 0.005*float64(enabled)
}

// Think runs the forward pass: builds the 29-input vector (with the previous
// tick's hidden state spliced into inputs 7-12), evaluates the network
// topologically, and returns the 12 outputs and the new hidden state.
// Non-finite outputs are clamped to 0 so the entity idles rather than
// propagating NaN.
func (b *Brain) Think(inputs [BrainInputs]float64) (outputs [BrainOutputs]float64, err error) {
	prevHidden := b.prevHidden()
	for i := 0; i < RecurrentHiddenSlots && i < len(prevHidden); i++ {
		inputs[7+i] = prevHidden[i]
	}

	raw := inputs[:]
	if loadErr := b.network.LoadSensors(raw); loadErr != nil {
		return outputs, fmt.Errorf("neural: load sensors: %w", loadErr)
	}

	depth, depthErr := b.network.MaxActivationDepth()
	if depthErr != nil || depth < 1 {
		depth = 5
	}
	for i := 0; i < depth; i++ {
		if _, actErr := b.network.Activate(); actErr != nil {
			return outputs, fmt.Errorf("neural: activate: %w", actErr)
		}
	}

	rawOut := b.network.ReadOutputs()
	for i := 0; i < BrainOutputs && i < len(rawOut); i++ {
		v := rawOut[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		outputs[i] = v
	}

	b.storeHidden(b.sampleHidden())

	if _, flushErr := b.network.Flush(); flushErr != nil {
		return outputs, fmt.Errorf("neural: flush: %w", flushErr)
	}
	return outputs, nil
}

// sampleHidden reads up to RecurrentHiddenSlots hidden-node activations.
func (b *Brain) sampleHidden() []float64 {
	out := make([]float64, 0, RecurrentHiddenSlots)
	for _, n := range b.network.AllNodes() {
		if n.IsNeuron() && n.NeuronType == network.HiddenNeuron {
			v := n.GetActiveOut()
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out = append(out, v)
			if len(out) >= RecurrentHiddenSlots {
				break
			}
		}
	}
	return out
}

// HiddenNodeIDs lists the phenotype network's hidden-neuron node ids, the
// set a mature caste's subnet hands to MarkProtected.
func (b *Brain) HiddenNodeIDs() []int {
	var ids []int
	for _, n := range b.network.AllNodes() {
		if n.IsNeuron() && n.NeuronType == network.HiddenNeuron {
			ids = append(ids, n.Id)
		}
	}
	return ids
}

// CurrentHidden exposes the most recently stored hidden-state vector, the
// same one prevHidden feeds back into the next Think call, padded or
// truncated to RecurrentHiddenSlots. Snapshot-building reads this so a
// newborn can inherit its parent's current recurrent state at birth instead
// of starting from zero.
func (b *Brain) CurrentHidden() [RecurrentHiddenSlots]float64 {
	var out [RecurrentHiddenSlots]float64
	h := b.prevHidden()
	for i := 0; i < RecurrentHiddenSlots && i < len(h); i++ {
		out[i] = h[i]
	}
	return out
}

func (b *Brain) prevHidden() []float64 {
	if b.useA {
		return b.hiddenA
	}
	return b.hiddenB
}

func (b *Brain) storeHidden(h []float64) {
	if b.useA {
		b.hiddenB = h
	} else {
		b.hiddenA = h
	}
	b.useA = !b.useA
}

// ActivationTanh is used for every brain node.
var ActivationTanh = neatmath.TanhActivation
