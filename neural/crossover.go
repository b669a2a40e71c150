package neural

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Crossover performs NEAT-style crossover between two parent genomes, aligning
// genes by innovation number: matching genes are inherited randomly from
// either parent, disjoint and excess genes come from the fitter parent, and
// ties are resolved randomly.
func Crossover(rng *rand.Rand, parent1, parent2 *genetics.Genome, fitness1, fitness2 float64, childID int) (*genetics.Genome, error) {
	if parent1 == nil || parent2 == nil {
		return nil, fmt.Errorf("neural: crossover: nil parent genome")
	}

	var primary, secondary *genetics.Genome
	if fitness1 >= fitness2 {
		primary, secondary = parent1, parent2
	} else {
		primary, secondary = parent2, parent1
	}

	primaryGenes := make(map[int64]*genetics.Gene, len(primary.Genes))
	for _, g := range primary.Genes {
		primaryGenes[g.InnovationNum] = g
	}
	secondaryGenes := make(map[int64]*genetics.Gene, len(secondary.Genes))
	for _, g := range secondary.Genes {
		secondaryGenes[g.InnovationNum] = g
	}

	innovSet := make(map[int64]bool, len(primaryGenes)+len(secondaryGenes))
	for innov := range primaryGenes {
		innovSet[innov] = true
	}
	for innov := range secondaryGenes {
		innovSet[innov] = true
	}
	innovations := make([]int64, 0, len(innovSet))
	for innov := range innovSet {
		innovations = append(innovations, innov)
	}
	sort.Slice(innovations, func(i, j int) bool { return innovations[i] < innovations[j] })

	childNodeMap := make(map[int]*network.NNode)
	for _, n := range primary.Nodes {
		cp := copyNode(n)
		childNodeMap[cp.Id] = cp
	}
	for _, n := range secondary.Nodes {
		if _, ok := childNodeMap[n.Id]; !ok {
			cp := copyNode(n)
			childNodeMap[cp.Id] = cp
		}
	}

	childGenes := make([]*genetics.Gene, 0, len(innovations))
	for _, innov := range innovations {
		pGene := primaryGenes[innov]
		sGene := secondaryGenes[innov]

		var selected *genetics.Gene
		switch {
		case pGene != nil && sGene != nil:
			if rng.Float64() < 0.5 {
				selected = pGene
			} else {
				selected = sGene
			}
		case pGene != nil:
			selected = pGene
		case fitness1 == fitness2 && sGene != nil:
			if rng.Float64() < 0.5 {
				selected = sGene
			}
		}
		if selected == nil {
			continue
		}

		inNode := childNodeMap[selected.Link.InNode.Id]
		outNode := childNodeMap[selected.Link.OutNode.Id]
		if inNode == nil || outNode == nil {
			continue
		}
		gene := genetics.NewGeneWithTrait(nil, selected.Link.ConnectionWeight, inNode, outNode, selected.Link.IsRecurrent, selected.InnovationNum, selected.MutationNum)
		gene.IsEnabled = selected.IsEnabled
		childGenes = append(childGenes, gene)
	}

	nodes := make([]*network.NNode, 0, len(childNodeMap))
	for _, n := range childNodeMap {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Id < nodes[j].Id })

	return genetics.NewGenome(childID, nil, nodes, childGenes), nil
}

// Compatibility computes the NEAT genetic-distance metric between two genomes:
// disjoint + excess + weight-difference terms, weighted by caller-supplied
// coefficients. The same metric drives speciation assignment.
func Compatibility(g1, g2 *genetics.Genome, disjointCoeff, excessCoeff, weightDiffCoeff float64) float64 {
	genes1 := make(map[int64]*genetics.Gene, len(g1.Genes))
	for _, g := range g1.Genes {
		genes1[g.InnovationNum] = g
	}
	genes2 := make(map[int64]*genetics.Gene, len(g2.Genes))
	for _, g := range g2.Genes {
		genes2[g.InnovationNum] = g
	}

	maxInnov1, maxInnov2 := int64(0), int64(0)
	for innov := range genes1 {
		if innov > maxInnov1 {
			maxInnov1 = innov
		}
	}
	for innov := range genes2 {
		if innov > maxInnov2 {
			maxInnov2 = innov
		}
	}
	lowerMax := maxInnov1
	if maxInnov2 < lowerMax {
		lowerMax = maxInnov2
	}

	var disjoint, excess, matching float64
	var weightDiffSum float64

	seen := make(map[int64]bool, len(genes1)+len(genes2))
	for innov, gA := range genes1 {
		seen[innov] = true
		gB, ok := genes2[innov]
		if !ok {
			if innov > lowerMax {
				excess++
			} else {
				disjoint++
			}
			continue
		}
		matching++
		weightDiffSum += absF(gA.Link.ConnectionWeight - gB.Link.ConnectionWeight)
	}
	for innov := range genes2 {
		if seen[innov] {
			continue
		}
		if innov > lowerMax {
			excess++
		} else {
			disjoint++
		}
	}

	n := float64(len(g1.Genes))
	if len(g2.Genes) > len(g1.Genes) {
		n = float64(len(g2.Genes))
	}
	if n < 1 {
		n = 1
	}

	avgWeightDiff := 0.0
	if matching > 0 {
		avgWeightDiff = weightDiffSum / matching
	}

	return disjointCoeff*disjoint/n + excessCoeff*excess/n + weightDiffCoeff*avgWeightDiff
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
