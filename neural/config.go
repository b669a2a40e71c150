package neural

import "github.com/yaricom/goNEAT/v4/neat"

// DefaultNEATOptions returns NEAT tuning sensible for a soup-scale
// population.
func DefaultNEATOptions() *neat.Options {
	return &neat.Options{
		TraitParamMutProb:  0.5,
		TraitMutationPower: 1.0,

		WeightMutPower: 2.5,

		MutateAddNodeProb:      0.10,
		MutateAddLinkProb:      0.15,
		MutateToggleEnableProb: 0.01,

		MutateLinkWeightsProb: 0.8,
		MutateOnlyProb:        0.25,
		MutateRandomTraitProb: 0.1,

		MateMultipointProb:    0.6,
		MateMultipointAvgProb: 0.4,
		MateSinglepointProb:   0.0,
		MateOnlyProb:          0.2,
		RecurOnlyProb:         0.0,

		CompatThreshold: 1.2,
		DisjointCoeff:   1.0,
		ExcessCoeff:     1.0,
		MutdiffCoeff:    0.4,

		DropOffAge:     25,
		SurvivalThresh: 0.3,
		AgeSignificance: 1.0,

		PopSize: 10000,
	}
}

// DefaultMutationRates returns the base (unscaled) mutation rates, before
// population-aware scaling is applied.
func DefaultMutationRates(baseRate, amount float64) MutationRates {
	return MutationRates{
		WeightMutProb:    baseRate * 4, // most connections see some perturbation
		AddNodeProb:      0.10,
		AddLinkProb:      0.15,
		ToggleEnableProb: 0.01,
		WeightAmount:     amount,
	}
}
