package entity

import "github.com/pthm-cable/primordium/neural"

// Position is bounded to [0,W)x[0,H).
type Position struct {
	X, Y float64
}

// Velocity has magnitude bounded by phenotype.max_speed times env multipliers.
type Velocity struct {
	DX, DY float64
}

// Specialization is a caste label assigned once thresholds are crossed.
type Specialization uint8

const (
	SpecNone Specialization = iota
	SpecSoldier
	SpecEngineer
	SpecProvider
)

// Metabolism tracks energy, age, and reproduction bookkeeping.
type Metabolism struct {
	Energy           float64
	MaxEnergy        float64
	Age              int64 // ticks
	Generation       uint32
	OffspringCount   uint32
	ReinforcementAcc float64 // Hebbian reinforcement signal, decays over 10 ticks
	PendingIdleCost  float64 // crowding tax accrued by Action, drained by the next biological update
	DigestCooldown   float64 // ticks remaining before this organism may attack again
}

// InfectionState is the pathogen lifecycle stage for a Health component.
type InfectionState uint8

const (
	InfectionNone InfectionState = iota
	InfectionIncubating
	InfectionActive
	InfectionImmune
)

// Health carries immune state, social rank, and caste accumulators.
type Health struct {
	Immunity       float64
	Infection      InfectionState
	PathogenLoad   float64
	Reputation     float64 // [0,1]
	SocialRank     float64 // [0,1]
	CasteSoldier   float64
	CasteEngineer  float64
	CasteProvider  float64
	Specialization Specialization
}

// Intel caches brain runtime state across ticks for the recurrent loop and
// Hebbian plasticity.
type Intel struct {
	LastHidden []float64
	LastOutput []float64
	// StaleConnTicks counts, per connection (by innovation number), how many
	// consecutive ticks |weight| has stayed below the pruning threshold.
	StaleConnTicks map[int64]int
}

// PhysicalGenes are the heritable, non-brain traits.
type PhysicalGenes struct {
	SensingRange         float64
	MaxSpeed             float64
	MaxEnergyBase        float64
	MetabolicNiche       float64 // digestive efficiency modifier
	TrophicPotential     float64 // [0,1], plant vs meat energy extraction
	ReproductiveInvest   float64 // fraction of parent energy given to offspring
	MaturityGene         float64 // multiplier on max_age
	MatePreference       float64
	PairingBias          float64
}

// DefaultPhysicalGenes returns the baseline gene set for founders.
func DefaultPhysicalGenes() PhysicalGenes {
	return PhysicalGenes{
		SensingRange:       60,
		MaxSpeed:           4,
		MaxEnergyBase:      100,
		MetabolicNiche:     0.5,
		TrophicPotential:   0.3,
		ReproductiveInvest: 0.4,
		MaturityGene:       1.0,
		MatePreference:     0.5,
		PairingBias:        0.5,
	}
}

// Genotype bundles the brain and physical genes. ID and Lineage ride along
// here rather than on a separate mapped component so the store can resolve
// a Proposal's entity.ID back to its ecs.Entity handle with a single index,
// without widening the organism archetype.
type Genotype struct {
	ID      ID
	Brain   *neural.Brain
	Genes   PhysicalGenes
	R, G, B uint8
	Lineage LineageID
}

// Bond records an optional pairing with another entity.
type Bond struct {
	HasPartner bool
	Partner    ID
	Strength   float64
	TickFormed int64
	// Symbiotic marks a long-bonded cross-lineage pair eligible for the
	// merged-genotype reproduction path (Social & Ecological Systems).
	Symbiotic bool
}

// NutrientType biases food value by the terrain it spawned from.
type NutrientType uint8

const (
	NutrientGreen NutrientType = iota // plains/oases
	NutrientBlue                      // mountains/rivers
)

// FoodNutrient is the sole non-Position component on a food entity.
type FoodNutrient struct {
	Energy   float64
	Nutrient NutrientType
}
