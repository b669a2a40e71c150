// Package environment implements the global Environment state: climate and
// era state machines, the carbon/oxygen cycle, difficulty-adjustment (DDA)
// multipliers, an available-energy pool, and hardware sampling (real or
// mock, for deterministic runs).
package environment

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/terrain"
)

// Climate buckets derived from carbon load.
type Climate uint8

const (
	Temperate Climate = iota
	Warm
	Hot
	Scorching
)

// Era names the macro-scale phase of the simulation.
type Era uint8

const (
	Primordial Era = iota
	DawnOfLife
	Flourishing
	DominanceWar
	ApexEra
)

const (
	carbonMin = 0
	carbonMax = 2000

	carbonWarmThreshold      = 1200
	carbonHotThreshold       = 1400
	carbonScorchingThreshold = 1600

	ddaAdjustStep  = 0.001 // ±0.1% per tick
	ddaMultiplierMin = 0.5
	ddaMultiplierMax = 2.0

	// DefaultSolarRate is the baseline solar influx New falls back to when
	// given a negative rate; a zero rate is kept as given.
	DefaultSolarRate = 50.0
)

// HardwareMetrics is the sampled (or mocked) host load used to drive climate
// and scarcity. In deterministic mode, callers supply a seeded mock sampler
// instead of reading real host sensors.
type HardwareMetrics struct {
	CPUPercent float64
	RAMPercent float64
}

// HardwareSampler produces one HardwareMetrics reading per tick.
type HardwareSampler interface {
	Sample() HardwareMetrics
}

// MockSampler produces deterministic pseudo-load from a seeded RNG, for
// reproducible runs that don't depend on the host machine.
type MockSampler struct {
	rng *rand.Rand
}

// NewMockSampler builds a MockSampler seeded independently of the world RNG
// stream so hardware sampling never perturbs entity-level determinism.
func NewMockSampler(seed int64) *MockSampler {
	return &MockSampler{rng: rand.New(rand.NewSource(seed))}
}

func (m *MockSampler) Sample() HardwareMetrics {
	return HardwareMetrics{
		CPUPercent: 20 + m.rng.Float64()*40,
		RAMPercent: 20 + m.rng.Float64()*40,
	}
}

// EraRule is one row of the macro-rule table driving era advancement.
type EraRule struct {
	Era             Era
	MinPopulation   int
	MinBiomass      float64
	MinHotspots     int
	MinTopFitness   float64
	MaxCarbonDioxide float64
}

// DefaultEraRules is the macro-rule table ordered from latest to earliest
// qualifying era; the first rule whose thresholds are all met wins.
func DefaultEraRules() []EraRule {
	return []EraRule{
		{Era: ApexEra, MinPopulation: 2000, MinBiomass: 50000, MinHotspots: 5, MinTopFitness: 0.9, MaxCarbonDioxide: 1800},
		{Era: DominanceWar, MinPopulation: 1000, MinBiomass: 20000, MinHotspots: 3, MinTopFitness: 0.7, MaxCarbonDioxide: 1900},
		{Era: Flourishing, MinPopulation: 300, MinBiomass: 5000, MinHotspots: 1, MinTopFitness: 0.4, MaxCarbonDioxide: 2000},
		{Era: DawnOfLife, MinPopulation: 50, MinBiomass: 500, MinTopFitness: 0.1, MaxCarbonDioxide: 2000},
		{Era: Primordial},
	}
}

// EraMetrics summarizes the world state the era rule table evaluates against.
type EraMetrics struct {
	Population  int
	Biomass     float64
	Hotspots    int
	TopFitness  float64
}

// State holds the Environment's global, single-writer-per-phase fields.
type State struct {
	Tick    uint64
	Seed    int64
	Climate Climate
	Era     Era

	Carbon float64
	Oxygen float64

	MetabolismMultiplier float64

	AvailableEnergy float64

	SolarMultiplier float64
	IdleMultiplier  float64

	targetAverageFitness float64
	fitnessHistory       []float64 // rolling window feeding the DDA target

	sampler HardwareSampler
	eraRules []EraRule

	// BaseSolarRate scales solar influx before SolarMultiplier/scarcity are
	// applied; config-tunable rather than a package constant so a host can
	// run a starved or abundant world without touching code.
	BaseSolarRate float64

	// Conservation bookkeeping, fed into the global energy-conservation check.
	HeatLossCumulative    float64
	SolarInfluxCumulative float64
}

// New builds an Environment in its Primordial/Temperate starting state.
// A negative baseSolarRate falls back to DefaultSolarRate; zero is a valid
// "no solar influx" setting a host may choose deliberately.
func New(seed int64, sampler HardwareSampler, baseSolarRate float64) *State {
	if sampler == nil {
		sampler = NewMockSampler(seed)
	}
	if baseSolarRate < 0 {
		baseSolarRate = DefaultSolarRate
	}
	return &State{
		Seed:                 seed,
		Climate:              Temperate,
		Era:                  Primordial,
		Oxygen:               100,
		MetabolismMultiplier: 1.0,
		SolarMultiplier:      1.0,
		IdleMultiplier:       1.0,
		targetAverageFitness: 0.5,
		sampler:              sampler,
		eraRules:             DefaultEraRules(),
		BaseSolarRate:        baseSolarRate,
	}
}

// climateMetabolismMultiplier derives metabolism scaling from climate.
func climateMetabolismMultiplier(c Climate) float64 {
	switch c {
	case Warm:
		return 1.1
	case Hot:
		return 1.25
	case Scorching:
		return 1.5
	default:
		return 1.0
	}
}

// climateCarbonMidpoint is the representative Carbon level each Climate
// bucket's midpoint maps to, so a forced climate override survives the next
// Advance's carbon-driven reclassification instead of snapping back.
func climateCarbonMidpoint(c Climate) float64 {
	switch c {
	case Warm:
		return (carbonWarmThreshold + carbonHotThreshold) / 2
	case Hot:
		return (carbonHotThreshold + carbonScorchingThreshold) / 2
	case Scorching:
		return (carbonScorchingThreshold + carbonMax) / 2
	default:
		return carbonWarmThreshold / 2
	}
}

// SetClimate forces the Climate bucket (a god-mode override), nudging Carbon
// to that bucket's representative midpoint so it sticks under subsequent
// Advance calls rather than being immediately overwritten.
func (s *State) SetClimate(c Climate) {
	s.Carbon = climateCarbonMidpoint(c)
	s.Climate = c
	s.MetabolismMultiplier = climateMetabolismMultiplier(c)
}

// Advance runs one tick's worth of Environment update. emission is the total
// carbon emitted by entities this tick; forestSeq is terrain's forest carbon
// sequestration; avgFitness feeds the DDA adjustment.
func (s *State) Advance(emission float64, forestSeq float64, avgFitness float64) {
	s.Tick++

	metrics := s.sampler.Sample()
	scarcityFactor := 1.0 - metrics.RAMPercent/200 // higher RAM pressure -> scarcer food
	if scarcityFactor < 0.2 {
		scarcityFactor = 0.2
	}

	s.Carbon += emission - forestSeq
	if s.Carbon < carbonMin {
		s.Carbon = carbonMin
	} else if s.Carbon > carbonMax {
		s.Carbon = carbonMax
	}
	s.updateClimate(metrics.CPUPercent)

	s.adjustDDA(avgFitness)

	influx := s.BaseSolarRate * s.SolarMultiplier * scarcityFactor
	s.AvailableEnergy += influx
	s.SolarInfluxCumulative += influx

	s.updateOxygen(forestSeq)
}

// oxygenRecoveryRate is how fast Oxygen tracks its carbon/forest-derived
// target each tick, the same target-tracking shape adjustDDA uses for the
// DDA multipliers rather than a fixed setpoint.
const oxygenRecoveryRate = 0.05

// updateOxygen tracks Oxygen toward a target suppressed by carbon load and
// restored by forest sequestration, completing the carbon/oxygen cycle C5
// names: Hypoxic()/OxygenSpeedMultiplier() only ever mattered once Oxygen
// could actually move away from its starting value.
func (s *State) updateOxygen(forestSeq float64) {
	target := 100 - (s.Carbon/carbonMax)*40 + forestSeq*0.01
	target = clamp(target, 0, 100)
	s.Oxygen += (target - s.Oxygen) * oxygenRecoveryRate
	s.Oxygen = clamp(s.Oxygen, 0, 100)
}

func (s *State) updateClimate(cpuPercent float64) {
	switch {
	case s.Carbon > carbonScorchingThreshold:
		s.Climate = Scorching
	case s.Carbon > carbonHotThreshold:
		s.Climate = Hot
	case s.Carbon > carbonWarmThreshold:
		s.Climate = Warm
	default:
		s.Climate = Temperate
	}
	// CPU pressure nudges climate up one notch under sustained host load,
	// mirroring carbon-driven escalation without a second state machine.
	if cpuPercent > 90 && s.Climate < Scorching {
		s.Climate++
	}
	s.MetabolismMultiplier = climateMetabolismMultiplier(s.Climate)
}

// ddaHistoryWindow bounds the rolling fitness window the target tracks.
const ddaHistoryWindow = 500

// adjustDDA nudges both multipliers by a small step toward the target
// fitness, then lets the target itself drift toward the mean of a rolling
// fitness window, a dynamic-difficulty loop rather than a fixed setpoint.
func (s *State) adjustDDA(avgFitness float64) {
	if avgFitness < s.targetAverageFitness {
		s.SolarMultiplier += ddaAdjustStep
		s.IdleMultiplier -= ddaAdjustStep
	} else {
		s.SolarMultiplier -= ddaAdjustStep
		s.IdleMultiplier += ddaAdjustStep
	}
	s.SolarMultiplier = clamp(s.SolarMultiplier, ddaMultiplierMin, ddaMultiplierMax)
	s.IdleMultiplier = clamp(s.IdleMultiplier, ddaMultiplierMin, ddaMultiplierMax)

	s.fitnessHistory = append(s.fitnessHistory, avgFitness)
	if len(s.fitnessHistory) > ddaHistoryWindow {
		s.fitnessHistory = s.fitnessHistory[len(s.fitnessHistory)-ddaHistoryWindow:]
	}
	s.targetAverageFitness = stat.Mean(s.fitnessHistory, nil)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UpdateEra evaluates the macro-rule table and updates s.Era to the first
// matching rule (rules are ordered from the most to least advanced).
func (s *State) UpdateEra(m EraMetrics) {
	for _, rule := range s.eraRules {
		if m.Population >= rule.MinPopulation &&
			m.Biomass >= rule.MinBiomass &&
			m.Hotspots >= rule.MinHotspots &&
			m.TopFitness >= rule.MinTopFitness &&
			s.Carbon <= rule.MaxCarbonDioxide {
			s.Era = rule.Era
			return
		}
	}
	s.Era = Primordial
}

// FoodSpawnBudget drains up to `want` energy units from the available-energy
// pool for food spawning, returning the amount actually granted (it may be
// less than requested if the pool is low).
func (s *State) FoodSpawnBudget(want float64) float64 {
	if want <= 0 {
		return 0
	}
	if want > s.AvailableEnergy {
		want = s.AvailableEnergy
	}
	s.AvailableEnergy -= want
	return want
}

// NutrientBiasForCell maps terrain cell type to the nutrient type food
// spawned on it should carry.
func NutrientBiasForCell(t terrain.CellType) entity.NutrientType {
	switch t {
	case terrain.Mountain, terrain.River:
		return entity.NutrientBlue
	default:
		return entity.NutrientGreen
	}
}

// RecordHeatLoss folds dissipated energy into the conservation tally so the
// global energy-conservation check accounts for it.
func (s *State) RecordHeatLoss(amount float64) {
	s.HeatLossCumulative += amount
}

// Oxygen thresholds gating the hypoxic drain / high-O2 speed bonus named in
// spec 4.9 point 5, without the spec fixing their exact cutoffs.
const (
	hypoxicOxygenThreshold  = 8.0
	highOxygenThreshold     = 60.0
	HypoxicMetabolismMult   = 1.25
	highOxygenSpeedBonus    = 1.1
)

// Hypoxic reports whether oxygen is low enough to trigger the hypoxic
// metabolic drain.
func (s *State) Hypoxic() bool {
	return s.Oxygen < hypoxicOxygenThreshold
}

// OxygenSpeedMultiplier returns the movement speed multiplier oxygen level
// imposes: a bonus above highOxygenThreshold, unity otherwise.
func (s *State) OxygenSpeedMultiplier() float64 {
	if s.Oxygen > highOxygenThreshold {
		return highOxygenSpeedBonus
	}
	return 1.0
}
