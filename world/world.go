// Package world implements the World Coordinator (C13): the root object a
// host embeds, wiring every subsystem together and driving the three-phase
// tick loop (Setup, Perceive, Apply/Finalize). Grounded on game/game.go's
// single-struct-of-systems composition and game/parallel.go's Phase A/B/C
// split, generalized from a fixed simulationStep into four named phase
// methods so each can be tested independently.
package world

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/action"
	"github.com/pthm-cable/primordium/biology"
	"github.com/pthm-cable/primordium/config"
	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/perception"
	"github.com/pthm-cable/primordium/social"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/telemetry"
	"github.com/pthm-cable/primordium/terrain"
)

const (
	// organismCellSize sits at roughly 2x DefaultPhysicalGenes().SensingRange,
	// per spatial.Hash's own sizing guidance.
	organismCellSize = 120.0

	founderConnectionProb = 0.5
	foodEnergyPerUnit     = 20.0

	// foodSpawnBudgetPerTick is the energy Phase 0 asks FoodSpawnBudget for
	// each tick; the pool grants less when AvailableEnergy runs low.
	foodSpawnBudgetPerTick = 80.0

	// terrainSampleDivisor amortizes succession sampling: roughly
	// width*height/terrainSampleDivisor cells are sampled per tick, per
	// terrain.Cell.SampleSuccession's own doc comment.
	terrainSampleDivisor  = 50
	baseFertilityRecovery = 0.002
	baseFertilityErosion  = 0.0005
	grazingPressureScale  = 0.002
	grazingDecayFactor    = 0.9
	grazingFloor          = 0.01

	massExtinctionFraction = 0.5

	foundingReputation = 0.5
	foundingImmunity    = 0.5

	maturityAgeBase = 500.0
)

// World is the root simulation object: it owns every subsystem's shared
// state and drives the tick loop. The host embeds this directly; there is no
// internal run-loop goroutine, since owning the tick cadence is the host's
// job (spec External API).
type World struct {
	Config *config.Config
	Seed   int64

	Store   *entity.Store
	Spatial *spatial.Hash
	// FoodSpatial indexes food positions independently of Spatial (organism
	// positions), so Phase A's nearest-food sensing query never has to wade
	// through organism entries sharing the same hash.
	FoodSpatial *spatial.Hash
	Grids       *stigmergy.Grids
	Terrain *terrain.Grid
	Env     *environment.State
	Lineage *lineage.Registry
	Log     *telemetry.Log

	Innovations *neural.InnovationCounter
	GenomeIDs   *neural.GenomeIDCounter

	action   *action.System
	biology  *biology.System
	social   *social.System

	width, height float64
	workers       int

	rng     *rand.Rand
	tick    uint64
	stopped bool

	nextLineageID entity.LineageID

	pendingEmission float64
	posScratch      []entity.PositionRecord

	snapshot           Snapshot
	lastAlerts         []telemetry.EcoAlert
	carbonAlertLevel   carbonLevel
}

// carbonLevel tracks which of the three escalating carbon-alert thresholds
// (warn/crisis/catastrophe) is currently active, so each crossing raises an
// alert exactly once rather than every tick it stays above threshold.
type carbonLevel uint8

const (
	carbonLevelNormal carbonLevel = iota
	carbonLevelWarn
	carbonLevelCrisis
	carbonLevelCatastrophe
)

// Snapshot is the read-only world-state view published after each tick.
type Snapshot struct {
	Tick            uint64
	Population      int
	FoodCount       int
	Carbon          float64
	Oxygen          float64
	Climate         environment.Climate
	Era             environment.Era
	LineageCount    int
	AvailableEnergy float64
	TotalEnergy     float64
}

// New builds a World from a validated config and seed. A zero seed falls
// back to config.World.Seed, so deterministic runs only need to set the
// seed in one place.
func New(cfg *config.Config, seed int64) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = int64(cfg.World.Seed)
	}

	workers := cfg.Scheduling.ThreadCount
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	width := float64(cfg.World.Width)
	height := float64(cfg.World.Height)

	store := entity.NewStore()
	grids := stigmergy.New(cfg.World.Width, cfg.World.Height, nil)
	grids.NewQueueSet(workers)

	w := &World{
		Config:      cfg,
		Seed:        seed,
		rng:         rand.New(rand.NewSource(seed)),
		Store:       store,
		Spatial:     spatial.New(width, height, organismCellSize),
		FoodSpatial: spatial.New(width, height, organismCellSize),
		Grids:       grids,
		Terrain:     terrain.New(cfg.World.Width, cfg.World.Height, seed),
		Env:         environment.New(seed, nil, cfg.Ecology.SolarRate),
		Lineage:     lineage.New(),
		Log:         telemetry.NewLog(),
		Innovations: neural.NewInnovationCounter(),
		GenomeIDs:   neural.NewGenomeIDCounter(),
		width:       width,
		height:      height,
		workers:     workers,
	}

	w.action = &action.System{
		Store: store, Spatial: w.Spatial, Terrain: w.Terrain, Grids: grids,
		Env: w.Env, Lineage: w.Lineage, Log: w.Log,
		Physics: cfg.Physics, Evolution: cfg.Evolution,
		Innovations: w.Innovations, GenomeIDs: w.GenomeIDs, WorldSeed: seed,
		NextLineageID: w.allocateLineageID,
		Width:         width, Height: height,
	}
	w.biology = &biology.System{
		Store: store, Terrain: w.Terrain, Env: w.Env, Lineage: w.Lineage,
		Log: w.Log, Spatial: w.Spatial, WorldSeed: seed,
	}
	w.social = &social.System{
		Store: store, Spatial: w.Spatial, Lineage: w.Lineage, Log: w.Log,
		NextLineageID: w.allocateLineageID, WorldSeed: seed,
	}

	w.spawnInitialPopulation()
	w.spawnInitialFood()
	w.rebuildSpatialHash()
	w.rebuildFoodSpatialHash()
	w.refreshSnapshot()

	return w, nil
}

func (w *World) allocateLineageID() entity.LineageID {
	w.nextLineageID++
	return w.nextLineageID
}

func (w *World) spawnInitialPopulation() {
	n := w.Config.World.InitialPopulation
	for i := 0; i < n; i++ {
		lineageID := entity.LineageID(i + 1)
		w.Lineage.Insert(lineageID, entity.NoLineage, false, 0)

		genomeID := w.GenomeIDs.Next()
		genome := neural.CreateFounderGenome(w.rng, w.Innovations, genomeID, founderConnectionProb)
		brain, err := neural.NewBrain(genome)
		if err != nil {
			continue
		}

		genes := entity.DefaultPhysicalGenes()
		pos := entity.Position{X: w.rng.Float64() * w.width, Y: w.rng.Float64() * w.height}
		geno := entity.Genotype{
			ID: entity.DeterministicID(w.rng), Brain: brain, Genes: genes,
			R: uint8(w.rng.Intn(256)), G: uint8(w.rng.Intn(256)), B: uint8(w.rng.Intn(256)),
			Lineage: lineageID,
		}
		w.Store.Insert(pos, entity.Velocity{},
			entity.Metabolism{Energy: genes.MaxEnergyBase, MaxEnergy: genes.MaxEnergyBase},
			entity.Health{Reputation: foundingReputation, Immunity: foundingImmunity},
			entity.Intel{}, geno, entity.Bond{})
		w.Lineage.UpdateStats(lineageID, lineage.Stats{DeltaLiving: 1, DeltaProduced: 1})
	}
	w.nextLineageID = entity.LineageID(n)
}

func (w *World) spawnInitialFood() {
	for i := 0; i < w.Config.World.InitialFood; i++ {
		x := w.rng.Float64() * w.width
		y := w.rng.Float64() * w.height
		cellType := w.Terrain.At(int(x), int(y)).Type
		w.Store.InsertFood(entity.Position{X: x, Y: y}, entity.FoodNutrient{
			Energy: foodEnergyPerUnit, Nutrient: environment.NutrientBiasForCell(cellType),
		})
	}
}

func (w *World) rebuildSpatialHash() {
	w.posScratch = w.Store.SnapshotPositions(w.posScratch)
	points := make([]spatial.Point, len(w.posScratch))
	for i, p := range w.posScratch {
		points[i] = spatial.Point{ID: p.ID, Lineage: p.Lineage, X: p.X, Y: p.Y}
	}
	w.Spatial.Rebuild(points, w.workers)
}

// rebuildFoodSpatialHash mirrors rebuildSpatialHash for the Food archetype.
// Food entities carry no entity.ID (they are never a Proposal source or
// target), so every point indexes with the zero ID; nothing reads it back —
// scanNeighbors only needs the nearest food's position and tie-breaks on
// distance before ID.
func (w *World) rebuildFoodSpatialHash() {
	points := make([]spatial.Point, 0, w.Store.FoodCount())
	w.Store.EachFood(func(_ ecs.Entity, pos *entity.Position, _ *entity.FoodNutrient) {
		points = append(points, spatial.Point{X: pos.X, Y: pos.Y})
	})
	w.FoodSpatial.Rebuild(points, w.workers)
}

// populationAggregates is a single-pass summary of the live population,
// computed once per tick edge instead of three separate Store.Each scans.
type populationAggregates struct {
	Population int
	Biomass    float64
	TopFitness float64
	AvgEnergy  float64
	AvgFitness float64
}

func (w *World) aggregates() populationAggregates {
	var agg populationAggregates
	var energySum, fitnessSum float64
	w.Store.Each(func(row entity.OrganismRow) {
		agg.Population++
		energySum += row.Metabolism.Energy
		fitnessSum += row.Health.SocialRank
		agg.Biomass += row.Metabolism.Energy
		if row.Health.SocialRank > agg.TopFitness {
			agg.TopFitness = row.Health.SocialRank
		}
	})
	if agg.Population > 0 {
		agg.AvgEnergy = energySum / float64(agg.Population)
		agg.AvgFitness = fitnessSum / float64(agg.Population)
	}
	return agg
}

func (w *World) totalEnergy() float64 {
	var total float64
	w.Store.Each(func(row entity.OrganismRow) { total += row.Metabolism.Energy })
	w.Store.EachFood(func(_ ecs.Entity, _ *entity.Position, nutrient *entity.FoodNutrient) {
		total += nutrient.Energy
	})
	return total + w.Env.AvailableEnergy
}

func (w *World) countOutposts() int {
	width, height := w.Terrain.Dims()
	n := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if w.Terrain.At(x, y).Type == terrain.Outpost {
				n++
			}
		}
	}
	return n
}

func maturityAge(maturityGene float64) float64 { return maturityAgeBase * maturityGene }

// Tick runs one full Setup/Perceive/Apply/Finalize cycle and returns its
// summary report. Safe to call repeatedly even after Stop(); Stop is a
// signal the host polls between ticks, it does not block Tick itself (spec
// determinism contract: a tick is never interrupted mid-flight).
func (w *World) Tick() telemetry.TickReport {
	tickStart := time.Now()

	pre := w.aggregates()
	w.phase0Setup(pre.AvgFitness)

	proposals, err := w.phaseAPerceive()
	if err != nil {
		proposals = nil
	}
	dropped := w.phaseBApply(proposals)

	popBefore := w.Store.Count()
	report := w.phaseCFinalize(dropped, popBefore, tickStart)

	w.tick++
	return report
}

func (w *World) phase0Setup(avgFitness float64) {
	w.rebuildSpatialHash()
	w.spawnBudgetedFood()
	w.rebuildFoodSpatialHash()
	w.advanceTerrain()
	w.Env.Advance(w.pendingEmission, w.Terrain.ForestCarbonSequestration(), avgFitness)
	w.pendingEmission = 0
	w.Grids.DecayAndDiffuse()
}

// spawnBudgetedFood draws from the Environment's available-energy pool
// (replenished by solar influx each tick) rather than spawning a fixed count,
// so food supply tracks the carbon/oxygen/energy cycle instead of running
// independently of it.
func (w *World) spawnBudgetedFood() {
	granted := w.Env.FoodSpawnBudget(foodSpawnBudgetPerTick)
	if granted <= 0 {
		return
	}
	n := int(granted / foodEnergyPerUnit)
	for i := 0; i < n; i++ {
		x := w.rng.Float64() * w.width
		y := w.rng.Float64() * w.height
		cellType := w.Terrain.At(int(x), int(y)).Type
		w.Store.InsertFood(entity.Position{X: x, Y: y}, entity.FoodNutrient{
			Energy: foodEnergyPerUnit, Nutrient: environment.NutrientBiasForCell(cellType),
		})
	}
}

func climateErosionMultiplier(c environment.Climate) float64 {
	switch c {
	case environment.Warm:
		return 1.2
	case environment.Hot:
		return 1.5
	case environment.Scorching:
		return 2.0
	default:
		return 1.0
	}
}

// advanceTerrain samples a fraction of the grid each tick (terrain.Cell's
// succession sampling is documented as O(1) per cell, not meant to run over
// the whole grid every tick) and drives fertility recurrence from local
// grazing pressure and climate-scaled erosion.
func (w *World) advanceTerrain() {
	width, height := w.Terrain.Dims()
	total := width * height
	samples := total / terrainSampleDivisor
	if samples < 1 {
		samples = 1
	}
	erosion := baseFertilityErosion * climateErosionMultiplier(w.Env.Climate)

	for i := 0; i < samples; i++ {
		x := w.rng.Intn(width)
		y := w.rng.Intn(height)
		cell := w.Terrain.At(x, y)
		grazingPressure := cell.CumulativeGrazing * grazingPressureScale
		cell.UpdateFertility(baseFertilityRecovery, grazingPressure, erosion)
		cell.SampleSuccession(w.rng)

		cell.CumulativeGrazing *= grazingDecayFactor
		if cell.CumulativeGrazing < grazingFloor {
			cell.CumulativeGrazing = 0
		}
	}
}

func (w *World) phaseAPerceive() ([]perception.Proposal, error) {
	snaps := make([]perception.Snapshot, 0, w.Store.Count())
	w.Store.Each(func(row entity.OrganismRow) {
		brain := row.Genotype.Brain
		if brain == nil {
			return
		}
		mature := float64(row.Metabolism.Age) >= maturityAge(row.Genotype.Genes.MaturityGene)
		snaps = append(snaps, perception.Snapshot{
			Entity: row.Entity, ID: row.Genotype.ID, Lineage: row.Genotype.Lineage,
			Pos: *row.Position, Vel: *row.Velocity,
			Energy: row.Metabolism.Energy, MaxEnergy: row.Metabolism.MaxEnergy,
			Age: row.Metabolism.Age, Genes: row.Genotype.Genes, Brain: brain,
			LastHidden:     brain.CurrentHidden(),
			Specialization: row.Health.Specialization,
			Protected:      !mature,
		})
	})

	world := perception.Context{
		Spatial: w.Spatial, FoodSpatial: w.FoodSpatial, Grids: w.Grids, Terrain: w.Terrain,
		Env: w.Env, Lineage: w.Lineage, CellSize: 1.0, Tick: w.tick,
	}
	return perception.Run(context.Background(), snaps, world, w.workers)
}

func (w *World) phaseBApply(proposals []perception.Proposal) int {
	w.Grids.ApplyQueued()
	return w.action.Apply(w.tick, proposals)
}

func (w *World) phaseCFinalize(dropped int, popBefore int, tickStart time.Time) telemetry.TickReport {
	heatBefore := w.Env.HeatLossCumulative

	w.biology.Update(w.tick)
	w.social.Update(w.tick)

	w.pendingEmission = w.Env.HeatLossCumulative - heatBefore

	post := w.aggregates()
	w.Env.UpdateEra(environment.EraMetrics{
		Population: post.Population, Biomass: post.Biomass,
		Hotspots: w.countOutposts(), TopFitness: post.TopFitness,
	})
	w.Lineage.Prune(w.tick)

	w.checkCarbonCatastrophe()
	w.checkMassExtinction(popBefore)
	w.checkTickBudget(tickStart)

	w.Log.Record(telemetry.Event{Type: telemetry.EventSnapshotPublished, Tick: w.tick})
	events, alerts := w.Log.Drain()
	w.lastAlerts = alerts

	report := telemetry.Summarize(w.tick, events, dropped)
	report.Population = post.Population
	report.FoodCount = w.Store.FoodCount()
	report.AverageEnergy = post.AvgEnergy
	report.AverageFitness = post.AvgFitness
	report.Carbon = w.Env.Carbon
	report.Climate = uint8(w.Env.Climate)
	report.Era = uint8(w.Env.Era)
	report.LineageCount = w.Lineage.Count()

	w.refreshSnapshot()
	return report
}

// checkCarbonCatastrophe evaluates the warn/crisis/catastrophe carbon
// thresholds in escalating order and raises one alert per new level crossed,
// so a run climbing straight past warn and crisis in a single tick still
// surfaces all three instead of only the highest.
func (w *World) checkCarbonCatastrophe() {
	eco := w.Config.Ecology
	carbon := w.Env.Carbon

	level := carbonLevelNormal
	switch {
	case eco.CarbonCatastrophe > 0 && carbon >= eco.CarbonCatastrophe:
		level = carbonLevelCatastrophe
	case eco.CarbonCrisis > 0 && carbon >= eco.CarbonCrisis:
		level = carbonLevelCrisis
	case eco.CarbonWarn > 0 && carbon >= eco.CarbonWarn:
		level = carbonLevelWarn
	}

	prev := w.carbonAlertLevel
	w.carbonAlertLevel = level
	for l := prev + 1; l <= level; l++ {
		var detail string
		switch l {
		case carbonLevelWarn:
			detail = "carbon load crossed the warning threshold"
		case carbonLevelCrisis:
			detail = "carbon load crossed the crisis threshold"
		case carbonLevelCatastrophe:
			detail = "carbon load crossed the catastrophe threshold"
		}
		w.Log.RaiseAlert(telemetry.EcoAlert{Kind: telemetry.AlertCarbonCatastrophe, Tick: w.tick, Detail: detail})
	}
}

func (w *World) checkMassExtinction(popBefore int) {
	if popBefore == 0 {
		return
	}
	deaths := w.Log.Count(telemetry.EventDeath)
	if float64(deaths)/float64(popBefore) >= massExtinctionFraction {
		w.Log.RaiseAlert(telemetry.EcoAlert{
			Kind: telemetry.AlertMassExtinction, Tick: w.tick,
			Detail: "population collapsed within a single tick",
		})
	}
}

func (w *World) checkTickBudget(tickStart time.Time) {
	budget := w.Config.Derived.TickBudget
	if budget <= 0 {
		return
	}
	if time.Since(tickStart) > budget {
		w.Log.RaiseAlert(telemetry.EcoAlert{
			Kind: telemetry.AlertTickBudgetExceeded, Tick: w.tick,
			Detail: "tick exceeded its configured wall-clock budget",
		})
	}
}

func (w *World) refreshSnapshot() {
	w.snapshot = Snapshot{
		Tick: w.tick, Population: w.Store.Count(), FoodCount: w.Store.FoodCount(),
		Carbon: w.Env.Carbon, Oxygen: w.Env.Oxygen, Climate: w.Env.Climate, Era: w.Env.Era,
		LineageCount: w.Lineage.Count(), AvailableEnergy: w.Env.AvailableEnergy,
		TotalEnergy: w.totalEnergy(),
	}
}

// Snapshot returns the world-state view published after the most recent
// tick (or after New, before any tick has run).
func (w *World) Snapshot() *Snapshot { return &w.snapshot }

// CurrentTick returns the tick counter (the number of ticks completed so far).
func (w *World) CurrentTick() uint64 { return w.tick }

// LastAlerts returns the ecological alerts raised during the most recently
// finalized tick.
func (w *World) LastAlerts() []telemetry.EcoAlert { return w.lastAlerts }

// Stop signals the host's tick loop to halt at its next natural boundary;
// Tick itself never checks this flag mid-phase.
func (w *World) Stop() { w.stopped = true }

// Stopped reports whether Stop has been called.
func (w *World) Stopped() bool { return w.stopped }
