package world

import (
	"github.com/pthm-cable/primordium/action"
	"github.com/pthm-cable/primordium/corerr"
	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/genetics"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/telemetry"
	"github.com/pthm-cable/primordium/terrain"
)

// CommandKind tags the external god-mode command union World::apply_command
// accepts.
type CommandKind uint8

const (
	CmdInjectFood CommandKind = iota
	CmdMutate
	CmdSmite
	CmdReincarnate
	CmdGeneticSurge
	CmdSetClimate
	CmdPaintTerrain
	CmdPeaceZone
	CmdWarZone
	CmdInjectEntity
)

// Rect is an axis-aligned world-space area, used by InjectFood/PeaceZone/WarZone.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// CellCoord addresses a single terrain cell by grid coordinate.
type CellCoord struct {
	X, Y int
}

// Command is the flat tagged-union payload for ApplyCommand; only the
// fields relevant to Kind are meaningful.
type Command struct {
	Kind CommandKind

	Area Rect // InjectFood/PeaceZone/WarZone
	N    int  // InjectFood

	EntityID  entity.ID        // Mutate/Smite
	LineageID entity.LineageID // Reincarnate

	Rate float64 // GeneticSurge

	Climate environment.Climate // SetClimate

	Cells     []CellCoord      // PaintTerrain
	PaintKind terrain.CellType // PaintTerrain

	Genotype string          // InjectEntity: HexDNA blob
	Pos      entity.Position // InjectEntity
}

// ApplyCommand dispatches one external god-mode command against live world
// state. Commands run outside the tick loop's phase structure: a host may
// call this between Tick calls, never from within one.
func (w *World) ApplyCommand(cmd Command) error {
	switch cmd.Kind {
	case CmdInjectFood:
		w.injectFood(cmd.Area, cmd.N)
		return nil
	case CmdMutate:
		return w.mutateOne(cmd.EntityID)
	case CmdSmite:
		return w.smite(cmd.EntityID)
	case CmdReincarnate:
		return w.reincarnate(cmd.LineageID)
	case CmdGeneticSurge:
		w.geneticSurge(cmd.Rate)
		return nil
	case CmdSetClimate:
		w.Env.SetClimate(cmd.Climate)
		return nil
	case CmdPaintTerrain:
		w.paintTerrain(cmd.Cells, cmd.PaintKind)
		return nil
	case CmdPeaceZone:
		w.action.Zones = append(w.action.Zones, zoneFromRect(cmd.Area, action.ZonePeace))
		return nil
	case CmdWarZone:
		w.action.Zones = append(w.action.Zones, zoneFromRect(cmd.Area, action.ZoneWar))
		return nil
	case CmdInjectEntity:
		return w.injectEntity(cmd.Genotype, cmd.Pos)
	default:
		return corerr.NewInvariantViolation("apply_command: unknown command kind")
	}
}

func zoneFromRect(r Rect, kind action.ZoneKind) action.Zone {
	return action.Zone{MinX: r.MinX, MinY: r.MinY, MaxX: r.MaxX, MaxY: r.MaxY, Kind: kind}
}

func (w *World) injectFood(area Rect, n int) {
	for i := 0; i < n; i++ {
		x := area.MinX + w.rng.Float64()*(area.MaxX-area.MinX)
		y := area.MinY + w.rng.Float64()*(area.MaxY-area.MinY)
		cellType := w.Terrain.At(int(x), int(y)).Type
		w.Store.InsertFood(entity.Position{X: x, Y: y}, entity.FoodNutrient{
			Energy: foodEnergyPerUnit, Nutrient: environment.NutrientBiasForCell(cellType),
		})
	}
}

func (w *World) mutateOne(id entity.ID) error {
	e, ok := w.Store.Resolve(id)
	if !ok || !w.Store.Alive(e) {
		return corerr.NewInvariantViolation("mutate: unknown or dead entity")
	}
	geno := w.Store.GenotypeOf(e)
	if geno.Brain == nil {
		return corerr.NewInvariantViolation("mutate: entity has no brain")
	}
	rates := neural.ScaleForPopulation(
		neural.DefaultMutationRates(w.Config.Evolution.BaseMutationRate, w.Config.Evolution.MutationAmount),
		w.Store.Count(), w.Config.Evolution.BottleneckThreshold, w.Config.Evolution.StasisThreshold,
	)
	geno.Brain.MutateWeights(w.rng, rates)
	if w.rng.Float64() < rates.AddNodeProb {
		geno.Brain.MutateAddNode(w.rng, w.Innovations)
	}
	if w.rng.Float64() < rates.AddLinkProb {
		geno.Brain.MutateAddLink(w.rng, w.Innovations)
	}
	return nil
}

// smite forcibly kills an entity, mirroring biology.System.Update's own
// death-resolution bookkeeping (corpse fertilization, energy return, Death
// event, lineage extinction check) outside the regular tick cadence.
func (w *World) smite(id entity.ID) error {
	e, ok := w.Store.Resolve(id)
	if !ok || !w.Store.Alive(e) {
		return corerr.NewInvariantViolation("smite: unknown or dead entity")
	}
	geno := w.Store.GenotypeOf(e)
	met := w.Store.Metabolism(e)
	pos := w.Store.Position(e)

	entID, lineageID := geno.ID, geno.Lineage
	age, offspring := met.Age, met.OffspringCount
	x, y, maxEnergy := pos.X, pos.Y, met.MaxEnergy

	w.Store.Despawn(e)
	w.Terrain.At(int(x), int(y)).ApplyCorpseFertilization(maxEnergy)
	w.Env.AvailableEnergy += maxEnergy * 0.1
	w.Lineage.UpdateStats(lineageID, lineage.Stats{DeltaLiving: -1})

	w.Log.Record(telemetry.Event{
		Type: telemetry.EventDeath, Tick: w.tick, EntityID: entID, Lineage: lineageID,
		Cause: telemetry.CauseSmite, Age: age, Offspring: offspring, X: x, Y: y,
	})

	if rec := w.Lineage.Get(lineageID); rec != nil && rec.LivingCount <= 0 {
		w.Lineage.MarkExtinct(lineageID, w.tick)
	}
	return nil
}

// reincarnate revives a fossilized lineage checkpoint as a freshly spawned
// entity. Lineages, not entities, persist a fossil: a dead entity's own id
// can never be resolved again once despawned, so revival targets the
// lineage's own best-genome checkpoint instead.
func (w *World) reincarnate(lineageID entity.LineageID) error {
	rec := w.Lineage.Get(lineageID)
	if rec == nil || rec.BestGenome == nil {
		return corerr.NewInvariantViolation("reincarnate: lineage has no fossil checkpoint to revive")
	}
	brain, err := genetics.CloneBrain(rec.BestGenome, w.GenomeIDs.Next())
	if err != nil {
		return err
	}

	genes := entity.DefaultPhysicalGenes()
	pos := entity.Position{X: w.rng.Float64() * w.width, Y: w.rng.Float64() * w.height}
	childGeno := entity.Genotype{
		ID: entity.DeterministicID(w.rng), Brain: brain, Genes: genes,
		R: uint8(w.rng.Intn(256)), G: uint8(w.rng.Intn(256)), B: uint8(w.rng.Intn(256)),
		Lineage: lineageID,
	}
	w.Store.Insert(pos, entity.Velocity{},
		entity.Metabolism{Energy: genes.MaxEnergyBase, MaxEnergy: genes.MaxEnergyBase},
		entity.Health{Reputation: foundingReputation, Immunity: foundingImmunity},
		entity.Intel{}, childGeno, entity.Bond{})

	rec.Extinct = false
	w.Lineage.UpdateStats(lineageID, lineage.Stats{DeltaLiving: 1, DeltaProduced: 1})
	w.Log.Record(telemetry.Event{
		Type: telemetry.EventBirth, Tick: w.tick, EntityID: childGeno.ID, Lineage: lineageID,
		Detail: "reincarnated",
	})
	return nil
}

func (w *World) geneticSurge(rate float64) {
	if rate <= 0 {
		return
	}
	rate = clamp01(rate)
	rates := neural.MutationRates{
		WeightMutProb: rate, AddNodeProb: rate * 0.2, AddLinkProb: rate * 0.3,
		ToggleEnableProb: rate * 0.05, WeightAmount: w.Config.Evolution.MutationAmount,
	}
	w.Store.Each(func(row entity.OrganismRow) {
		brain := row.Genotype.Brain
		if brain == nil {
			return
		}
		brain.MutateWeights(w.rng, rates)
		if w.rng.Float64() < rates.AddNodeProb {
			brain.MutateAddNode(w.rng, w.Innovations)
		}
		if w.rng.Float64() < rates.AddLinkProb {
			brain.MutateAddLink(w.rng, w.Innovations)
		}
	})
}

func (w *World) paintTerrain(cells []CellCoord, kind terrain.CellType) {
	for _, c := range cells {
		w.Terrain.At(c.X, c.Y).Type = kind
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
