package world

import (
	"github.com/pthm-cable/primordium/corerr"
	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/hexdna"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/telemetry"
)

// injectEntity decodes a HexDNA blob and spawns it at pos, founding its
// lineage record if this is the first entity the host has ever seen from it
// (e.g. a migrant arriving from a host process that has never connected
// before).
func (w *World) injectEntity(blob string, pos entity.Position) error {
	geno, err := hexdna.Decode(blob)
	if err != nil {
		return err
	}
	if rec := w.Lineage.Get(geno.Lineage); rec == nil {
		w.Lineage.Insert(geno.Lineage, entity.NoLineage, false, w.tick)
	}
	w.Store.Insert(pos, entity.Velocity{},
		entity.Metabolism{Energy: geno.Genes.MaxEnergyBase * 0.5, MaxEnergy: geno.Genes.MaxEnergyBase},
		entity.Health{Reputation: foundingReputation, Immunity: foundingImmunity},
		entity.Intel{}, *geno, entity.Bond{})
	w.Lineage.UpdateStats(geno.Lineage, lineage.Stats{DeltaLiving: 1, DeltaProduced: 1})
	w.Log.Record(telemetry.Event{
		Type: telemetry.EventMigrationIn, Tick: w.tick, EntityID: geno.ID, Lineage: geno.Lineage,
		X: pos.X, Y: pos.Y,
	})
	return nil
}

// ImportMigrant decodes and spawns an externally-sourced HexDNA blob at a
// random position, for a host bridging entities in from another running
// instance.
func (w *World) ImportMigrant(blob string) error {
	pos := entity.Position{X: w.rng.Float64() * w.width, Y: w.rng.Float64() * w.height}
	return w.injectEntity(blob, pos)
}

// ExportMigrant encodes a live entity's genotype as a HexDNA blob for
// hand-off to another host, without removing it from this world.
func (w *World) ExportMigrant(id entity.ID) (string, error) {
	e, ok := w.Store.Resolve(id)
	if !ok || !w.Store.Alive(e) {
		return "", corerr.NewInvariantViolation("export_migrant: unknown or dead entity")
	}
	geno := w.Store.GenotypeOf(e)
	blob, err := hexdna.Encode(geno)
	if err != nil {
		return "", err
	}
	w.Log.Record(telemetry.Event{
		Type: telemetry.EventMigrationOut, Tick: w.tick, EntityID: geno.ID, Lineage: geno.Lineage,
	})
	return blob, nil
}
