package action

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/genetics"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/perception"
	"github.com/pthm-cable/primordium/telemetry"
)

// lineageBirthDelta is the stats delta a single new birth applies to its
// lineage's running aggregates.
func lineageBirthDelta() lineage.Stats {
	return lineage.Stats{DeltaLiving: 1, DeltaProduced: 1}
}

// relatedness approximates kinship for the Share/defense formulas: a bonded
// same-lineage partner counts as close family, any other same-lineage
// neighbor as distant kin, anyone else as unrelated. Neither the spec text
// nor the teacher's traits system spells out a continuous pedigree measure,
// so this three-tier approximation is the documented stand-in.
func relatedness(giver, target *entity.Genotype, bond *entity.Bond, targetID entity.ID) float64 {
	if giver.Lineage != target.Lineage {
		return 0
	}
	if bond.HasPartner && bond.Partner == targetID {
		return 1.0
	}
	return 0.5
}

// applyShare re-validates distance/relatedness/fullness and transfers
// energy, crediting the giver's reputation.
func (s *System) applyShare(tick uint64, giver ecs.Entity, p perception.Proposal) {
	target, ok := s.Store.Resolve(p.Target)
	if !ok || !s.Store.Alive(target) {
		return
	}
	gPos := s.Store.Position(giver)
	tPos := s.Store.Position(target)
	if distSq(gPos.X, gPos.Y, tPos.X, tPos.Y) > bondFormDistance*bondFormDistance*25 {
		// Share range mirrors bond range (12 units in Phase A's gate); 5x
		// bondFormDistance approximates that without importing perception's
		// unexported constant.
		return
	}

	gGeno := s.Store.GenotypeOf(giver)
	tGeno := s.Store.GenotypeOf(target)
	gBond := s.Store.BondOf(giver)
	gMet := s.Store.Metabolism(giver)
	gHealth := s.Store.HealthOf(giver)

	if gMet.MaxEnergy <= 0 || gMet.Energy/gMet.MaxEnergy <= shareGiverFullRatio {
		return
	}
	r := relatedness(gGeno, tGeno, gBond, tGeno.ID)
	if r <= relatednessShareThreshold {
		return
	}

	amount := gMet.Energy * shareRate * r
	gMet.Energy -= amount
	tMet := s.Store.Metabolism(target)
	tMet.Energy += amount
	if tMet.Energy > tMet.MaxEnergy {
		tMet.Energy = tMet.MaxEnergy
	}
	gHealth.CasteProvider += r
	gHealth.Reputation = clamp01(gHealth.Reputation + reputationShareGain*r)

	s.Log.Record(telemetry.Event{
		Type: telemetry.EventShare, Tick: tick, EntityID: gGeno.ID, TargetID: tGeno.ID, Amount: amount,
	})
}

const shareGiverFullRatio = 0.7

// applyBond forms a mutual pairing if the target is in range and neither
// side is already bonded to someone else.
func (s *System) applyBond(tick uint64, initiator ecs.Entity, p perception.Proposal) {
	target, ok := s.Store.Resolve(p.Target)
	if !ok || !s.Store.Alive(target) {
		return
	}
	iPos := s.Store.Position(initiator)
	tPos := s.Store.Position(target)
	if distSq(iPos.X, iPos.Y, tPos.X, tPos.Y) > bondFormDistance*bondFormDistance {
		return
	}

	iBond := s.Store.BondOf(initiator)
	tBond := s.Store.BondOf(target)
	if iBond.HasPartner || tBond.HasPartner {
		return
	}

	tGeno := s.Store.GenotypeOf(target)
	iGeno := s.Store.GenotypeOf(initiator)

	iBond.HasPartner, iBond.Partner, iBond.Strength, iBond.TickFormed = true, tGeno.ID, 1.0, int64(tick)
	tBond.HasPartner, tBond.Partner, tBond.Strength, tBond.TickFormed = true, iGeno.ID, 1.0, int64(tick)
}

// applyUnbond clears one side's bond; breakStaleBonds clears the other side
// once it notices the mismatch at the end of the same Apply pass, matching the teacher's
// eventually-consistent pairing bookkeeping for mutual state.
func (s *System) applyUnbond(e ecs.Entity) {
	bond := s.Store.BondOf(e)
	bond.HasPartner = false
	bond.Partner = entity.ID{}
	bond.Strength = 0
}

// breakStaleBonds scans every bonded organism and clears pairings whose
// partner has despawned, no longer points back at this organism, or drifted
// past bondBreakDistance.
func (s *System) breakStaleBonds() {
	type stale struct {
		e ecs.Entity
	}
	var toBreak []stale
	s.Store.Each(func(row entity.OrganismRow) {
		if !row.Bond.HasPartner {
			return
		}
		partner, ok := s.Store.Resolve(row.Bond.Partner)
		if !ok || !s.Store.Alive(partner) {
			toBreak = append(toBreak, stale{row.Entity})
			return
		}
		if pBond := s.Store.BondOf(partner); !pBond.HasPartner || pBond.Partner != row.Genotype.ID {
			toBreak = append(toBreak, stale{row.Entity})
			return
		}
		pPos := s.Store.Position(partner)
		if distSq(row.Position.X, row.Position.Y, pPos.X, pPos.Y) > bondBreakDistance*bondBreakDistance {
			toBreak = append(toBreak, stale{row.Entity})
		}
	})
	for _, st := range toBreak {
		s.applyUnbond(st.e)
	}
}

// prepareReproduce validates eligibility against current state and, if
// admitted, builds the deferred birth request. The child is not inserted
// into the store until after the full proposal pass completes.
func (s *System) prepareReproduce(tick uint64, parent ecs.Entity, p perception.Proposal) (birthRequest, bool) {
	pGeno := s.Store.GenotypeOf(parent)
	pMet := s.Store.Metabolism(parent)
	pGenes := pGeno.Genes

	mature := float64(pMet.Age) >= baseMaturityAgeFor(pGenes.MaturityGene)
	if !genetics.Eligible(pMet.Energy, pMet.MaxEnergy, genetics.MinEnergyRatioToReproduce, mature) {
		return birthRequest{}, false
	}

	req := birthRequest{
		tick:        tick,
		parent:      parent,
		parentID:    pGeno.ID,
		partnerID:   p.PartnerID,
		hasPartner:  p.HasPartner,
		childHidden: p.ChildHidden,
	}
	return req, true
}

func baseMaturityAgeFor(maturityGene float64) float64 {
	const base = 500
	return base * maturityGene
}

// blendGenes averages two parents' physical genes for a symbiotic,
// cross-lineage bond's offspring (the Social System's merged-genotype path),
// rather than inheriting a single parent's genes unmodified.
func blendGenes(a, b entity.PhysicalGenes) entity.PhysicalGenes {
	return entity.PhysicalGenes{
		SensingRange:       (a.SensingRange + b.SensingRange) / 2,
		MaxSpeed:           (a.MaxSpeed + b.MaxSpeed) / 2,
		MaxEnergyBase:      (a.MaxEnergyBase + b.MaxEnergyBase) / 2,
		MetabolicNiche:     (a.MetabolicNiche + b.MetabolicNiche) / 2,
		TrophicPotential:   (a.TrophicPotential + b.TrophicPotential) / 2,
		ReproductiveInvest: (a.ReproductiveInvest + b.ReproductiveInvest) / 2,
		MaturityGene:       (a.MaturityGene + b.MaturityGene) / 2,
		MatePreference:     (a.MatePreference + b.MatePreference) / 2,
		PairingBias:        (a.PairingBias + b.PairingBias) / 2,
	}
}

// spawnChild performs the actual reproduction draw and store insertion for
// one admitted birth request.
func (s *System) spawnChild(req birthRequest) {
	if !s.Store.Alive(req.parent) {
		return
	}
	pGeno := s.Store.GenotypeOf(req.parent)
	pMet := s.Store.Metabolism(req.parent)
	pPos := s.Store.Position(req.parent)
	pHealth := s.Store.HealthOf(req.parent)

	rng := genetics.EntityStream(s.WorldSeed, req.tick, req.parentID)

	var partnerBrain *neural.Brain
	var partnerEnergy, partnerFitness float64
	var partnerEntity ecs.Entity
	var partnerGenes *entity.PhysicalGenes
	hasPartner := false
	if req.hasPartner {
		if pe, ok := s.Store.Resolve(req.partnerID); ok && s.Store.Alive(pe) {
			partnerEntity = pe
			partnerGeno := s.Store.GenotypeOf(pe)
			partnerMet := s.Store.Metabolism(pe)
			partnerHealth := s.Store.HealthOf(pe)
			partnerBrain = partnerGeno.Brain
			partnerEnergy = partnerMet.Energy
			partnerFitness = partnerHealth.SocialRank
			partnerGenes = &partnerGeno.Genes
			hasPartner = true
		}
	}

	pBond := s.Store.BondOf(req.parent)
	symbiotic := hasPartner && pBond.Symbiotic

	population := s.Store.Count()
	scale, fullReroll := genetics.MutationScale(population, rng, s.Evolution.BottleneckThreshold, s.Evolution.StasisThreshold)
	rates := neural.ScaleByFactor(
		neural.DefaultMutationRates(s.Evolution.BaseMutationRate, s.Evolution.MutationAmount),
		scale,
	)

	childGenomeID := s.GenomeIDs.Next()
	off, err := genetics.Reproduce(
		rng, pGeno.Brain, partnerBrain, pHealth.SocialRank, partnerFitness,
		s.Innovations, childGenomeID, rates, pGeno.Genes.ReproductiveInvest, pMet.Energy, partnerEnergy,
	)
	if err != nil {
		return
	}

	pMet.Energy -= off.ParentEnergy
	childEnergy := off.ParentEnergy
	if hasPartner {
		partnerMet := s.Store.Metabolism(partnerEntity)
		partnerMet.Energy -= off.PartnerEnergy
		childEnergy += off.PartnerEnergy
	}

	// Speciation compares the child's actual (mutated/crossed-over) genome
	// against its parent, not against the partner it was crossed with — drift
	// from mutation alone must be able to trigger a new lineage on the
	// asexual path too.
	distance := neural.Compatibility(pGeno.Brain.Genome, off.Brain.Genome, 1.0, 1.0, 0.4)
	childLineage, isNew := genetics.AssignLineage(pGeno.Lineage, distance, s.Evolution.SpeciationThreshold, s.NextLineageID)
	if isNew {
		s.Lineage.Insert(childLineage, pGeno.Lineage, true, req.tick)
	}

	childID := entity.DeterministicID(rng)
	jitterX := (rng.Float64() - 0.5) * 2
	jitterY := (rng.Float64() - 0.5) * 2

	childGenes := pGeno.Genes
	if symbiotic && partnerGenes != nil {
		childGenes = blendGenes(pGeno.Genes, *partnerGenes)
	}
	if fullReroll {
		childGenes = genetics.RerollTraits(rng)
	}

	childGeno := entity.Genotype{
		ID:      childID,
		Brain:   off.Brain,
		Genes:   childGenes,
		R:       pGeno.R,
		G:       pGeno.G,
		B:       pGeno.B,
		Lineage: childLineage,
	}
	childMet := entity.Metabolism{
		Energy: childEnergy, MaxEnergy: childGenes.MaxEnergyBase, Generation: pMet.Generation + 1,
	}
	childIntel := entity.Intel{LastHidden: append([]float64(nil), req.childHidden[:]...)}

	s.Store.Insert(
		entity.Position{X: pPos.X + jitterX, Y: pPos.Y + jitterY},
		entity.Velocity{},
		childMet,
		entity.Health{Reputation: foundingReputation, Immunity: foundingImmunity},
		childIntel,
		childGeno,
		entity.Bond{},
	)

	pMet.OffspringCount++
	s.Lineage.UpdateStats(childLineage, lineageBirthDelta())

	s.Log.Record(telemetry.Event{
		Type: telemetry.EventBirth, Tick: req.tick, EntityID: childID, TargetID: req.parentID, Lineage: childLineage,
	})
}
