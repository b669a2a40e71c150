package action

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/perception"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/telemetry"
)

// protectionReputationThreshold is how high a same-lineage target's
// reputation must be before attacking it is blocked outright, the
// "reputation-protected kin" exception Attack's precondition names.
const protectionReputationThreshold = 0.7

// digestCooldownTicks is how long an attacker must wait before it may land
// another hit, grounded on the teacher's per-organism DigestCooldown field
// (components/organism.go) that throttles repeated bites the same way.
const digestCooldownTicks = 30

// applyAttack re-validates distance and protection against current state,
// then deducts damage from the target, crediting the attacker (and the
// environment pool) on a lethal hit.
func (s *System) applyAttack(tick uint64, attacker ecs.Entity, p perception.Proposal) {
	target, ok := s.Store.Resolve(p.Target)
	if !ok || !s.Store.Alive(target) {
		return
	}

	aMet := s.Store.Metabolism(attacker)
	if aMet.DigestCooldown > 0 {
		return
	}

	aPos := s.Store.Position(attacker)
	tPos := s.Store.Position(target)
	if distSq(aPos.X, aPos.Y, tPos.X, tPos.Y) > attackDistance*attackDistance {
		return
	}

	aGeno := s.Store.GenotypeOf(attacker)
	tGeno := s.Store.GenotypeOf(target)
	tHealth := s.Store.HealthOf(target)
	if aGeno.Lineage == tGeno.Lineage && tHealth.Reputation >= protectionReputationThreshold {
		return
	}
	if s.inZone(aPos.X, aPos.Y, ZonePeace) || s.inZone(tPos.X, tPos.Y, ZonePeace) {
		return
	}

	aHealth := s.Store.HealthOf(attacker)

	rankBonus := 1 + aHealth.SocialRank*rankBonusScale
	warZone := 1.0
	if s.Env.Era == environment.DominanceWar || s.Env.Era == environment.ApexEra {
		warZone = warZoneMultiplier
	}
	if s.inZone(aPos.X, aPos.Y, ZoneWar) || s.inZone(tPos.X, tPos.Y, ZoneWar) {
		warZone *= warZoneMultiplier
	}
	casteBonus := 1.0
	if aHealth.Specialization == entity.SpecSoldier {
		casteBonus = soldierMultiplier
	}
	defense := s.groupDefenseMultiplier(target, tGeno.Lineage)

	damage := p.Intensity * baseAttackDamage * rankBonus * warZone * casteBonus * defense

	tMet := s.Store.Metabolism(target)
	tMet.Energy -= damage
	tMet.ReinforcementAcc = -1.0

	aHealth.CasteSoldier += p.Intensity
	if aGeno.Lineage == tGeno.Lineage {
		aHealth.Reputation = clamp01(aHealth.Reputation + reputationBetrayalPenalty)
	}
	aMet.DigestCooldown = digestCooldownTicks

	s.Log.Record(telemetry.Event{
		Type: telemetry.EventPredation, Tick: tick,
		EntityID: aGeno.ID, TargetID: tGeno.ID, Amount: damage,
	})

	if tMet.Energy <= 0 {
		s.killAndHarvest(tick, target, tGeno, attacker, aGeno, tMet.MaxEnergy)
	}
}

// groupDefenseMultiplier reduces attack damage the more relatedness a
// target's nearby kin contribute: max(0.4, 1.0 - 0.15*sum(r)).
func (s *System) groupDefenseMultiplier(target ecs.Entity, targetLineage entity.LineageID) float64 {
	if s.Spatial == nil {
		return 1.0
	}
	pos := s.Store.Position(target)
	n := s.Spatial.CountInRadius(pos.X, pos.Y, crowdingRadius, func(p spatial.Point) bool {
		return p.Lineage == targetLineage
	})
	var sumR float64
	if n > 0 {
		sumR = float64(n-1) * 0.5 // exclude target itself, assume r=0.5 among same-lineage kin
	}
	mult := 1.0 - groupDefenseSlope*sumR
	if mult < groupDefenseFloor {
		mult = groupDefenseFloor
	}
	return mult
}

// killAndHarvest resolves a lethal hit: carcass energy proportional to the
// victim's trophic_potential feeds the attacker, the remainder returns to
// the environment's energy pool. Death itself (store removal, corpse
// fertilization) is biology's job once it observes energy<=0 next phase;
// Action only marks the kill.
func (s *System) killAndHarvest(tick uint64, victim ecs.Entity, victimGeno *entity.Genotype, attacker ecs.Entity, attackerGeno *entity.Genotype, victimMaxEnergy float64) {
	carcass := victimMaxEnergy * victimGeno.Genes.TrophicPotential
	attackerMet := s.Store.Metabolism(attacker)
	attackerMet.Energy += carcass
	if attackerMet.Energy > attackerMet.MaxEnergy {
		attackerMet.Energy = attackerMet.MaxEnergy
	}
	s.Env.AvailableEnergy += victimMaxEnergy - carcass

	s.Log.Record(telemetry.Event{
		Type: telemetry.EventPredation, Tick: tick,
		EntityID: attackerGeno.ID, TargetID: victimGeno.ID, Amount: carcass,
	})
}
