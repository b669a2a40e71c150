package perception

import (
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/terrain"
)

// bondRange and attackRange bound proposal-worthy proximity independent of
// SensingRange, so crowded scenes don't let every neighbor trigger a bond or
// attack attempt.
const (
	bondRange            = 12.0
	attackRange          = 10.0
	shareEnergyRatio     = 0.7
	signalDeltaThreshold = 0.3
	reproduceEnergyRatio = 0.8
	reproduceBondSignal  = 0.8
)

// decodeOutputs translates one brain's 12 outputs into zero or more
// proposals, gated by fixed thresholds. Every proposal is capped to
// maxProposalsPerEntity; Move is always emitted first since every tick an
// entity at minimum drifts.
func decodeOutputs(snap *Snapshot, outputs [neural.BrainOutputs]float64, scratch *workerScratch, proposals []Proposal) []Proposal {
	proposals = append(proposals, Proposal{
		Source: snap.ID,
		Kind:   ProposalMove,
		DX:     outputs[neural.OutMoveX] * snap.Genes.MaxSpeed,
		DY:     outputs[neural.OutMoveY] * snap.Genes.MaxSpeed,
		Boost:  outputs[neural.OutBoost] > 0.5,
	})

	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutAggression] > 0.5 {
		if target, ok := nearestBy(scratch.neighbors, func(n neighborInfo) bool {
			return n.lineage != snap.Lineage && n.distSq <= attackRange*attackRange
		}); ok {
			proposals = append(proposals, Proposal{
				Source:    snap.ID,
				Kind:      ProposalAttack,
				Target:    target.id,
				Intensity: outputs[neural.OutAggression],
			})
		}
	}

	energyRatio := 0.0
	if snap.MaxEnergy > 0 {
		energyRatio = snap.Energy / snap.MaxEnergy
	}
	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutShare] > 0.5 && energyRatio > shareEnergyRatio {
		if target, ok := nearestBy(scratch.neighbors, func(n neighborInfo) bool {
			return n.lineage == snap.Lineage && n.distSq <= bondRange*bondRange
		}); ok {
			proposals = append(proposals, Proposal{
				Source: snap.ID,
				Kind:   ProposalShare,
				Target: target.id,
				Amount: snap.Energy * (outputs[neural.OutShare] - 0.5),
			})
		}
	}

	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutBond] > 0.5 {
		if target, ok := nearestBy(scratch.neighbors, func(n neighborInfo) bool {
			return n.lineage == snap.Lineage && n.distSq <= bondRange*bondRange
		}); ok {
			proposals = append(proposals, Proposal{
				Source:      snap.ID,
				Kind:        ProposalBond,
				Target:      target.id,
				PartnerID:   target.id,
				HasPartner:  true,
				ChildHidden: snap.LastHidden,
			})
		}
	}

	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutBond] > reproduceBondSignal && energyRatio > reproduceEnergyRatio {
		partner, hasPartner := nearestBy(scratch.neighbors, func(n neighborInfo) bool {
			return n.lineage == snap.Lineage && n.distSq <= bondRange*bondRange
		})
		proposals = append(proposals, Proposal{
			Source:      snap.ID,
			Kind:        ProposalReproduce,
			PartnerID:   partner.id,
			HasPartner:  hasPartner,
			ChildHidden: snap.LastHidden,
		})
	}

	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutDig] > 0.5 {
		proposals = append(proposals, Proposal{
			Source: snap.ID,
			Kind:   ProposalDig,
			Cell:   struct{ X, Y int }{int(snap.Pos.X), int(snap.Pos.Y)},
		})
	}

	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutBuild] > 0.5 {
		proposals = append(proposals, Proposal{
			Source:    snap.ID,
			Kind:      ProposalBuild,
			Cell:      struct{ X, Y int }{int(snap.Pos.X), int(snap.Pos.Y)},
			BuildKind: buildKindFromOutput(outputs[neural.OutBuild]),
		})
	}

	if len(proposals) < maxProposalsPerEntity && abs(outputs[neural.OutSignalColor]) > signalDeltaThreshold {
		proposals = append(proposals, Proposal{
			Source:         snap.ID,
			Kind:           ProposalSignal,
			ColorDelta:     signalDeltaFromOutput(outputs[neural.OutSignalColor]),
			VocalIntensity: outputs[neural.OutVocalize],
		})
	}

	if len(proposals) < maxProposalsPerEntity && outputs[neural.OutOvermindSignal] > 0.5 {
		ch, amount := channelFromSignalAB(outputs[neural.OutSignalAB], outputs[neural.OutOvermindSignal])
		proposals = append(proposals, Proposal{
			Source:  snap.ID,
			Kind:    ProposalEmit,
			Channel: ch,
			Amount:  amount,
			EmitX:   int(snap.Pos.X),
			EmitY:   int(snap.Pos.Y),
		})
	}

	return proposals
}

func buildKindFromOutput(v float64) terrain.OutpostSpecialization {
	switch {
	case v > 0.85:
		return terrain.OutpostWatchtower
	case v > 0.7:
		return terrain.OutpostGranary
	default:
		return terrain.OutpostForge
	}
}

func signalDeltaFromOutput(v float64) [3]int8 {
	scaled := int8(v * 127)
	return [3]int8{scaled, scaled, scaled}
}

func channelFromSignalAB(selector, intensity float64) (stigmergy.Channel, float64) {
	if selector > 0 {
		return stigmergy.ChannelSignalB, intensity
	}
	return stigmergy.ChannelSignalA, intensity
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
