// Package perception implements the Perception / Inference System: snapshot
// extraction, the fixed 29-sensor sampling schema, parallel brain forward
// passes, and deterministic proposal emission. Grounded on
// game/parallel.go's snapshot/intent/worker-scratch chunking pattern,
// generalized from a fixed-size intent struct to a variable-length
// proposal buffer per entity.
package perception

import (
	"context"
	"sort"

	"github.com/mlange-42/ark/ecs"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/environment"
	"github.com/pthm-cable/primordium/lineage"
	"github.com/pthm-cable/primordium/neural"
	"github.com/pthm-cable/primordium/spatial"
	"github.com/pthm-cable/primordium/stigmergy"
	"github.com/pthm-cable/primordium/terrain"
)

// Snapshot is the read-only, zero-allocation-on-reuse view of one entity's
// state at the start of a tick, consumed only by Phase A.
type Snapshot struct {
	Entity      ecs.Entity
	ID          entity.ID
	Lineage     entity.LineageID
	Pos         entity.Position
	Vel         entity.Velocity
	Energy      float64
	MaxEnergy   float64
	Age         int64
	Genes       entity.PhysicalGenes
	Brain       *neural.Brain
	LastHidden  [neural.RecurrentHiddenSlots]float64
	Specialization entity.Specialization
	Protected   bool
}

// ProposalKind tags the union of proposal shapes Phase A can emit.
type ProposalKind uint8

const (
	ProposalMove ProposalKind = iota
	ProposalEat
	ProposalAttack
	ProposalShare
	ProposalBond
	ProposalUnbond
	ProposalDig
	ProposalBuild
	ProposalSignal
	ProposalReproduce
	ProposalEmit
)

// Proposal is the tagged-union record Phase B consumes. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Proposal struct {
	Source entity.ID
	Kind   ProposalKind

	DX, DY float64 // Move
	Boost  bool    // Move

	Target entity.ID // Eat/Attack/Share/Bond

	Intensity float64 // Attack
	Amount    float64 // Share/Emit

	Cell struct{ X, Y int } // Dig/Build
	BuildKind terrain.OutpostSpecialization

	ColorDelta     [3]int8 // Signal
	VocalIntensity float64 // Signal

	PartnerID      entity.ID // Reproduce
	HasPartner     bool
	ChildHidden    [neural.RecurrentHiddenSlots]float64

	Channel stigmergy.Channel // Emit
	EmitX, EmitY int
}

// Context bundles the read-only world views Phase A samples from.
type Context struct {
	Spatial     *spatial.Hash
	FoodSpatial *spatial.Hash
	Grids       *stigmergy.Grids
	Terrain     *terrain.Grid
	Env         *environment.State
	Lineage     *lineage.Registry
	CellSize    float64
	Tick        uint64
}

// neighborInfo is a scratch record reused per worker to avoid allocation
// inside QueryCallback.
type neighborInfo struct {
	id      entity.ID
	lineage entity.LineageID
	dx, dy  float64
	distSq  float64
}

const maxProposalsPerEntity = 4

// workerScratch holds per-goroutine reusable buffers, mirroring
// game/parallel.go's workerScratch.
type workerScratch struct {
	neighbors []neighborInfo
}

// Run executes Phase A: for every snapshot, sample sensors, run the brain
// forward, and translate outputs into proposals. Proposals are returned in
// deterministic order (source entity id, then proposal-kind tag),
// independent of goroutine scheduling.
func Run(ctx context.Context, snaps []Snapshot, world Context, workers int) ([]Proposal, error) {
	n := len(snaps)
	if n == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}

	buffers := make([][]Proposal, n)
	scratches := make([]workerScratch, workers)

	chunkSize := (n + workers - 1) / workers
	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		w, start, end := w, start, end
		g.Go(func() error {
			scratch := &scratches[w]
			for i := start; i < end; i++ {
				buffers[i] = perceiveOne(&snaps[i], world, scratch)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	out := make([]Proposal, 0, total)
	for _, b := range buffers {
		out = append(out, b...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return lessID(out[i].Source, out[j].Source)
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

func lessID(a, b entity.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// perceiveOne samples sensors for one entity, runs its brain, and
// translates outputs to zero or more proposals.
func perceiveOne(snap *Snapshot, world Context, scratch *workerScratch) []Proposal {
	inputs := sampleSensors(snap, world, scratch)

	outputs, err := snap.Brain.Think(inputs)
	if err != nil {
		return nil
	}

	proposals := make([]Proposal, 0, maxProposalsPerEntity)
	return decodeOutputs(snap, outputs, scratch, proposals)
}
