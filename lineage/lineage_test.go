package lineage

import (
	"testing"

	"github.com/pthm-cable/primordium/entity"
)

func TestInsertAndUpdateStats(t *testing.T) {
	r := New()
	r.Insert(1, entity.NoLineage, false, 0)
	r.UpdateStats(1, Stats{DeltaLiving: 5, DeltaProduced: 5, DeltaEnergy: 100})

	rec := r.Get(1)
	if rec == nil {
		t.Fatalf("expected record for lineage 1")
	}
	if rec.LivingCount != 5 || rec.TotalProduced != 5 || rec.TotalEnergy != 100 {
		t.Fatalf("unexpected stats: %+v", rec)
	}
}

func TestUpdateStatsUnknownLineageIsNoOp(t *testing.T) {
	r := New()
	r.UpdateStats(99, Stats{DeltaLiving: 1}) // must not panic
}

func TestMarkExtinctFlagsLegendaryLineage(t *testing.T) {
	r := New()
	r.Insert(1, entity.NoLineage, false, 0)
	r.UpdateStats(1, Stats{Rank: legendaryRankThreshold + 0.01, CandidateGenome: nil})
	// also legendary by offspring; with no genome recorded, no fossil is written
	r.UpdateStats(1, Stats{OffspringGeneratedByMember: legendaryOffspringThreshold + 1})

	r.MarkExtinct(1, 500)
	rec := r.Get(1)
	if !rec.Extinct {
		t.Fatalf("expected lineage marked extinct")
	}
}

func TestChildrenTracksAncestryDAG(t *testing.T) {
	r := New()
	r.Insert(1, entity.NoLineage, false, 0)
	r.Insert(2, 1, true, 10)
	r.Insert(3, 1, true, 20)

	children := r.Children(1)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestPruneRemovesLongExtinctSmallLineages(t *testing.T) {
	r := New()
	r.Insert(1, entity.NoLineage, false, 0)
	r.UpdateStats(1, Stats{DeltaProduced: 1})
	r.MarkExtinct(1, 0)

	if n := r.Prune(pruneExtinctAfterTicks - 1); n != 0 {
		t.Fatalf("expected no pruning before the threshold, pruned %d", n)
	}
	if n := r.Prune(pruneExtinctAfterTicks + 1); n != 1 {
		t.Fatalf("expected 1 lineage pruned, got %d", n)
	}
	if r.Get(1) != nil {
		t.Fatalf("expected lineage 1 removed after pruning")
	}
}

func TestTopKByOrdersDescending(t *testing.T) {
	r := New()
	r.Insert(1, entity.NoLineage, false, 0)
	r.Insert(2, entity.NoLineage, false, 0)
	r.UpdateStats(1, Stats{DeltaEnergy: 10})
	r.UpdateStats(2, Stats{DeltaEnergy: 50})

	top := r.TopKBy(1, func(rec *Record) float64 { return rec.TotalEnergy })
	if len(top) != 1 || top[0].ID != 2 {
		t.Fatalf("expected lineage 2 to rank first, got %+v", top)
	}
}
