package spatial

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/pthm-cable/primordium/entity"
)

func bruteForce(points []Point, cx, cy, radius float64) map[entity.ID]bool {
	out := make(map[entity.ID]bool)
	for _, p := range points {
		dx := p.X - cx
		dy := p.Y - cy
		if dx*dx+dy*dy <= radius*radius {
			out[p.ID] = true
		}
	}
	return out
}

// TestQueryMatchesBruteForce checks 1,000 random entities against 100 random
// radius queries: the hash result must equal brute force exactly.
func TestQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	const width, height = 1000.0, 1000.0

	points := make([]Point, 1000)
	for i := range points {
		points[i] = Point{ID: uuid.New(), X: rng.Float64() * width, Y: rng.Float64() * height}
	}

	h := New(width, height, 20)
	h.Rebuild(points, 4)

	for i := 0; i < 100; i++ {
		cx := rng.Float64() * width
		cy := rng.Float64() * height
		radius := 5 + rng.Float64()*95

		got := make(map[entity.ID]bool)
		h.QueryCallback(cx, cy, radius, func(p Point, distSq float64) {
			if distSq > radius*radius+1e-9 {
				t.Fatalf("callback received point farther than radius: distSq=%v radius^2=%v", distSq, radius*radius)
			}
			got[p.ID] = true
		})

		want := bruteForce(points, cx, cy, radius)
		if len(got) != len(want) {
			t.Fatalf("query %d: got %d points, want %d", i, len(got), len(want))
		}
		for id := range want {
			if !got[id] {
				t.Fatalf("query %d: missing point %v found by brute force", i, id)
			}
		}
	}
}

func TestRebuildSingleVsMultiWorkerAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const width, height = 500.0, 500.0
	points := make([]Point, 300)
	for i := range points {
		points[i] = Point{ID: uuid.New(), X: rng.Float64() * width, Y: rng.Float64() * height}
	}

	h1 := New(width, height, 20)
	h1.Rebuild(points, 1)
	h8 := New(width, height, 20)
	h8.Rebuild(points, 8)

	cx, cy, radius := 250.0, 250.0, 80.0
	var got1, got8 int
	h1.QueryCallback(cx, cy, radius, func(Point, float64) { got1++ })
	h8.QueryCallback(cx, cy, radius, func(Point, float64) { got8++ })
	if got1 != got8 {
		t.Fatalf("single-worker rebuild (%d) disagrees with multi-worker rebuild (%d)", got1, got8)
	}
}
