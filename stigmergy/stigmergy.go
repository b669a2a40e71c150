// Package stigmergy implements the Stigmergic Grids: pheromones
// (FoodTrail/Danger/SignalA/SignalB), Sound, and Influence scalar fields with
// per-tick decay, a 3x3 box-blur diffusion pass for Sound, and a deposit
// queue applied at the start of Phase B so Phase A never mutates shared
// state directly.
package stigmergy

// Channel identifies one of the six stigmergic fields.
type Channel uint8

const (
	ChannelFoodTrail Channel = iota
	ChannelDanger
	ChannelSignalA
	ChannelSignalB
	ChannelSound
	ChannelInfluence
	channelCount
)

// clampFloor is the sub-0.01 clamp-to-zero threshold.
const clampFloor = 0.01

// decayRates are per-channel defaults; Sound decays fastest (propagates,
// doesn't linger), Influence slowest (long-lived social signal).
var decayRates = [channelCount]float64{
	ChannelFoodTrail: 0.02,
	ChannelDanger:    0.05,
	ChannelSignalA:   0.03,
	ChannelSignalB:   0.03,
	ChannelSound:     0.3,
	ChannelInfluence: 0.01,
}

// Deposit is a queued write: entities may only enqueue deposits during Phase
// A; they are applied during Phase B before Action runs, so Phase A never
// mutates shared state.
type Deposit struct {
	X, Y    int
	Channel Channel
	Amount  float64
}

// Grids holds the six scalar fields at world resolution plus per-thread
// deposit queues merged deterministically each tick.
type Grids struct {
	width, height int
	walls         []bool
	fields        [channelCount][]float64
	queues        [][]Deposit // one append-only queue per producer "thread"
}

// New allocates grids sized width x height. wallMask, if non-nil, marks cells
// that block Sound propagation; pass nil for a world with no walls.
func New(width, height int, wallMask []bool) *Grids {
	g := &Grids{width: width, height: height, walls: wallMask}
	for c := Channel(0); c < channelCount; c++ {
		g.fields[c] = make([]float64, width*height)
	}
	return g
}

func (g *Grids) idx(x, y int) int { return y*g.width + x }

func (g *Grids) inBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// At returns the current value of a channel at (x,y), clamped into bounds.
func (g *Grids) At(ch Channel, x, y int) float64 {
	x, y = g.clampCoord(x, y)
	return g.fields[ch][g.idx(x, y)]
}

func (g *Grids) clampCoord(x, y int) (int, int) {
	if x < 0 {
		x = 0
	} else if x >= g.width {
		x = g.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.height {
		y = g.height - 1
	}
	return x, y
}

// DecayAndDiffuse runs the per-tick decay for every channel and the 3x3
// box-blur diffusion pass for Sound only. Called once during Phase 0 setup,
// before Phase A.
func (g *Grids) DecayAndDiffuse() {
	for ch := Channel(0); ch < channelCount; ch++ {
		field := g.fields[ch]
		rate := decayRates[ch]
		for i, v := range field {
			nv := v * (1 - rate)
			if nv < clampFloor {
				nv = 0
			}
			field[i] = nv
		}
	}
	g.diffuseSound()
}

func (g *Grids) diffuseSound() {
	src := g.fields[ChannelSound]
	dst := make([]float64, len(src))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.isWall(x, y) {
				dst[g.idx(x, y)] = src[g.idx(x, y)]
				continue
			}
			var sum float64
			var n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if !g.inBounds(nx, ny) || g.isWall(nx, ny) {
						continue
					}
					sum += src[g.idx(nx, ny)]
					n++
				}
			}
			if n > 0 {
				dst[g.idx(x, y)] = sum / float64(n)
			}
		}
	}
	g.fields[ChannelSound] = dst
}

func (g *Grids) isWall(x, y int) bool {
	if g.walls == nil {
		return false
	}
	return g.walls[g.idx(x, y)]
}

// NewQueueSet allocates one deposit queue per Phase A worker.
func (g *Grids) NewQueueSet(workers int) {
	g.queues = make([][]Deposit, workers)
}

// Enqueue records a deposit from worker `worker` (Phase A). Out-of-bounds
// coordinates are silently clamped.
func (g *Grids) Enqueue(worker int, d Deposit) {
	x, y := g.clampCoord(d.X, d.Y)
	d.X, d.Y = x, y
	g.queues[worker] = append(g.queues[worker], d)
}

// ApplyQueued merges all worker queues into the grids in deterministic order
// (workers processed in index order, deposits within a worker's queue in
// enqueue order) and clears the queues. Called at the start of Phase B.
func (g *Grids) ApplyQueued() {
	for w := range g.queues {
		for _, d := range g.queues[w] {
			field := g.fields[d.Channel]
			idx := g.idx(d.X, d.Y)
			field[idx] += d.Amount
		}
		g.queues[w] = g.queues[w][:0]
	}
}

// Deposit immediately adds amount to a channel at (x,y). Safe to call from
// the single-threaded Action phase, where queuing through Enqueue/
// ApplyQueued would just add indirection.
func (g *Grids) Deposit(ch Channel, x, y int, amount float64) {
	x, y = g.clampCoord(x, y)
	g.fields[ch][g.idx(x, y)] += amount
}

// Dims returns the grid dimensions.
func (g *Grids) Dims() (width, height int) { return g.width, g.height }
