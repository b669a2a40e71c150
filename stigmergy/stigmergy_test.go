package stigmergy

import "testing"

func TestDecayReducesAndFloorsNearZero(t *testing.T) {
	g := New(4, 4, nil)
	g.Deposit(ChannelFoodTrail, 1, 1, 0.005)
	g.DecayAndDiffuse()
	if v := g.At(ChannelFoodTrail, 1, 1); v != 0 {
		t.Fatalf("expected sub-floor deposit to decay to exactly 0, got %v", v)
	}
}

func TestDepositAccumulates(t *testing.T) {
	g := New(4, 4, nil)
	g.Deposit(ChannelDanger, 2, 2, 1.0)
	g.Deposit(ChannelDanger, 2, 2, 0.5)
	if v := g.At(ChannelDanger, 2, 2); v != 1.5 {
		t.Fatalf("expected accumulated deposit 1.5, got %v", v)
	}
}

func TestAtClampsOutOfBounds(t *testing.T) {
	g := New(4, 4, nil)
	g.Deposit(ChannelSound, 0, 0, 2.0)
	if v := g.At(ChannelSound, -5, -5); v != 2.0 {
		t.Fatalf("expected out-of-bounds read to clamp to (0,0), got %v", v)
	}
}

func TestQueueAppliesInDeterministicOrder(t *testing.T) {
	g := New(4, 4, nil)
	g.NewQueueSet(2)
	g.Enqueue(0, Deposit{X: 1, Y: 1, Channel: ChannelInfluence, Amount: 1})
	g.Enqueue(1, Deposit{X: 1, Y: 1, Channel: ChannelInfluence, Amount: 2})
	g.ApplyQueued()
	if v := g.At(ChannelInfluence, 1, 1); v != 3 {
		t.Fatalf("expected merged deposits to sum to 3, got %v", v)
	}
}

func TestSoundDiffusesTowardNeighbors(t *testing.T) {
	g := New(5, 5, nil)
	g.Deposit(ChannelSound, 2, 2, 9.0)
	before := g.At(ChannelSound, 2, 2)
	g.DecayAndDiffuse()
	after := g.At(ChannelSound, 2, 2)
	if after >= before {
		t.Fatalf("expected center sound value to drop after diffusing into neighbors: before=%v after=%v", before, after)
	}
	if neighbor := g.At(ChannelSound, 2, 1); neighbor <= 0 {
		t.Fatalf("expected neighbor cell to receive diffused sound, got %v", neighbor)
	}
}

func TestWallsBlockSoundDiffusion(t *testing.T) {
	walls := make([]bool, 25)
	walls[2*5+3] = true // wall at (3,2)

	g := New(5, 5, walls)
	g.Deposit(ChannelSound, 2, 2, 9.0)
	g.DecayAndDiffuse()
	if v := g.At(ChannelSound, 3, 2); v != 0 {
		t.Fatalf("expected wall cell to stay untouched by diffusion, got %v", v)
	}
}
