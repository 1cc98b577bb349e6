package gates

import "testing"

func fixedGate(id string, dir Direction, ops ...Operation) Gate {
	return Gate{ID: id, Direction: dir, Options: ops}
}

func TestEnemyFor(t *testing.T) {
	tests := []struct {
		best  int
		ratio float64
		want  int
	}{
		{90, 0.8, 72},
		{15, 0.8, 12},
		{1, 0.8, 0},
		{7, 0.8, 5},
		{0, 0.8, 0},
		{50, 0, 0},
		{10, 1, 10},
	}
	for _, tt := range tests {
		if got := EnemyFor(tt.best, tt.ratio); got != tt.want {
			t.Errorf("EnemyFor(%d, %v) = %d, want %d", tt.best, tt.ratio, got, tt.want)
		}
	}
}

func TestEvaluateOptimal(t *testing.T) {
	forward := []Gate{
		fixedGate("f0", Forward, Add{N: 10}, NewMultiply(1.5)), // 60 -> 90, enemy 72, after 18
		fixedGate("f1", Forward, Add{N: 22}, Subtract{N: 5}),   // 18 -> 40, enemy 32, after 8
	}
	retreat := []Gate{
		fixedGate("r0", Retreat, NewDivide(2), Add{N: 4}), // 8 -> 12
	}

	p := EvaluateOptimal(60, forward, retreat, 0.8)

	if len(p.Forward) != 2 || len(p.Retreat) != 1 {
		t.Fatalf("unexpected checkpoint counts %d/%d", len(p.Forward), len(p.Retreat))
	}
	first := p.Forward[0]
	if first.Best != 90 || first.BestChoice != 1 || first.Enemy != 72 || first.After != 18 {
		t.Errorf("unexpected first checkpoint %+v", first)
	}
	second := p.Forward[1]
	if second.Before != 18 || second.Best != 40 || second.Enemy != 32 || second.After != 8 {
		t.Errorf("unexpected second checkpoint %+v", second)
	}
	if p.ForwardFinal != 8 {
		t.Errorf("expected forward final 8, got %d", p.ForwardFinal)
	}
	if p.Retreat[0].Enemy != 0 || p.Retreat[0].Best != 12 || p.Retreat[0].BestChoice != 1 {
		t.Errorf("unexpected retreat checkpoint %+v", p.Retreat[0])
	}
	if p.Denominator() != 12 {
		t.Errorf("expected denominator 12, got %d", p.Denominator())
	}
	if p.Gates() != 3 {
		t.Errorf("expected 3 gates, got %d", p.Gates())
	}

	cp, ok := p.Checkpoint("r0")
	if !ok || cp.GateID != "r0" {
		t.Error("expected to find retreat checkpoint r0")
	}
	if _, ok := p.Checkpoint("missing"); ok {
		t.Error("expected missing checkpoint lookup to fail")
	}
}

func TestEvaluateOptimalTiesPreferFirstOption(t *testing.T) {
	p := EvaluateOptimal(10, []Gate{fixedGate("f", Forward, Add{N: 10}, NewMultiply(2))}, nil, 0.8)
	if p.Forward[0].BestChoice != 0 {
		t.Errorf("expected tie to resolve to option 0, got %d", p.Forward[0].BestChoice)
	}
}

func TestResolve(t *testing.T) {
	g := fixedGate("g", Forward, Add{N: 5}, NewMultiply(2), Subtract{N: 3})

	res, ok := Resolve(g, 2, 10)
	if !ok {
		t.Fatal("expected valid resolution")
	}
	if res.Result != 7 || res.Best != 20 || res.BestChoice != 1 || res.IsOptimal {
		t.Errorf("unexpected resolution %+v", res)
	}
	if len(res.Alternatives) != 2 || res.Alternatives[0] != 15 || res.Alternatives[1] != 20 {
		t.Errorf("unexpected alternatives %v", res.Alternatives)
	}
	if res.Label != "−3" {
		t.Errorf("unexpected label %q", res.Label)
	}

	res, _ = Resolve(g, 1, 10)
	if !res.IsOptimal {
		t.Error("expected best choice to be optimal")
	}

	for _, bad := range []int{-1, 3, 99} {
		if _, ok := Resolve(g, bad, 10); ok {
			t.Errorf("expected choice %d to be rejected", bad)
		}
	}
}
