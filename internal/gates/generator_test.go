package gates

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

func labels(g Gate) []string {
	out := make([]string, len(g.Options))
	for i, op := range g.Options {
		out[i] = op.Label()
	}
	return out
}

func TestGeneratorDeltaThresholdPerTier(t *testing.T) {
	tuning := config.Default()
	gen := NewGenerator(tuning)

	for _, wave := range []int{3, 8, 14} {
		tier := tuning.TierFor(wave)
		t.Run(tier.Name, func(t *testing.T) {
			src := engine.NewSource(engine.NormalizeSeed("delta-" + tier.Name))
			armies := engine.NewSource(engine.NormalizeSeed("armies-" + tier.Name))

			const samples = 1000
			met := 0
			for i := 0; i < samples; i++ {
				army := armies.IntRange(10, 500)
				g := gen.Gate(fmt.Sprintf("g-%d", i), wave, i, Forward, army, src)
				if g.Delta >= tier.DeltaThreshold {
					met++
				}
				if g.Separated != (g.Delta >= tier.DeltaThreshold) {
					t.Fatalf("Separated flag disagrees with delta %.3f", g.Delta)
				}
			}
			if rate := float64(met) / samples; rate < 0.95 {
				t.Errorf("expected >= 95%% of gates to meet %.2f, got %.1f%%", tier.DeltaThreshold, rate*100)
			}
		})
	}
}

func TestGeneratorRejectsDuplicateLabels(t *testing.T) {
	gen := NewGenerator(config.Default())
	src := engine.NewSource(9)
	for i := 0; i < 500; i++ {
		g := gen.Gate("g", 1+i%15, i, Forward, 1+i%200, src)
		seen := map[string]bool{}
		for _, l := range labels(g) {
			if seen[l] {
				t.Fatalf("gate %d has duplicate label %q", i, l)
			}
			seen[l] = true
		}
	}
}

func TestGeneratorCompositeMandatoryFromMidTier(t *testing.T) {
	gen := NewGenerator(config.Default())
	src := engine.NewSource(3)
	for wave := 1; wave <= 15; wave++ {
		for i := 0; i < 40; i++ {
			g := gen.Gate("g", wave, i, Forward, 50+i, src)
			if wave >= 6 && !hasComposite(g.Options) {
				t.Fatalf("wave %d gate %d has no composite option", wave, i)
			}
			if wave <= 5 && hasComposite(g.Options) {
				t.Fatalf("wave %d gate %d offers a composite before it unlocks", wave, i)
			}
		}
	}
}

func TestGeneratorOptionsPerGate(t *testing.T) {
	tuning := config.Default()
	tuning.Gates.OptionsPerGate = 3
	gen := NewGenerator(tuning)
	g := gen.Gate("g", 4, 0, Forward, 80, engine.NewSource(1))
	if len(g.Options) != 3 {
		t.Errorf("expected 3 options, got %d", len(g.Options))
	}
}

func TestGenerateWaveLayout(t *testing.T) {
	gen := NewGenerator(config.Default())
	cfg := gen.Config(engine.NormalizeSeed("alpha"), 1, 60)
	w := gen.Generate(cfg)

	if len(w.Forward) != 5 {
		t.Errorf("expected 5 forward gates at wave 1, got %d", len(w.Forward))
	}
	if len(w.Retreat) != 2 {
		t.Errorf("expected 2 retreat gates, got %d", len(w.Retreat))
	}
	if cfg.Tier != "early" {
		t.Errorf("expected early tier, got %s", cfg.Tier)
	}

	ids := map[string]bool{}
	for _, g := range append(append([]Gate{}, w.Forward...), w.Retreat...) {
		if ids[g.ID] {
			t.Errorf("duplicate gate id %s", g.ID)
		}
		ids[g.ID] = true
		if _, ok := w.Gate(g.ID); !ok {
			t.Errorf("Wave.Gate could not find %s", g.ID)
		}
	}
	if w.Forward[0].ID != "wave-1-fwd-0" || w.Retreat[1].ID != "wave-1-ret-1" {
		t.Errorf("unexpected gate ids %s, %s", w.Forward[0].ID, w.Retreat[1].ID)
	}
	if w.Forward[0].Army != 60 {
		t.Errorf("expected first gate balanced against 60, got %d", w.Forward[0].Army)
	}
}

func TestGenerateWaveDeterminism(t *testing.T) {
	tuning := config.Default()
	a := NewGenerator(tuning)
	b := NewGenerator(tuning)

	for _, wave := range []int{1, 6, 12} {
		seed := engine.NormalizeSeed("determinism")
		wa := a.Generate(a.Config(seed, wave, 60))
		wb := b.Generate(b.Config(seed, wave, 60))

		for i := range wa.Forward {
			if !reflect.DeepEqual(labels(wa.Forward[i]), labels(wb.Forward[i])) {
				t.Fatalf("wave %d gate %d differs: %v vs %v", wave, i, labels(wa.Forward[i]), labels(wb.Forward[i]))
			}
		}
		if !reflect.DeepEqual(wa.Optimal, wb.Optimal) {
			t.Fatalf("wave %d optimal paths differ", wave)
		}
	}

	other := a.Generate(a.Config(engine.NormalizeSeed("other"), 1, 60))
	same := a.Generate(a.Config(engine.NormalizeSeed("determinism"), 1, 60))
	identical := true
	for i := range other.Forward {
		if !reflect.DeepEqual(labels(other.Forward[i]), labels(same.Forward[i])) {
			identical = false
		}
	}
	if identical {
		t.Error("expected different seeds to produce different gates")
	}
}

func TestGenerateWaveOptimalMatchesReferenceArmies(t *testing.T) {
	gen := NewGenerator(config.Default())
	w := gen.Generate(gen.Config(engine.NormalizeSeed("beta"), 4, 60))

	for i, cp := range w.Optimal.Forward {
		if cp.Before != w.Forward[i].Army {
			t.Errorf("gate %d balanced against %d but optimal path arrives with %d", i, w.Forward[i].Army, cp.Before)
		}
	}
	for i, cp := range w.Optimal.Retreat {
		if cp.Before != w.Retreat[i].Army {
			t.Errorf("retreat gate %d balanced against %d but optimal path arrives with %d", i, w.Retreat[i].Army, cp.Before)
		}
	}
}

func TestWaveJSON(t *testing.T) {
	gen := NewGenerator(config.Default())
	w := gen.Generate(gen.Config(7, 6, 60))

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded WaveView
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded.Forward) != len(w.Forward) {
		t.Errorf("expected %d forward gates, got %d", len(w.Forward), len(decoded.Forward))
	}
	if decoded.Forward[0].Options[0].Label != w.Forward[0].Options[0].Label() {
		t.Error("option label lost in transport")
	}
}

func BenchmarkGenerateWave(b *testing.B) {
	gen := NewGenerator(config.Default())
	for i := 0; i < b.N; i++ {
		gen.Generate(gen.Config(uint32(i+1), 12, 60))
	}
}
