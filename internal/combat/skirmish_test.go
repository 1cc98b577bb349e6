package combat

import (
	"math"
	"testing"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

func TestSubtractSkirmish(t *testing.T) {
	sim := NewSkirmishSimulator(config.Default().Skirmish)

	tests := []struct {
		name          string
		player, enemy int
		wantPlayer    int
		wantEnemy     int
	}{
		{"player wins", 20, 15, 5, 0},
		{"enemy wins", 15, 20, 0, 5},
		{"mutual wipe", 12, 12, 0, 0},
		{"no enemy", 30, 0, 30, 0},
		{"no player", 0, 8, 0, 8},
		{"negative inputs", -5, -3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sim.Resolve(tt.player, tt.enemy, nil)
			if res.PlayerRemaining != tt.wantPlayer {
				t.Errorf("expected %d survivors, got %d", tt.wantPlayer, res.PlayerRemaining)
			}
			if res.EnemyRemaining != tt.wantEnemy {
				t.Errorf("expected %d enemies remaining, got %d", tt.wantEnemy, res.EnemyRemaining)
			}
			if res.Mode != config.SkirmishSubtract {
				t.Errorf("expected subtract mode, got %s", res.Mode)
			}
		})
	}

	res := sim.Resolve(20, 15, nil)
	if res.Defeated() != 15 || res.Casualties() != 15 {
		t.Errorf("expected 15 defeated and 15 casualties, got %d and %d", res.Defeated(), res.Casualties())
	}
	if len(res.Volleys) != 1 {
		t.Errorf("expected a single exchange, got %d", len(res.Volleys))
	}
}

func volleyTuning() config.SkirmishTuning {
	t := config.Default().Skirmish
	t.Mode = config.SkirmishVolley
	return t
}

func TestVolleySkirmishBounds(t *testing.T) {
	sim := NewSkirmishSimulator(volleyTuning())
	src := engine.NewSource(99)
	sizes := engine.NewSource(100)

	for i := 0; i < 2000; i++ {
		p := sizes.IntRange(0, 9999)
		e := sizes.IntRange(0, 9999)
		res := sim.Resolve(p, e, src)

		if res.PlayerRemaining < 0 || res.PlayerRemaining > p {
			t.Fatalf("player survivors %d outside [0, %d]", res.PlayerRemaining, p)
		}
		if res.EnemyRemaining < 0 || res.EnemyRemaining > e {
			t.Fatalf("enemy survivors %d outside [0, %d]", res.EnemyRemaining, e)
		}
		if len(res.Volleys) > 24 {
			t.Fatalf("volley cap exceeded: %d", len(res.Volleys))
		}
		prevP, prevE := p, e
		for _, v := range res.Volleys {
			if v.PlayerRemaining > prevP || v.EnemyRemaining > prevE {
				t.Fatal("counts increased during a skirmish")
			}
			prevP, prevE = v.PlayerRemaining, v.EnemyRemaining
		}
	}
}

func TestVolleySkirmishRespectsCap(t *testing.T) {
	tuning := volleyTuning()
	tuning.VolleyCap = 3
	tuning.BaseDamage = 0.01
	sim := NewSkirmishSimulator(tuning)

	res := sim.Resolve(5000, 5000, engine.NewSource(1))
	if len(res.Volleys) != 3 {
		t.Errorf("expected exactly 3 volleys, got %d", len(res.Volleys))
	}
	if res.PlayerRemaining == 0 || res.EnemyRemaining == 0 {
		t.Error("expected both sides to survive a capped low-damage skirmish")
	}
	if math.Abs(res.Duration-3*tuning.VolleySeconds) > 1e-9 {
		t.Errorf("expected duration %v, got %v", 3*tuning.VolleySeconds, res.Duration)
	}
}

func TestVolleySkirmishDeterminism(t *testing.T) {
	sim := NewSkirmishSimulator(volleyTuning())
	a := sim.Resolve(120, 90, engine.NewSource(7))
	b := sim.Resolve(120, 90, engine.NewSource(7))
	if a.PlayerRemaining != b.PlayerRemaining || a.EnemyRemaining != b.EnemyRemaining || len(a.Volleys) != len(b.Volleys) {
		t.Errorf("same seed produced different skirmishes: %+v vs %+v", a, b)
	}
}

func TestVolleySkirmishWithoutSource(t *testing.T) {
	sim := NewSkirmishSimulator(volleyTuning())
	res := sim.Resolve(10, 10, nil)
	if res.PlayerRemaining < 0 || res.EnemyRemaining < 0 {
		t.Fatal("negative survivors")
	}
	if len(res.Volleys) == 0 {
		t.Error("expected at least one volley")
	}
}
