package scoring

import (
	"testing"

	"github.com/MJE43/math-marauders-go/internal/config"
)

var defaultThresholds = []float64{0.4, 0.6, 0.75, 0.9}

func TestCalculateStars(t *testing.T) {
	tests := []struct {
		name      string
		survivors int
		optimal   int
		want      int
	}{
		{"no survivors", 0, 100, 0},
		{"negative survivors", -3, 100, 0},
		{"zero optimal", 12, 0, 5},
		{"negative optimal", 12, -4, 5},
		{"ratio 0.85", 85, 100, 4},
		{"ratio 0.4 is not above 0.4", 40, 100, 1},
		{"ratio 0.41", 41, 100, 2},
		{"ratio 0.6", 61, 100, 3},
		{"ratio 0.95", 95, 100, 5},
		{"ratio above one", 150, 100, 5},
		{"tiny ratio", 1, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateStars(tt.survivors, tt.optimal, defaultThresholds); got != tt.want {
				t.Errorf("CalculateStars(%d, %d) = %d, want %d", tt.survivors, tt.optimal, got, tt.want)
			}
		})
	}
}

func TestCalculateStarsMonotonic(t *testing.T) {
	prev := 0
	for survivors := 0; survivors <= 300; survivors++ {
		stars := CalculateStars(survivors, 200, defaultThresholds)
		if stars < prev {
			t.Fatalf("stars dropped from %d to %d at %d survivors", prev, stars, survivors)
		}
		prev = stars
	}
}

func TestCalculateStarsNoThresholds(t *testing.T) {
	if got := CalculateStars(5, 10, nil); got != 1 {
		t.Errorf("expected 1 star without thresholds, got %d", got)
	}
}

func TestCalculate(t *testing.T) {
	calc := NewCalculator(config.Default().Scoring)
	res := calc.Calculate(Input{
		InitialArmy:     60,
		Remaining:       40,
		Optimal:         50,
		Elapsed:         100.4,
		GatesTaken:      7,
		OptimalChoices:  5,
		Volleys:         3,
		EnemiesDefeated: 30,
		Escaped:         true,
	})

	want := Breakdown{
		GateBonus:        420,
		OptimalBonus:     200,
		SurvivalBonus:    600,
		SpeedBonus:       160,
		VolleyBonus:      40,
		SkirmishBonus:    60,
		AttritionPenalty: 40,
	}
	if res.Breakdown != want {
		t.Errorf("unexpected breakdown %+v", res.Breakdown)
	}
	if res.Total != 420+200+600+160+40+60-40 {
		t.Errorf("unexpected total %d", res.Total)
	}
	if res.Stars != 4 {
		t.Errorf("expected 4 stars at ratio 0.8, got %d", res.Stars)
	}
	if res.MaxStars != 5 {
		t.Errorf("expected max stars 5, got %d", res.MaxStars)
	}
}

func TestCalculateFailedRun(t *testing.T) {
	calc := NewCalculator(config.Default().Scoring)
	res := calc.Calculate(Input{
		InitialArmy: 60,
		Remaining:   20,
		Optimal:     25,
		Elapsed:     300,
		GatesTaken:  1,
		Volleys:     40,
	})
	if res.Breakdown.ChasePenalty != 120 {
		t.Errorf("expected chase penalty, got %d", res.Breakdown.ChasePenalty)
	}
	if res.Stars != 0 {
		t.Errorf("expected no stars for a failed run, got %d", res.Stars)
	}
	if res.Total != 0 {
		t.Errorf("expected total clamped to 0, got %d", res.Total)
	}
}

func TestCalculateNeverNegative(t *testing.T) {
	calc := NewCalculator(config.Default().Scoring)
	for initial := 0; initial <= 500; initial += 25 {
		res := calc.Calculate(Input{InitialArmy: initial, Remaining: -10, Elapsed: 1e6, Volleys: 999})
		if res.Total < 0 {
			t.Fatalf("negative total %d", res.Total)
		}
	}
}
