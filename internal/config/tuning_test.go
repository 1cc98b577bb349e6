package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
}

func TestTierFor(t *testing.T) {
	tuning := Default()
	tests := []struct {
		wave int
		want string
	}{
		{1, "early"},
		{5, "early"},
		{6, "mid"},
		{10, "mid"},
		{11, "late"},
		{40, "late"},
	}
	for _, tt := range tests {
		if got := tuning.TierFor(tt.wave).Name; got != tt.want {
			t.Errorf("wave %d: expected tier %s, got %s", tt.wave, tt.want, got)
		}
	}
}

func TestGateCount(t *testing.T) {
	tuning := Default()
	if got := tuning.GateCount(1); got != 5 {
		t.Errorf("expected 5 gates at wave 1, got %d", got)
	}
	if got := tuning.GateCount(7); got != 11 {
		t.Errorf("expected 11 gates at wave 7, got %d", got)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	data := []byte(`
starting_army: 80
skirmish:
  mode: volley
scoring:
  star_thresholds: [0.5, 0.8]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tuning, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tuning.StartingArmy != 80 {
		t.Errorf("expected starting army 80, got %d", tuning.StartingArmy)
	}
	if tuning.Skirmish.Mode != SkirmishVolley {
		t.Errorf("expected volley mode, got %s", tuning.Skirmish.Mode)
	}
	if tuning.Skirmish.EnemyRatio != 0.8 {
		t.Errorf("expected default enemy ratio to survive overlay, got %v", tuning.Skirmish.EnemyRatio)
	}
	if len(tuning.Scoring.StarThresholds) != 2 {
		t.Errorf("expected thresholds replaced, got %v", tuning.Scoring.StarThresholds)
	}
	if tuning.Scoring.GateBonus != 60 {
		t.Errorf("expected default gate bonus, got %d", tuning.Scoring.GateBonus)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	tuning, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tuning.StartingArmy != Default().StartingArmy {
		t.Error("expected defaults for empty path")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("skirmish:\n  mode: telepathy\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected invalid skirmish mode to be rejected")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected missing file error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tuning)
	}{
		{"no tiers", func(tu *Tuning) { tu.Tiers = nil }},
		{"one option", func(tu *Tuning) { tu.Gates.OptionsPerGate = 1 }},
		{"unbounded middle tier", func(tu *Tuning) { tu.Tiers[0].MaxWave = 0 }},
		{"bad composite steps", func(tu *Tuning) { tu.Tiers[1].CompositeSteps = 4 }},
		{"checkpoint out of range", func(tu *Tuning) { tu.Chase.Checkpoints = []float64{0.5, 1.2} }},
		{"unsorted thresholds", func(tu *Tuning) { tu.Scoring.StarThresholds = []float64{0.9, 0.4} }},
		{"zero army", func(tu *Tuning) { tu.StartingArmy = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuning := Default()
			tt.mutate(&tuning)
			if err := tuning.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
