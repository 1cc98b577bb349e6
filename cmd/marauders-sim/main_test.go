package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/MJE43/math-marauders-go/internal/run"
)

func TestSimulateIsDeterministicAcrossWorkerCounts(t *testing.T) {
	base := options{prefix: "sim-", n: 12, wave: 1, strategy: "greedy", dt: 0.1}

	one := base
	one.workers = 1
	four := base
	four.workers = 4

	a, err := simulate(context.Background(), one)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	b, err := simulate(context.Background(), four)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if !reflect.DeepEqual(a.Outcomes, b.Outcomes) {
		t.Error("outcomes depend on the worker count")
	}
	if a.Completed+a.Failed != 12 {
		t.Errorf("expected 12 runs, got %d+%d", a.Completed, a.Failed)
	}
	for i, o := range a.Outcomes {
		if !o.Phase.Terminal() {
			t.Errorf("run %d ended in %s", i, o.Phase)
		}
	}
}

func TestSimulateScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first.js")
	if err := os.WriteFile(path, []byte(`function choose(gate) { return 0 }`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := simulate(context.Background(), options{prefix: "x", n: 3, wave: 2, scriptPath: path, workers: 2, dt: 0.1})
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if s.Strategy != "script" || s.Runs != 3 {
		t.Errorf("unexpected summary %+v", s)
	}

	if _, err := simulate(context.Background(), options{prefix: "x", n: 1, wave: 1, strategy: "psychic", workers: 1}); err == nil {
		t.Error("expected unknown strategy error")
	}
}

func TestSimulateStartingArmy(t *testing.T) {
	base := options{prefix: "army-", n: 4, wave: 1, strategy: "first", workers: 2, dt: 0.1}
	big := base
	big.army = 400

	a, err := simulate(context.Background(), base)
	if err != nil {
		t.Fatal(err)
	}
	b, err := simulate(context.Background(), big)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a.Outcomes, b.Outcomes) {
		t.Error("expected -army to change the simulated runs")
	}
}

func TestSummarize(t *testing.T) {
	s := summarize([]outcome{
		{Seed: "a", Phase: run.PhaseComplete, Score: 900, Stars: 4, Survivors: 80, Optimal: 100},
		{Seed: "b", Phase: run.PhaseFailed, Score: 100, Stars: 0, Survivors: 0, Optimal: 100},
	})
	if s.Completed != 1 || s.Failed != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.MeanScore != 500 || s.MeanRatio != 0.4 {
		t.Errorf("unexpected means score=%v ratio=%v", s.MeanScore, s.MeanRatio)
	}
	if s.Best.Seed != "a" || s.Worst.Seed != "b" {
		t.Errorf("unexpected best/worst %s/%s", s.Best.Seed, s.Worst.Seed)
	}

	var buf bytes.Buffer
	s.Wave, s.Strategy = 1, "greedy"
	printSummary(&buf, s)
	if !strings.Contains(buf.String(), "=== Wave 1 / greedy ===") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
