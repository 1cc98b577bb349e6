package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/math-marauders-go/internal/autopilot"
	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/run"
)

type options struct {
	prefix     string
	n          int
	wave       int
	strategy   string
	scriptPath string
	tuningPath string
	workers    int
	army       int
	dt         float64
	asJSON     bool
}

// outcome is one simulated seed
type outcome struct {
	Seed      string    `json:"seed"`
	Phase     run.Phase `json:"phase"`
	Score     int       `json:"score"`
	Stars     int       `json:"stars"`
	Survivors int       `json:"survivors"`
	Optimal   int       `json:"optimal"`
	Elapsed   float64   `json:"elapsed"`
}

// summary aggregates a batch
type summary struct {
	Runs      int         `json:"runs"`
	Wave      int         `json:"wave"`
	Strategy  string      `json:"strategy"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	MeanScore float64     `json:"mean_score"`
	MeanStars float64     `json:"mean_stars"`
	MeanRatio float64     `json:"mean_ratio"`
	StarCount map[int]int `json:"star_histogram"`
	Best      outcome     `json:"best"`
	Worst     outcome     `json:"worst"`
	Duration  string      `json:"duration"`
	Outcomes  []outcome   `json:"outcomes,omitempty"`
}

func main() {
	var o options
	var verbose bool
	flag.StringVar(&o.prefix, "prefix", "seed-", "seed prefix; seeds are <prefix>0 .. <prefix>n-1")
	flag.IntVar(&o.n, "n", 100, "number of seeds to simulate")
	flag.IntVar(&o.wave, "wave", 1, "wave number")
	flag.StringVar(&o.strategy, "strategy", "greedy", "built-in strategy: "+strings.Join(autopilot.Names(), ", "))
	flag.StringVar(&o.scriptPath, "script", "", "JavaScript strategy file (overrides -strategy)")
	flag.StringVar(&o.tuningPath, "tuning", "", "YAML tuning file")
	flag.IntVar(&o.workers, "workers", runtime.GOMAXPROCS(0), "parallel workers")
	flag.IntVar(&o.army, "army", 0, "starting army (0: tuning value)")
	flag.Float64Var(&o.dt, "dt", autopilot.DefaultTick, "chase step in seconds")
	flag.BoolVar(&o.asJSON, "json", false, "print JSON instead of a text summary")
	flag.BoolVar(&verbose, "v", false, "include every run in JSON output")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "sim"})
	if o.n <= 0 || o.wave < 1 || o.workers < 1 || o.army < 0 {
		logger.Fatal("invalid flags: -n, -wave and -workers must be positive, -army >= 0")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := simulate(ctx, o)
	if err != nil {
		logger.Fatal("simulation failed", "err", err)
	}
	if !verbose {
		s.Outcomes = nil
	}
	if o.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			logger.Fatal("encode", "err", err)
		}
		return
	}
	printSummary(os.Stdout, s)
}

// simulate plays n seeds across a worker pool. Each worker owns its engine and, for
// scripted play, its own JavaScript runtime.
func simulate(ctx context.Context, o options) (summary, error) {
	tuning, err := config.Load(o.tuningPath)
	if err != nil {
		return summary{}, err
	}
	var source string
	name := o.strategy
	if o.scriptPath != "" {
		b, err := os.ReadFile(o.scriptPath)
		if err != nil {
			return summary{}, fmt.Errorf("read script: %w", err)
		}
		source, name = string(b), "script"
	} else if _, err := autopilot.Lookup(o.strategy); err != nil {
		return summary{}, err
	}

	var runOpts []run.Option
	if o.army > 0 {
		runOpts = append(runOpts, run.WithStartingArmy(o.army))
	}

	start := time.Now()
	jobs := make(chan int)
	results := make([]outcome, o.n)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < o.n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < o.workers; w++ {
		g.Go(func() error {
			strategy, err := newStrategy(o.strategy, source)
			if err != nil {
				return err
			}
			e := run.New(tuning, runOpts...)
			for i := range jobs {
				seed := fmt.Sprintf("%s%d", o.prefix, i)
				res, err := autopilot.PlayWave(ctx, e, strategy, seed, o.wave, o.dt)
				if err != nil {
					return fmt.Errorf("seed %s: %w", seed, err)
				}
				results[i] = outcome{
					Seed:      seed,
					Phase:     res.State.Phase,
					Score:     res.Score.Total,
					Stars:     res.Score.Stars,
					Survivors: res.Score.Survivors,
					Optimal:   res.Score.Optimal,
					Elapsed:   res.State.Elapsed,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary{}, err
	}

	s := summarize(results)
	s.Wave = o.wave
	s.Strategy = name
	s.Duration = time.Since(start).Round(time.Millisecond).String()
	return s, nil
}

func newStrategy(name, source string) (autopilot.Strategy, error) {
	if source != "" {
		return autopilot.NewScript(source)
	}
	return autopilot.Lookup(name)
}

func summarize(results []outcome) summary {
	s := summary{Runs: len(results), StarCount: map[int]int{}, Outcomes: results}
	if len(results) == 0 {
		return s
	}
	for _, r := range results {
		if r.Phase == run.PhaseComplete {
			s.Completed++
		} else {
			s.Failed++
		}
		s.StarCount[r.Stars]++
	}
	s.MeanScore = lo.MeanBy(results, func(r outcome) float64 { return float64(r.Score) })
	s.MeanStars = lo.MeanBy(results, func(r outcome) float64 { return float64(r.Stars) })
	s.MeanRatio = lo.MeanBy(results, func(r outcome) float64 {
		if r.Optimal <= 0 {
			return 0
		}
		return float64(r.Survivors) / float64(r.Optimal)
	})
	s.Best = lo.MaxBy(results, func(a, b outcome) bool { return a.Score > b.Score })
	s.Worst = lo.MinBy(results, func(a, b outcome) bool { return a.Score < b.Score })
	return s
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "=== Wave %d / %s ===\n", s.Wave, s.Strategy)
	fmt.Fprintf(w, "runs=%s completed=%s failed=%s in %s\n",
		humanize.Comma(int64(s.Runs)), humanize.Comma(int64(s.Completed)), humanize.Comma(int64(s.Failed)), s.Duration)
	fmt.Fprintf(w, "mean score %s, mean stars %s, mean survivor ratio %s\n",
		humanize.FormatFloat("#,###.#", s.MeanScore), humanize.Ftoa(round2(s.MeanStars)), humanize.Ftoa(round2(s.MeanRatio)))
	fmt.Fprintf(w, "best  %-16s score=%s stars=%d\n", s.Best.Seed, humanize.Comma(int64(s.Best.Score)), s.Best.Stars)
	fmt.Fprintf(w, "worst %-16s score=%s stars=%d\n", s.Worst.Seed, humanize.Comma(int64(s.Worst.Score)), s.Worst.Stars)

	stars := lo.Keys(s.StarCount)
	sort.Ints(stars)
	fmt.Fprintln(w, "stars:")
	for _, k := range stars {
		pct := 100 * float64(s.StarCount[k]) / float64(max(1, s.Runs))
		fmt.Fprintf(w, "  %d  %6s  %5.1f%%\n", k, humanize.Comma(int64(s.StarCount[k])), pct)
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
