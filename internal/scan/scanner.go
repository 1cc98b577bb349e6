package scan

import (
	"context"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/MJE43/math-marauders-go/internal/autopilot"
	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/run"
)

// TargetOp represents comparison operations for scanning
type TargetOp string

const (
	OpEqual        TargetOp = "eq"
	OpGreater      TargetOp = "gt"
	OpGreaterEqual TargetOp = "ge"
	OpLess         TargetOp = "lt"
	OpLessEqual    TargetOp = "le"
	OpBetween      TargetOp = "between"
	OpOutside      TargetOp = "outside"
)

// Metric names the per-seed value a scan compares against the target
type Metric string

const (
	// MetricOptimal is the survivor count of a perfect run (the star denominator)
	MetricOptimal Metric = "optimal"
	// MetricForwardFinal is the perfect army entering the chase
	MetricForwardFinal Metric = "forward_final"
	// MetricSpread is the mean normalized outcome delta across forward gates
	MetricSpread Metric = "spread"
	// MetricScore and MetricStars play the wave with an autopilot strategy
	MetricScore Metric = "score"
	MetricStars Metric = "stars"
)

// Request describes a scan over the seeds "<prefix><n>" for n in [Start, End]
type Request struct {
	Prefix     string   `json:"prefix"`
	Start      uint64   `json:"start"`
	End        uint64   `json:"end"`
	Wave       int      `json:"wave"`
	Metric     Metric   `json:"metric"`
	Strategy   string   `json:"strategy,omitempty"`
	TargetOp   TargetOp `json:"target_op"`
	TargetVal  float64  `json:"target_val"`
	TargetVal2 float64  `json:"target_val2,omitempty"` // for "between" and "outside"
	Tolerance  float64  `json:"tolerance"`
	Limit      int      `json:"limit,omitempty"`
	TimeoutMs  int      `json:"timeout_ms,omitempty"`
}

// Hit represents a single matching seed
type Hit struct {
	Seed   string  `json:"seed"`
	Index  uint64  `json:"index"`
	Metric float64 `json:"metric"`
}

// Summary contains aggregate statistics
type Summary struct {
	TotalEvaluated uint64  `json:"total_evaluated"`
	HitsFound      int     `json:"hits_found"`
	MinMetric      float64 `json:"min_metric"`
	MaxMetric      float64 `json:"max_metric"`
	MeanMetric     float64 `json:"mean_metric"`
	TimedOut       bool    `json:"timed_out,omitempty"`
	LimitReached   bool    `json:"limit_reached,omitempty"`
}

// Result contains the complete scan results
type Result struct {
	Hits    []Hit   `json:"hits"`
	Summary Summary `json:"summary"`
	Echo    Request `json:"echo"`
}

// Job represents a batch of seed indices to process
type Job struct {
	Start uint64
	End   uint64
}

// TargetEvaluator handles target condition evaluation with tolerance
type TargetEvaluator struct {
	op        TargetOp
	val1      float64
	val2      float64 // for "between" and "outside"
	tolerance float64
}

// NewTargetEvaluator creates a new target evaluator
func NewTargetEvaluator(op TargetOp, val1, val2, tolerance float64) *TargetEvaluator {
	return &TargetEvaluator{
		op:        op,
		val1:      val1,
		val2:      val2,
		tolerance: tolerance,
	}
}

// Matches checks if a metric matches the target criteria
func (te *TargetEvaluator) Matches(metric float64) bool {
	switch te.op {
	case OpEqual:
		return abs(metric-te.val1) <= te.tolerance
	case OpGreater:
		return metric > te.val1+te.tolerance
	case OpGreaterEqual:
		return metric >= te.val1-te.tolerance
	case OpLess:
		return metric < te.val1-te.tolerance
	case OpLessEqual:
		return metric <= te.val1+te.tolerance
	case OpBetween:
		return metric >= te.val1-te.tolerance && metric <= te.val2+te.tolerance
	case OpOutside:
		return metric < te.val1-te.tolerance || metric > te.val2+te.tolerance
	default:
		return false
	}
}

// Scanner evaluates seed ranges in parallel. Each worker owns its generator and engine.
type Scanner struct {
	tuning      config.Tuning
	workerCount int
	batchSize   uint64
}

// NewScanner creates a scanner with one worker per CPU
func NewScanner(t config.Tuning) *Scanner {
	return &Scanner{
		tuning:      t,
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   64,
	}
}

// Validate checks a request before scanning
func Validate(req Request) error {
	if req.End < req.Start {
		return ErrInvalidRange
	}
	if req.End-req.Start >= MaxRange {
		return ErrRangeTooLarge
	}
	if req.Wave < 1 {
		return ErrInvalidWave
	}
	switch req.Metric {
	case MetricOptimal, MetricForwardFinal, MetricSpread:
	case MetricScore, MetricStars:
		if _, err := autopilot.Lookup(req.Strategy); err != nil {
			return err
		}
	default:
		return ErrUnknownMetric
	}
	switch req.TargetOp {
	case OpEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpBetween, OpOutside:
	default:
		return ErrUnknownOp
	}
	return nil
}

// Scan performs a parallel scan across the seed range
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	tolerance := req.Tolerance
	if tolerance == 0 && req.Metric == MetricSpread {
		tolerance = 1e-9
	}
	evaluator := NewTargetEvaluator(req.TargetOp, req.TargetVal, req.TargetVal2, tolerance)

	jobs := make(chan Job, s.workerCount*2)
	hits := make(chan Hit, 1000)

	// Workers stop early once the lowest Limit hits are settled; the collector keeps
	// watching the caller's context so an early stop is not reported as a timeout.
	workCtx, stop := context.WithCancel(ctx)
	defer stop()
	settled := newFrontier(req.Start, req.Limit, stop)

	var totalEvaluated uint64
	var wg sync.WaitGroup
	for i := 0; i < s.workerCount; i++ {
		w := &worker{
			req:       req,
			jobs:      jobs,
			hits:      hits,
			evaluator: evaluator,
			metric:    s.metricFunc(req),
			frontier:  settled,
			evaluated: &totalEvaluated,
		}
		wg.Add(1)
		go w.run(workCtx, &wg)
	}
	go func() {
		wg.Wait()
		close(hits)
	}()

	go s.generateJobs(workCtx, jobs, req.Start, req.End)

	collector := &collector{hits: hits, limit: req.Limit, evaluated: &totalEvaluated}
	result := collector.collect(ctx)
	result.Summary.LimitReached = settled.reached()
	result.Echo = req
	return result, nil
}

// metricFunc builds a per-worker evaluation function; the returned closure is not
// shared between goroutines
func (s *Scanner) metricFunc(req Request) func(seed string) float64 {
	switch req.Metric {
	case MetricScore, MetricStars:
		e := run.New(s.tuning)
		strategy, _ := autopilot.Lookup(req.Strategy)
		return func(seed string) float64 {
			res, err := autopilot.PlayWave(context.Background(), e, strategy, seed, req.Wave, 0)
			if err != nil {
				return 0
			}
			if req.Metric == MetricStars {
				return float64(res.Score.Stars)
			}
			return float64(res.Score.Total)
		}
	default:
		gen := gates.NewGenerator(s.tuning)
		return func(seed string) float64 {
			w := gen.Generate(gen.Config(engine.NormalizeSeed(seed), req.Wave, s.tuning.StartingArmy))
			switch req.Metric {
			case MetricForwardFinal:
				return float64(w.Optimal.ForwardFinal)
			case MetricSpread:
				return lo.SumBy(w.Forward, func(g gates.Gate) float64 { return g.Delta }) / float64(max(1, len(w.Forward)))
			default:
				return float64(w.Optimal.Denominator())
			}
		}
	}
}

// SeedFor formats the seed for index n
func SeedFor(prefix string, n uint64) string {
	return prefix + strconv.FormatUint(n, 10)
}

type worker struct {
	req       Request
	jobs      <-chan Job
	hits      chan<- Hit
	evaluator *TargetEvaluator
	metric    func(seed string) float64
	frontier  *frontier
	evaluated *uint64 // atomic counter
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (w *worker) process(ctx context.Context, job Job) {
	for n := job.Start; n <= job.End; n++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		seed := SeedFor(w.req.Prefix, n)
		metric := w.metric(seed)
		atomic.AddUint64(w.evaluated, 1)

		if w.evaluator.Matches(metric) {
			select {
			case w.hits <- Hit{Seed: seed, Index: n, Metric: metric}:
				w.frontier.found(n)
			case <-ctx.Done():
				return
			}
		}
		if n == job.End {
			w.frontier.complete(job)
			return
		}
	}
}

// frontier tracks the index below which every seed has been evaluated. With a limit,
// once that many hits lie below the frontier no later seed can displace them, and the
// scan is stopped.
type frontier struct {
	mu      sync.Mutex
	next    uint64
	done    map[uint64]uint64 // completed batches ahead of next, start -> end
	limit   int
	below   int
	ahead   []uint64
	stop    context.CancelFunc
	stopped bool
}

func newFrontier(start uint64, limit int, stop context.CancelFunc) *frontier {
	return &frontier{next: start, done: make(map[uint64]uint64), limit: limit, stop: stop}
}

func (f *frontier) found(n uint64) {
	if f.limit <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < f.next {
		f.below++
	} else {
		f.ahead = append(f.ahead, n)
	}
	f.check()
}

func (f *frontier) complete(job Job) {
	if f.limit <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[job.Start] = job.End
	for {
		end, ok := f.done[f.next]
		if !ok {
			break
		}
		delete(f.done, f.next)
		f.next = end + 1
	}
	f.ahead = lo.Filter(f.ahead, func(n uint64, _ int) bool {
		if n < f.next {
			f.below++
			return false
		}
		return true
	})
	f.check()
}

func (f *frontier) check() {
	if !f.stopped && f.below >= f.limit {
		f.stopped = true
		f.stop()
	}
}

func (f *frontier) reached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (s *Scanner) generateJobs(ctx context.Context, jobs chan<- Job, start, end uint64) {
	defer close(jobs)
	for current := start; current <= end; {
		batchEnd := current + s.batchSize - 1
		if batchEnd > end || batchEnd < current {
			batchEnd = end
		}
		select {
		case jobs <- Job{Start: current, End: batchEnd}:
		case <-ctx.Done():
			return
		}
		if batchEnd == end {
			return
		}
		current = batchEnd + 1
	}
}

type collector struct {
	hits      <-chan Hit
	limit     int
	evaluated *uint64
}

// collect drains hits until the workers finish or ctx ends. Hits are returned in seed
// index order; with a limit, the lowest-index hits found are kept.
func (c *collector) collect(ctx context.Context) *Result {
	var all []Hit

loop:
	for {
		select {
		case hit, ok := <-c.hits:
			if !ok {
				break loop
			}
			all = append(all, hit)
		case <-ctx.Done():
			break loop
		}
	}
	timedOut := ctx.Err() != nil

	sort.Slice(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	if c.limit > 0 && len(all) > c.limit {
		all = all[:c.limit]
	}
	if all == nil {
		all = []Hit{}
	}
	return &Result{
		Hits:    all,
		Summary: summarize(all, atomic.LoadUint64(c.evaluated), timedOut),
	}
}

func summarize(hits []Hit, totalEvaluated uint64, timedOut bool) Summary {
	summary := Summary{
		TotalEvaluated: totalEvaluated,
		HitsFound:      len(hits),
		TimedOut:       timedOut,
	}
	if len(hits) == 0 {
		return summary
	}
	metrics := lo.Map(hits, func(h Hit, _ int) float64 { return h.Metric })
	summary.MinMetric = lo.Min(metrics)
	summary.MaxMetric = lo.Max(metrics)
	summary.MeanMetric = lo.Mean(metrics)
	return summary
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
