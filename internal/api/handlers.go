package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/MJE43/math-marauders-go/internal/autopilot"
	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/run"
	"github.com/MJE43/math-marauders-go/internal/scan"
	"github.com/MJE43/math-marauders-go/internal/store"
)

// POST /api/v1/runs
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req WaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateWaveRequest(&req); err != nil {
		s.validationFailed(w, r, err)
		return
	}

	sess := s.sessions.create(s.tuning, s.engineOptions()...)
	sess.lock(s.sessions.now())
	defer sess.unlock()

	st := req.start(sess.engine)
	s.logger.Info("run started", "id", sess.id, "seed", hashSeed(req.Seed), "wave", req.Wave)
	s.writeJSON(w, http.StatusCreated, RunResponse{
		ID:            sess.id.String(),
		State:         st,
		Persisted:     s.persist(r.Context(), sess),
		EngineVersion: EngineVersion,
	})
}

// GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	defer sess.unlock()

	s.writeJSON(w, http.StatusOK, RunResponse{
		ID:            sess.id.String(),
		State:         sess.engine.State(),
		Persisted:     sess.persisted,
		EngineVersion: EngineVersion,
	})
}

// POST /api/v1/runs/{id}/gates
func (s *Server) handleResolveGate(w http.ResponseWriter, r *http.Request) {
	var req GateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateGateRequest(&req); err != nil {
		s.validationFailed(w, r, err)
		return
	}
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	defer sess.unlock()

	res := sess.engine.ResolveGate(req.GateID, *req.Choice)
	s.writeJSON(w, http.StatusOK, GateResponse{
		ID:            sess.id.String(),
		Resolution:    res,
		Persisted:     s.persist(r.Context(), sess),
		EngineVersion: EngineVersion,
	})
}

// POST /api/v1/runs/{id}/chase
func (s *Server) handleAdvanceChase(w http.ResponseWriter, r *http.Request) {
	var req ChaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateChaseRequest(&req); err != nil {
		s.validationFailed(w, r, err)
		return
	}
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	defer sess.unlock()

	tick := sess.engine.AdvanceChase(req.Dt, req.Steering)
	s.writeJSON(w, http.StatusOK, ChaseResponse{
		ID:            sess.id.String(),
		Tick:          tick,
		Persisted:     s.persist(r.Context(), sess),
		EngineVersion: EngineVersion,
	})
}

// GET /api/v1/runs/{id}/score
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	defer sess.unlock()

	score := sess.engine.Score()
	if !score.Final {
		s.errorHandler.Write(w, r, http.StatusConflict, NewError(ErrTypeNotFinished, "run has not finished").
			WithContext("phase", score.Phase).
			WithContext("provisional_total", score.Total).
			Build())
		return
	}
	s.writeJSON(w, http.StatusOK, ScoreResponse{ID: sess.id.String(), Score: score, EngineVersion: EngineVersion})
}

// POST /api/v1/runs/{id}/restart
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	defer sess.unlock()

	st := sess.engine.Restart()
	sess.persisted = false
	s.writeJSON(w, http.StatusOK, RunResponse{
		ID:            sess.id.String(),
		State:         st,
		Persisted:     s.persist(r.Context(), sess),
		EngineVersion: EngineVersion,
	})
}

// POST /api/v1/waves/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req WaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateWaveRequest(&req); err != nil {
		s.validationFailed(w, r, err)
		return
	}

	gen := gates.NewGenerator(s.tuning)
	normalized := req.normalized()
	wave := gen.Generate(gen.Config(normalized, req.Wave, s.tuning.StartingArmy))
	view := func(g gates.Gate, _ int) gates.GateView { return g.View() }

	s.writeJSON(w, http.StatusOK, PreviewResponse{
		Seed:           req.Seed,
		NormalizedSeed: normalized,
		Wave:           wave.Config.Number,
		Tier:           wave.Config.Tier,
		StartingArmy:   wave.Config.StartingArmy,
		Forward:        lo.Map(wave.Forward, view),
		Retreat:        lo.Map(wave.Retreat, view),
		Optimal:        wave.Optimal,
		EngineVersion:  EngineVersion,
	})
}

// POST /api/v1/simulate
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateSimulateRequest(&req); err != nil {
		s.validationFailed(w, r, err)
		return
	}

	var strategy autopilot.Strategy
	var script *autopilot.Script
	if req.Script != "" {
		var err error
		if script, err = autopilot.NewScript(req.Script); err != nil {
			s.errorHandler.Write(w, r, http.StatusBadRequest, NewError(ErrTypeScript, "script rejected").WithCause(err).Build())
			return
		}
		strategy = script
	} else {
		strategy, _ = autopilot.Lookup(req.Strategy)
	}

	e := run.New(s.tuning, s.engineOptions()...)
	res, err := autopilot.PlayWave(r.Context(), e, strategy, req.Seed, req.Wave, req.Dt)
	if err != nil {
		status, errType := http.StatusUnprocessableEntity, ErrTypeScript
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status, errType = http.StatusRequestTimeout, ErrTypeTimeout
		}
		s.errorHandler.Write(w, r, status, NewError(errType, "simulation failed").WithCause(err).Build())
		return
	}

	resp := SimulateResponse{Result: res, EngineVersion: EngineVersion}
	if script != nil {
		resp.Logs = script.Logs()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/scan
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scan.Request
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateScanRequest(&req); err != nil {
		s.validationFailed(w, r, err)
		return
	}
	if req.TimeoutMs == 0 {
		req.TimeoutMs = 30_000
	}

	s.logger.Info("scan",
		"prefix", hashSeed(req.Prefix),
		"range", strconv.FormatUint(req.Start, 10)+"-"+strconv.FormatUint(req.End, 10),
		"wave", req.Wave,
		"metric", req.Metric,
		"target_op", req.TargetOp,
	)

	result, err := s.scanner.Scan(r.Context(), req)
	if err != nil {
		s.validationFailed(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ScanResponse{
		Hits:          result.Hits,
		Summary:       result.Summary,
		Echo:          result.Echo,
		EngineVersion: EngineVersion,
	})
}

// GET /api/v1/stars
func (s *Server) handleStars(w http.ResponseWriter, r *http.Request) {
	stars := map[int]int{}
	if s.store != nil {
		var err error
		if stars, err = s.store.BestStars(r.Context()); err != nil {
			s.errorHandler.Write(w, r, http.StatusInternalServerError, NewError(ErrTypeStorage, "failed to load stars").WithCause(err).Build())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, StarsResponse{Stars: stars, EngineVersion: EngineVersion})
}

// GET /api/v1/runs?limit=&offset=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	resp := RunsResponse{Runs: []store.RunRecord{}, EngineVersion: EngineVersion}
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	q := r.URL.Query()
	limit := atoiDefault(q.Get("limit"), 50)
	offset := atoiDefault(q.Get("offset"), 0)
	if limit < 1 || limit > 1000 || offset < 0 {
		s.errorHandler.Validation(w, r, "limit", "limit must be 1-1000 and offset >= 0")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.errorHandler.Write(w, r, http.StatusInternalServerError, NewError(ErrTypeStorage, "failed to list runs").WithCause(err).Build())
		return
	}
	if runs != nil {
		resp.Runs = runs
	}
	best, ok, err := s.store.HighScore(r.Context())
	if err != nil {
		s.errorHandler.Write(w, r, http.StatusInternalServerError, NewError(ErrTypeStorage, "failed to load high score").WithCause(err).Build())
		return
	}
	if ok {
		resp.HighScore = &best
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/runs/stored/{id}
func (s *Server) handleStoredRun(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.errorHandler.Validation(w, r, "id", "run id must be a UUID")
		return
	}
	if !s.requireStore(w, r) {
		return
	}

	rec, err := s.store.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		s.errorHandler.Write(w, r, http.StatusNotFound, NewError(ErrTypeRunNotFound, "stored run not found").WithContext("id", raw).Build())
	case err != nil:
		s.errorHandler.Write(w, r, http.StatusInternalServerError, NewError(ErrTypeStorage, "failed to load run").WithCause(err).Build())
	default:
		s.writeJSON(w, http.StatusOK, StoredRunResponse{Run: rec, EngineVersion: EngineVersion})
	}
}

// GET /api/v1/runs/export
func (s *Server) handleExportRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	var buf bytes.Buffer
	if err := s.store.ExportCSV(r.Context(), &buf); err != nil {
		s.errorHandler.Write(w, r, http.StatusInternalServerError, NewError(ErrTypeStorage, "failed to export runs").WithCause(err).Build())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="marauders-runs.csv"`)
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("write export", "err", err)
	}
}

// requireStore writes a 503 when persistence is disabled
func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store != nil {
		return true
	}
	s.errorHandler.Write(w, r, http.StatusServiceUnavailable, NewError(ErrTypeStorage, "persistence is disabled").Build())
	return false
}

// lookup finds and locks the session named by {id}. The caller must unlock it.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.errorHandler.Validation(w, r, "id", "run id must be a UUID")
		return nil, false
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		s.errorHandler.Write(w, r, http.StatusNotFound, NewError(ErrTypeRunNotFound, "run not found").WithContext("id", raw).Build())
		return nil, false
	}
	sess.lock(s.sessions.now())
	return sess, true
}

// persist saves a run the first time it reaches a terminal phase. Storage errors are
// logged, not returned; the run itself is unaffected. Must hold the session lock.
func (s *Server) persist(ctx context.Context, sess *session) bool {
	if sess.persisted || !sess.engine.Phase().Terminal() {
		return sess.persisted
	}
	if s.store == nil {
		return false
	}

	st := sess.engine.State()
	score := sess.engine.Score()
	rec, err := s.store.SaveRun(ctx, store.RunRecord{
		Seed:           st.Seed,
		NormalizedSeed: st.NormalizedSeed,
		Wave:           st.Wave,
		Phase:          string(st.Phase),
		Score:          score.Total,
		Stars:          score.Stars,
		Survivors:      score.Survivors,
		Optimal:        score.Optimal,
		Elapsed:        st.Elapsed,
		Gates:          len(st.History),
		OptimalChoices: lo.CountBy(st.History, func(g run.GateRecord) bool { return g.Resolution.IsOptimal }),
	})
	if err != nil {
		s.logger.Error("save run", "id", sess.id, "err", err)
		return false
	}
	upd, err := s.store.RecordStars(ctx, st.Wave, score.Stars)
	if err != nil {
		s.logger.Error("record stars", "id", sess.id, "wave", st.Wave, "err", err)
		return false
	}

	sess.persisted = true
	s.logger.Info("run finished",
		"id", sess.id,
		"run", rec.ID,
		"phase", st.Phase,
		"score", score.Total,
		"stars", score.Stars,
		"best", upd.Best,
		"improved", upd.Improved,
	)
	return true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}
