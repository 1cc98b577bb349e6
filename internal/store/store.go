package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrRunNotFound = errors.New("run not found")
	ErrInvalidWave = errors.New("wave must be >= 1")
)

// --------- Data models ---------

// RunRecord is one finished run
type RunRecord struct {
	ID             uuid.UUID `json:"id"`
	Seed           string    `json:"seed"`
	NormalizedSeed uint32    `json:"normalized_seed"`
	Wave           int       `json:"wave"`
	Phase          string    `json:"phase"`
	Score          int       `json:"score"`
	Stars          int       `json:"stars"`
	Survivors      int       `json:"survivors"`
	Optimal        int       `json:"optimal"`
	Elapsed        float64   `json:"elapsed"`
	Gates          int       `json:"gates"`
	OptimalChoices int       `json:"optimal_choices"`
	CreatedAt      time.Time `json:"created_at"`
}

// StarUpdate reports the outcome of RecordStars
type StarUpdate struct {
	Wave     int  `json:"wave"`
	Best     int  `json:"best"`
	Improved bool `json:"improved"`
}

// --------- Store ---------

// Store persists finished runs and the best star rating per wave
type Store struct {
	db      *sql.DB
	log     *log.Logger
	retries uint64
	backoff time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRetry sets how often a busy write is retried and the initial backoff
func WithRetry(retries uint64, backoff time.Duration) Option {
	return func(s *Store) {
		s.retries = retries
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// New opens/creates a SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes

	s := &Store{
		db:      db,
		log:     log.Default().WithPrefix("store"),
		retries: 5,
		backoff: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// --------- Migrations ---------

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys, goose.WithLogger(s.log))
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		s.log.Debug("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// --------- Runs ---------

// SaveRun stores a finished run and assigns its id and timestamp
func (s *Store) SaveRun(ctx context.Context, r RunRecord) (RunRecord, error) {
	if r.Wave < 1 {
		return RunRecord{}, ErrInvalidWave
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()
	_, err := s.exec(ctx, `
		INSERT INTO runs(
			id, seed, normalized_seed, wave, phase, score, stars,
			survivors, optimal, elapsed, gates, optimal_choices, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Seed, int64(r.NormalizedSeed), r.Wave, r.Phase, r.Score, r.Stars,
		r.Survivors, r.Optimal, r.Elapsed, r.Gates, r.OptimalChoices, r.CreatedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("save run: %w", err)
	}
	return r, nil
}

const runColumns = `id, seed, normalized_seed, wave, phase, score, stars,
	survivors, optimal, elapsed, gates, optimal_choices, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		r    RunRecord
		id   string
		norm int64
	)
	if err := row.Scan(&id, &r.Seed, &norm, &r.Wave, &r.Phase, &r.Score, &r.Stars,
		&r.Survivors, &r.Optimal, &r.Elapsed, &r.Gates, &r.OptimalChoices, &r.CreatedAt); err != nil {
		return RunRecord{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("run id %q: %w", id, err)
	}
	r.ID = parsed
	r.NormalizedSeed = uint32(norm)
	return r, nil
}

// GetRun returns one stored run
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns runs newest first
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, max(0, offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HighScore returns the best scoring run, if any
func (s *Store) HighScore(ctx context.Context) (RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY score DESC, created_at ASC
		LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	return r, true, nil
}

// --------- Stars ---------

// RecordStars keeps the best star rating seen for a wave. The stored value never
// decreases.
func (s *Store) RecordStars(ctx context.Context, wave, stars int) (StarUpdate, error) {
	if wave < 1 {
		return StarUpdate{}, ErrInvalidWave
	}
	stars = max(0, stars)
	prev, _, err := s.starsFor(ctx, wave)
	if err != nil {
		return StarUpdate{}, err
	}
	_, err = s.exec(ctx, `
		INSERT INTO wave_stars(wave, stars, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(wave) DO UPDATE SET
			stars=MAX(wave_stars.stars, excluded.stars),
			updated_at=excluded.updated_at
	`, wave, stars, time.Now().UTC())
	if err != nil {
		return StarUpdate{}, fmt.Errorf("record stars: %w", err)
	}
	return StarUpdate{Wave: wave, Best: max(prev, stars), Improved: stars > prev}, nil
}

func (s *Store) starsFor(ctx context.Context, wave int) (int, bool, error) {
	var stars int
	err := s.db.QueryRowContext(ctx, `SELECT stars FROM wave_stars WHERE wave=?`, wave).Scan(&stars)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return stars, err == nil, err
}

// BestStars returns the best star rating per wave
func (s *Store) BestStars(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT wave, stars FROM wave_stars ORDER BY wave`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var wave, stars int
		if err := rows.Scan(&wave, &stars); err != nil {
			return nil, err
		}
		out[wave] = stars
	}
	return out, rows.Err()
}

// ExportCSV writes every stored run to the writer as CSV (header included).
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	if _, err := io.WriteString(w, "id,seed,wave,phase,score,stars,survivors,optimal,elapsed,created_at\n"); err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s,%s,%d,%s,%d,%d,%d,%d,%.2f,%s\n",
			r.ID, csvField(r.Seed), r.Wave, r.Phase, r.Score, r.Stars, r.Survivors, r.Optimal,
			r.Elapsed, r.CreatedAt.UTC().Format(time.RFC3339Nano))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return rows.Err()
}

// --------- helpers ---------

// exec runs a write, retrying while SQLite reports the database as busy
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.backoff))
	return retry.DoValue[sql.Result](ctx, b, func(ctx context.Context) (sql.Result, error) {
		res, err := s.db.ExecContext(ctx, query, args...)
		if isBusyErr(err) {
			s.log.Warn("database busy, retrying")
			return nil, retry.RetryableError(err)
		}
		return res, err
	})
}

func isBusyErr(err error) bool {
	// modernc sqlite reports SQLITE_BUSY / SQLITE_LOCKED in the message
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

func csvField(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
