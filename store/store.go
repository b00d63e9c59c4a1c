// Package store keeps an sqlite event log of pipeline runs, line crossings
// and speed samples
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	vtrack "github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrUnknownRun is returned when a run id has no row
var ErrUnknownRun = errors.New("unknown run")

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		frame_rate DOUBLE NOT NULL,
		started_at_ns BIGINT NOT NULL,
		finished_at_ns BIGINT,
		frames INTEGER NOT NULL DEFAULT 0,
		in_count INTEGER NOT NULL DEFAULT 0,
		out_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS crossings (
		run_id TEXT NOT NULL,
		frame INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		direction TEXT NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS speed_samples (
		run_id TEXT NOT NULL,
		frame INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		class INTEGER NOT NULL,
		speed DOUBLE NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE INDEX IF NOT EXISTS idx_crossings_run ON crossings(run_id, frame);
	CREATE INDEX IF NOT EXISTS idx_speed_samples_run ON speed_samples(run_id, track_id, frame);
`

// Direction of a line crossing
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Run describes one processed video
type Run struct {
	RunID     string
	Source    string
	Width     int
	Height    int
	FrameRate float64
	StartedAt time.Time
	// FinishedAt is zero while the run is in progress
	FinishedAt time.Time
	Frames     int
	InCount    int
	OutCount   int
}

// Crossing is a track crossing the counting line
type Crossing struct {
	Frame     int
	TrackID   int
	Direction string
}

// SpeedSample is the speed estimate of a track on one frame
type SpeedSample struct {
	Frame   int
	TrackID int
	Class   int
	Speed   float64
}

// Store persists pipeline events
type Store struct {
	db *sql.DB
}

// connPragmas are applied by the driver to every pooled connection
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// dsn appends the connection pragmas to a database path
func dsn(path string) string {

	q := url.Values{}

	for _, pragma := range connPragmas {
		q.Add("_pragma", pragma)
	}

	return path + "?" + q.Encode()
}

// Open opens or creates the database file and applies the schema
func Open(path string) (*Store, error) {

	db, err := sql.Open("sqlite", dsn(path))

	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new run and returns it with a generated id
func (s *Store) StartRun(source string, width, height int, frameRate float64) (Run, error) {

	run := Run{
		RunID:     uuid.New().String(),
		Source:    source,
		Width:     width,
		Height:    height,
		FrameRate: frameRate,
		StartedAt: time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, source, width, height, frame_rate, started_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Width, run.Height, run.FrameRate,
		run.StartedAt.UnixNano(),
	)

	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	return run, nil
}

// RecordFrame stores the crossings and speed estimates of one processed
// frame in a single transaction
func (s *Store) RecordFrame(runID string, res vtrack.FrameResult) error {

	tx, err := s.db.Begin()

	if err != nil {
		return fmt.Errorf("begin frame %d: %w", res.Frame, err)
	}

	defer tx.Rollback()

	for _, obj := range res.Objects {

		if obj.CrossedIn || obj.CrossedOut {

			direction := DirectionOut

			if obj.CrossedIn {
				direction = DirectionIn
			}

			_, err := tx.Exec(`
				INSERT INTO crossings (run_id, frame, track_id, direction)
				VALUES (?, ?, ?, ?)`,
				runID, res.Frame, obj.TrackID, direction,
			)

			if err != nil {
				return fmt.Errorf("insert crossing of track %d: %w", obj.TrackID, err)
			}
		}

		if obj.HasSpeed {
			_, err := tx.Exec(`
				INSERT INTO speed_samples (run_id, frame, track_id, class, speed)
				VALUES (?, ?, ?, ?, ?)`,
				runID, res.Frame, obj.TrackID, obj.Class, obj.Speed,
			)

			if err != nil {
				return fmt.Errorf("insert speed of track %d: %w", obj.TrackID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frame %d: %w", res.Frame, err)
	}

	return nil
}

// FinishRun records the final frame count and line totals of a run
func (s *Store) FinishRun(runID string, frames, inCount, outCount int) error {

	res, err := s.db.Exec(`
		UPDATE runs SET finished_at_ns = ?, frames = ?, in_count = ?, out_count = ?
		WHERE run_id = ?`,
		time.Now().UnixNano(), frames, inCount, outCount, runID,
	)

	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	n, err := res.RowsAffected()

	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	return nil
}

// GetRun returns the run with the given id
func (s *Store) GetRun(runID string) (Run, error) {

	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)

	err := s.db.QueryRow(`
		SELECT run_id, source, width, height, frame_rate, started_at_ns,
		       finished_at_ns, frames, in_count, out_count
		FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.Source, &run.Width, &run.Height, &run.FrameRate,
		&started, &finished, &run.Frames, &run.InCount, &run.OutCount)

	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}

	run.StartedAt = time.Unix(0, started)

	if finished.Valid {
		run.FinishedAt = time.Unix(0, finished.Int64)
	}

	return run, nil
}

// Crossings returns the crossings of a run in frame order
func (s *Store) Crossings(runID string) ([]Crossing, error) {

	rows, err := s.db.Query(`
		SELECT frame, track_id, direction FROM crossings
		WHERE run_id = ? ORDER BY frame, rowid`, runID)

	if err != nil {
		return nil, fmt.Errorf("query crossings: %w", err)
	}

	defer rows.Close()

	crossings := make([]Crossing, 0)

	for rows.Next() {
		var c Crossing

		if err := rows.Scan(&c.Frame, &c.TrackID, &c.Direction); err != nil {
			return nil, fmt.Errorf("scan crossing: %w", err)
		}

		crossings = append(crossings, c)
	}

	return crossings, rows.Err()
}

// SpeedSamples returns the speed samples of a run ordered by track then
// frame
func (s *Store) SpeedSamples(runID string) ([]SpeedSample, error) {

	rows, err := s.db.Query(`
		SELECT frame, track_id, class, speed FROM speed_samples
		WHERE run_id = ? ORDER BY track_id, frame`, runID)

	if err != nil {
		return nil, fmt.Errorf("query speed samples: %w", err)
	}

	defer rows.Close()

	samples := make([]SpeedSample, 0)

	for rows.Next() {
		var smp SpeedSample

		if err := rows.Scan(&smp.Frame, &smp.TrackID, &smp.Class, &smp.Speed); err != nil {
			return nil, fmt.Errorf("scan speed sample: %w", err)
		}

		samples = append(samples, smp)
	}

	return samples, rows.Err()
}
