// Package storage persists simulation runs. Each run gets its own
// directory holding metadata.json, states.csv and events.csv, while a
// sqlite catalog indexes all runs for fast listing.
package storage

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/san-kum/simstate/internal/sim"
	"github.com/san-kum/simstate/internal/state"
)

type Store struct {
	baseDir string
	db      *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	dt         REAL NOT NULL,
	duration   REAL NOT NULL,
	integrator TEXT NOT NULL,
	steps      INTEGER NOT NULL,
	events     INTEGER NOT NULL
);`

// Open creates baseDir when needed and opens the run catalog in it.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(baseDir, "catalog.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{baseDir: baseDir, db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type RunMetadata struct {
	ID         string    `json:"id"`
	Scenario   string    `json:"scenario"`
	Timestamp  time.Time `json:"timestamp"`
	Dt         float64   `json:"dt"`
	Duration   float64   `json:"duration"`
	Integrator string    `json:"integrator"`
	Steps      int       `json:"steps"`
	Events     int       `json:"events"`
}

// Save writes one run to disk and registers it in the catalog,
// returning the generated run ID.
func (s *Store) Save(scenario, integrator string, dt, duration float64, result *sim.Result) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scenario:   scenario,
		Timestamp:  time.Now().UTC(),
		Dt:         dt,
		Duration:   duration,
		Integrator: integrator,
		Steps:      result.StepsTaken,
		Events:     len(result.Events),
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeFrames(filepath.Join(runDir, "states.csv"), result.Frames); err != nil {
		return "", err
	}
	if err := writeEvents(filepath.Join(runDir, "events.csv"), result.Events); err != nil {
		return "", err
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, scenario, created_at, dt, duration, integrator, steps, events)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Scenario, meta.Timestamp.Format(time.RFC3339Nano),
		meta.Dt, meta.Duration, meta.Integrator, meta.Steps, meta.Events)
	if err != nil {
		return "", fmt.Errorf("catalog insert: %w", err)
	}
	return runID, nil
}

// List returns all cataloged runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(
		`SELECT id, scenario, created_at, dt, duration, integrator, steps, events
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var created string
		if err := rows.Scan(&meta.ID, &meta.Scenario, &created, &meta.Dt,
			&meta.Duration, &meta.Integrator, &meta.Steps, &meta.Events); err != nil {
			return nil, err
		}
		meta.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

// Load reads one run's metadata from its directory.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadFrames reads a run's trajectory back.
func (s *Store) LoadFrames(runID string) ([]sim.Frame, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Frame{}, nil
	}

	frames := make([]sim.Frame, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		y := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			y = append(y, val)
		}
		frames = append(frames, sim.Frame{Time: t, Y: y})
	}
	return frames, nil
}

// LoadEvents reads a run's recorded trigger events back.
func (s *Store) LoadEvents(runID string) ([]sim.Event, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "events.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Event{}, nil
	}

	events := make([]sim.Event, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 6 {
			continue
		}
		step, _ := strconv.Atoi(rec[0])
		t, _ := strconv.ParseFloat(rec[1], 64)
		trigger, _ := strconv.Atoi(rec[2])
		stage, _ := strconv.Atoi(rec[3])
		before, _ := strconv.ParseFloat(rec[4], 64)
		after, _ := strconv.ParseFloat(rec[5], 64)
		events = append(events, sim.Event{
			Step: step, Time: t, Trigger: trigger,
			Stage: state.Stage(stage), Before: before, After: after,
		})
	}
	return events, nil
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFrames(path string, frames []sim.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if len(frames) == 0 {
		return w.Write([]string{"time"})
	}
	header := []string{"time"}
	for i := range frames[0].Y {
		header = append(header, fmt.Sprintf("y%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, f := range frames {
		row := make([]string, 0, len(f.Y)+1)
		row = append(row, strconv.FormatFloat(f.Time, 'f', 6, 64))
		for _, val := range f.Y {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeEvents(path string, events []sim.Event) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"step", "time", "trigger", "stage", "before", "after"}); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			strconv.Itoa(ev.Step),
			strconv.FormatFloat(ev.Time, 'f', 6, 64),
			strconv.Itoa(ev.Trigger),
			strconv.Itoa(int(ev.Stage)),
			strconv.FormatFloat(ev.Before, 'f', 6, 64),
			strconv.FormatFloat(ev.After, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
