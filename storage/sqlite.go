package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"myhome_scrooper/models"
)

// SQLiteStore keeps run history, run logs and the listings of every run.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		with_phone INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		categories JSON
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		listing_id INTEGER NOT NULL,
		announcement_type TEXT NOT NULL,
		phone_number TEXT,
		data JSON,
		scraped_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES scrape_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_listings_run ON listings(run_id);
	CREATE INDEX IF NOT EXISTS idx_listings_listing ON listings(listing_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_runs (id, source, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.Source, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, listings_found = ?,
			with_phone = ?, errors_count = ?, categories = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.WithPhone,
		run.ErrorsCount, string(run.CategoriesJSON()), run.ID.String())
	return err
}

func (s *SQLiteStore) Log(runID uuid.UUID, level models.LogLevel, message, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		runID.String(), time.Now(), level, message, source)
	return err
}

// InsertListings stores a run's records in one transaction. Each row keeps
// the full record as JSON so exports can be regenerated later. Repeated
// listing ids get a row each, like the file exports.
func (s *SQLiteStore) InsertListings(runID uuid.UUID, records []models.ListingRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO listings (run_id, listing_id, announcement_type, phone_number, data, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshal listing %d: %w", records[i].ID, err)
		}
		if _, err := stmt.Exec(runID.String(), records[i].ID, records[i].Category.String(),
			records[i].PhoneNumber, string(data), now); err != nil {
			return fmt.Errorf("insert listing %d: %w", records[i].ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetListings(runID uuid.UUID) ([]models.ListingRecord, error) {
	rows, err := s.db.Query(`SELECT data FROM listings WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ListingRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec models.ListingRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode stored listing: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, source, started_at, finished_at, status, listings_found, with_phone,
			errors_count, COALESCE(categories, '[]')
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var (
			run        models.ScrapeRun
			id         string
			finishedAt sql.NullTime
			categories string
		)
		if err := rows.Scan(&id, &run.Source, &run.StartedAt, &finishedAt, &run.Status,
			&run.ListingsFound, &run.WithPhone, &run.ErrorsCount, &categories); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		if err := json.Unmarshal([]byte(categories), &run.Categories); err != nil {
			return nil, fmt.Errorf("decode run categories: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetRunLogs(runID uuid.UUID) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, source
		FROM scrape_logs WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
