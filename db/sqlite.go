package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists served predictions and training runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at path, creating tables as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT,
        endpoint VARCHAR(50) NOT NULL,
        request TEXT NOT NULL,
        response TEXT NOT NULL,
        cached INTEGER DEFAULT 0,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_endpoint ON predictions(endpoint, created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50) NOT NULL,
        accuracy REAL,
        data_points INTEGER,
        details TEXT,
        trained_at DATETIME NOT NULL
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type Prediction struct {
	RequestID string          `json:"request_id,omitempty"`
	Endpoint  string          `json:"endpoint"`
	Request   json.RawMessage `json:"request"`
	Response  json.RawMessage `json:"response"`
	Cached    bool            `json:"cached"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, p Prediction) error {
	if p.Endpoint == "" {
		return errors.New("endpoint required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (request_id, endpoint, request, response, cached, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		p.RequestID, p.Endpoint, string(p.Request), string(p.Response), p.Cached, p.CreatedAt)
	return err
}

// RecentPredictions returns the newest predictions for endpoint, or for all
// endpoints when endpoint is empty.
func (s *Store) RecentPredictions(ctx context.Context, endpoint string, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT request_id, endpoint, request, response, cached, created_at
        FROM predictions
        WHERE ? = '' OR endpoint = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, endpoint, endpoint, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var requestID sql.NullString
		var request, response string
		if err := rows.Scan(&requestID, &p.Endpoint, &request, &response, &p.Cached, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.RequestID = requestID.String
		p.Request = json.RawMessage(request)
		p.Response = json.RawMessage(response)
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

type TrainingRun struct {
	ModelName  string          `json:"model_name"`
	Accuracy   float64         `json:"accuracy"`
	DataPoints int             `json:"data_points"`
	Details    json.RawMessage `json:"details,omitempty"`
	TrainedAt  time.Time       `json:"trained_at"`
}

func (s *Store) SaveTrainingRun(ctx context.Context, run TrainingRun) error {
	if run.ModelName == "" {
		return errors.New("model name required")
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	details := string(run.Details)
	if details == "" {
		details = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (model_name, accuracy, data_points, details, trained_at)
        VALUES (?, ?, ?, ?, ?)`,
		run.ModelName, run.Accuracy, run.DataPoints, details, run.TrainedAt)
	return err
}

func (s *Store) LoadTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, accuracy, data_points, details, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var details string
		if err := rows.Scan(&run.ModelName, &run.Accuracy, &run.DataPoints, &details, &run.TrainedAt); err != nil {
			return nil, err
		}
		run.Details = json.RawMessage(details)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
