package main

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/orian/spoolplan/models"
)

type DuckDBStorage struct {
	db *sql.DB
}

func NewDuckDBStorage(dbPath string) (*DuckDBStorage, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	storage := &DuckDBStorage{db: db}
	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Run migrations
	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *DuckDBStorage) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS analyses (
			id VARCHAR PRIMARY KEY,
			file_name VARCHAR NOT NULL,
			source_kind VARCHAR NOT NULL,
			stats TEXT,
			diagnostics TEXT,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS plans (
			id VARCHAR PRIMARY KEY,
			analysis_id VARCHAR NOT NULL,
			strategy VARCHAR NOT NULL,
			topology TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *DuckDBStorage) SaveAnalysis(a *models.Analysis) error {
	statsJSON, err := json.Marshal(a.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	diagsJSON, err := json.Marshal(a.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO analyses (id, file_name, source_kind, stats, diagnostics, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.FileName, a.SourceKind, string(statsJSON), string(diagsJSON), a.CreatedAt,
	)
	return err
}

func (s *DuckDBStorage) GetAnalysis(id string) (*models.Analysis, bool) {
	var a models.Analysis
	var statsJSON, diagsJSON string

	err := s.db.QueryRow(`
		SELECT id, file_name, source_kind, COALESCE(stats, 'null'), COALESCE(diagnostics, '[]'), created_at
		FROM analyses
		WHERE id = ?
	`, id).Scan(&a.ID, &a.FileName, &a.SourceKind, &statsJSON, &diagsJSON, &a.CreatedAt)

	if err != nil {
		return nil, false
	}

	if err := json.Unmarshal([]byte(statsJSON), &a.Stats); err != nil {
		fmt.Printf("Warning: failed to unmarshal stats for analysis %s: %v\n", a.ID, err)
	}
	a.Diagnostics = []models.Diagnostic{}
	if diagsJSON != "" && diagsJSON != "[]" {
		if err := json.Unmarshal([]byte(diagsJSON), &a.Diagnostics); err != nil {
			fmt.Printf("Warning: failed to unmarshal diagnostics for analysis %s: %v\n", a.ID, err)
		}
	}

	tags, err := s.GetAnalysisTags(a.ID)
	if err == nil {
		a.Tags = tags
	}

	return &a, true
}

func (s *DuckDBStorage) GetAnalyses() ([]*models.Analysis, error) {
	rows, err := s.db.Query(`
		SELECT id, file_name, source_kind, COALESCE(stats, 'null'), COALESCE(diagnostics, '[]'), created_at
		FROM analyses
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		var a models.Analysis
		var statsJSON, diagsJSON string
		if err := rows.Scan(&a.ID, &a.FileName, &a.SourceKind, &statsJSON, &diagsJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &a.Stats); err != nil {
			fmt.Printf("Warning: failed to unmarshal stats for analysis %s: %v\n", a.ID, err)
		}
		a.Diagnostics = []models.Diagnostic{}
		if diagsJSON != "" && diagsJSON != "[]" {
			if err := json.Unmarshal([]byte(diagsJSON), &a.Diagnostics); err != nil {
				fmt.Printf("Warning: failed to unmarshal diagnostics for analysis %s: %v\n", a.ID, err)
			}
		}
		analyses = append(analyses, &a)
	}

	return analyses, rows.Err()
}

func (s *DuckDBStorage) DeleteAnalysis(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM analysis_tags WHERE analysis_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM plans WHERE analysis_id = ?", id); err != nil {
		return err
	}
	result, err := tx.Exec("DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("analysis not found")
	}

	return tx.Commit()
}

func (s *DuckDBStorage) SavePlan(p *models.Plan) error {
	topoJSON, err := json.Marshal(p.Topology)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}
	resultJSON, err := json.Marshal(p.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO plans (id, analysis_id, strategy, topology, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.AnalysisID, string(p.Strategy), string(topoJSON), string(resultJSON), p.CreatedAt,
	)
	return err
}

func (s *DuckDBStorage) GetPlan(id string) (*models.Plan, bool) {
	var p models.Plan
	var strategy, topoJSON, resultJSON string

	err := s.db.QueryRow(`
		SELECT id, analysis_id, strategy, topology, result, created_at
		FROM plans
		WHERE id = ?
	`, id).Scan(&p.ID, &p.AnalysisID, &strategy, &topoJSON, &resultJSON, &p.CreatedAt)

	if err != nil {
		return nil, false
	}

	p.Strategy = models.Strategy(strategy)
	if err := json.Unmarshal([]byte(topoJSON), &p.Topology); err != nil {
		fmt.Printf("Warning: failed to unmarshal topology for plan %s: %v\n", p.ID, err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &p.Result); err != nil {
		fmt.Printf("Warning: failed to unmarshal result for plan %s: %v\n", p.ID, err)
	}

	return &p, true
}

func (s *DuckDBStorage) GetPlansForAnalysis(analysisID string) ([]*models.Plan, error) {
	rows, err := s.db.Query(`
		SELECT id, analysis_id, strategy, topology, result, created_at
		FROM plans
		WHERE analysis_id = ?
		ORDER BY created_at DESC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		var p models.Plan
		var strategy, topoJSON, resultJSON string
		if err := rows.Scan(&p.ID, &p.AnalysisID, &strategy, &topoJSON, &resultJSON, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		p.Strategy = models.Strategy(strategy)
		if err := json.Unmarshal([]byte(topoJSON), &p.Topology); err != nil {
			fmt.Printf("Warning: failed to unmarshal topology for plan %s: %v\n", p.ID, err)
		}
		if err := json.Unmarshal([]byte(resultJSON), &p.Result); err != nil {
			fmt.Printf("Warning: failed to unmarshal result for plan %s: %v\n", p.ID, err)
		}
		plans = append(plans, &p)
	}

	return plans, rows.Err()
}

func (s *DuckDBStorage) Close() error {
	return s.db.Close()
}

// Helper functions
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func generateID() string {
	return uuid.New().String()
}
