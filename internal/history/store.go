// Package history persists review outcomes in DuckDB for trend queries.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/techspec-reviewer/backend/internal/models"
)

// DefaultRecentLimit caps Recent when no limit is given.
const DefaultRecentLimit = 20

// ReviewSummary is one row of the reviews table.
type ReviewSummary struct {
	ID             string    `json:"id"`
	FileID         string    `json:"fileId"`
	FileName       string    `json:"fileName"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	OverallScore   *int      `json:"overallScore"`
	OverallComment string    `json:"overallComment"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SectionStat aggregates section_scores per header.
type SectionStat struct {
	Header      string   `json:"header"`
	Reviews     int      `json:"reviews"`
	AvgScore    *float64 `json:"avgScore"`
	Missing     int      `json:"missing"`
	Boilerplate int      `json:"boilerplate"`
}

// Store is a DuckDB-backed review history.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // serialises writers
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	fmt.Printf("[History] Opening database at: %s\n", dbPath)

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[History] Pragma warning: %v\n", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS reviews (
			id              VARCHAR NOT NULL,
			file_id         VARCHAR NOT NULL,
			file_name       VARCHAR NOT NULL,
			provider        VARCHAR,
			model           VARCHAR,
			overall_score   INTEGER,
			overall_comment VARCHAR,
			created_at      TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS section_scores (
			review_id VARCHAR NOT NULL,
			header    VARCHAR NOT NULL,
			status    VARCHAR NOT NULL,
			score     INTEGER
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create history schema: %w", err)
		}
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Record stores a finished review. Recording the same review twice
// replaces the earlier rows.
func (s *Store) Record(ctx context.Context, r *models.ReviewResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM section_scores WHERE review_id = ?`, r.ReviewID); err != nil {
		return fmt.Errorf("clear section scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, r.ReviewID); err != nil {
		return fmt.Errorf("clear review: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reviews (id, file_id, file_name, provider, model, overall_score, overall_comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReviewID, r.File.ID, r.File.Name, r.Provider, r.ModelID,
		nullableInt(r.Structure.OverallScore), r.Structure.OverallComment, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	for _, sec := range r.Structure.Sections {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO section_scores (review_id, header, status, score) VALUES (?, ?, ?, ?)`,
			r.ReviewID, sec.Header, string(sec.Status), nullableInt(sec.AIScore),
		)
		if err != nil {
			return fmt.Errorf("insert section score %q: %w", sec.Header, err)
		}
	}

	return tx.Commit()
}

// Recent returns the newest reviews first.
func (s *Store) Recent(ctx context.Context, limit int) ([]ReviewSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, file_name, provider, model, overall_score, overall_comment, created_at
		 FROM reviews ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent reviews: %w", err)
	}
	defer rows.Close()

	out := make([]ReviewSummary, 0, limit)
	for rows.Next() {
		var (
			r        ReviewSummary
			provider sql.NullString
			model    sql.NullString
			comment  sql.NullString
			score    sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.FileID, &r.FileName, &provider, &model, &score, &comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Provider = provider.String
		r.Model = model.String
		r.OverallComment = comment.String
		if score.Valid {
			v := int(score.Int64)
			r.OverallScore = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SectionStats returns the average score and missing counts per header.
func (s *Store) SectionStats(ctx context.Context) ([]SectionStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT header,
		        COUNT(*) AS reviews,
		        AVG(score) AS avg_score,
		        COUNT(*) FILTER (WHERE status = 'missing') AS missing,
		        COUNT(*) FILTER (WHERE status = 'boilerplate') AS boilerplate
		 FROM section_scores
		 GROUP BY header
		 ORDER BY header`)
	if err != nil {
		return nil, fmt.Errorf("query section stats: %w", err)
	}
	defer rows.Close()

	var out []SectionStat
	for rows.Next() {
		var (
			st  SectionStat
			avg sql.NullFloat64
		)
		if err := rows.Scan(&st.Header, &st.Reviews, &avg, &st.Missing, &st.Boilerplate); err != nil {
			return nil, fmt.Errorf("scan section stat: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			st.AvgScore = &v
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
