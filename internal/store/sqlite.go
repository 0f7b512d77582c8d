package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	_ "modernc.org/sqlite"
)

// SQLite stores files and charts in two tables. Sheet summaries and chart
// configs are JSON columns.
type SQLite struct {
	conn *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies migrations.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	conn.SetMaxOpenConns(1)
	s := &SQLite{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			original_name TEXT NOT NULL,
			stored_path TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			sheets_json TEXT NOT NULL DEFAULT '[]',
			uploaded_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS charts (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES files(id),
			title TEXT NOT NULL,
			type TEXT NOT NULL,
			config_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id, uploaded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_charts_file ON charts(file_id)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) CreateFile(ctx context.Context, f *FileRecord) error {
	prepareFile(f)
	sheets, err := json.Marshal(f.Sheets)
	if err != nil {
		return fmt.Errorf("encode sheets: %w", err)
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO files (id, owner_id, original_name, stored_path, size, sheets_json, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.OriginalName, f.StoredPath, f.Size, string(sheets), f.UploadedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	for i := range f.Charts {
		if err := insertChart(ctx, tx, f.ID, &f.Charts[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertChart(ctx context.Context, db execer, fileID string, c *ChartRecord) error {
	prepareChart(c)
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("encode chart config: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO charts (id, file_id, title, type, config_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, fileID, c.Title, c.Type, string(cfg), c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert chart: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(r rowScanner) (*FileRecord, error) {
	var (
		f      FileRecord
		sheets string
		at     int64
	)
	if err := r.Scan(&f.ID, &f.OwnerID, &f.OriginalName, &f.StoredPath, &f.Size, &sheets, &at); err != nil {
		return nil, err
	}
	f.UploadedAt = time.Unix(0, at).UTC()
	f.Sheets = []sheet.SheetSummary{}
	if err := json.Unmarshal([]byte(sheets), &f.Sheets); err != nil {
		return nil, fmt.Errorf("decode sheets of %s: %w", f.ID, err)
	}
	f.Charts = []ChartRecord{}
	return &f, nil
}

func (s *SQLite) loadCharts(ctx context.Context, f *FileRecord) error {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, title, type, config_json, created_at FROM charts WHERE file_id = ? ORDER BY created_at, rowid`, f.ID)
	if err != nil {
		return fmt.Errorf("query charts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c   ChartRecord
			cfg string
			at  int64
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Type, &cfg, &at); err != nil {
			return err
		}
		c.CreatedAt = time.Unix(0, at).UTC()
		if err := json.Unmarshal([]byte(cfg), &c.Config); err != nil {
			return fmt.Errorf("decode chart %s: %w", c.ID, err)
		}
		if c.Config.Filters == nil {
			c.Config.Filters = []chart.Filter{}
		}
		f.Charts = append(f.Charts, c)
	}
	return rows.Err()
}

const fileColumns = `id, owner_id, original_name, stored_path, size, sheets_json, uploaded_at`

func (s *SQLite) GetFile(ctx context.Context, owner, id string) (*FileRecord, error) {
	f, err := scanFile(s.conn.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ? AND owner_id = ?`, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("file", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if err := s.loadCharts(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLite) ListFiles(ctx context.Context, owner string) ([]FileRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE owner_id = ? ORDER BY uploaded_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	var files []*FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// charts are loaded after the cursor is closed: the pool holds one connection
	out := make([]FileRecord, 0, len(files))
	for _, f := range files {
		if err := s.loadCharts(ctx, f); err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *SQLite) DeleteFile(ctx context.Context, owner, id string) (*FileRecord, error) {
	f, err := s.GetFile(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM charts WHERE file_id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete charts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ? AND owner_id = ?`, id, owner); err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLite) ownsFile(ctx context.Context, owner, fileID string) error {
	var one int
	err := s.conn.QueryRowContext(ctx, `SELECT 1 FROM files WHERE id = ? AND owner_id = ?`, fileID, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("file", fileID)
	}
	return err
}

func (s *SQLite) AppendChart(ctx context.Context, owner, fileID string, c *ChartRecord) error {
	if err := s.ownsFile(ctx, owner, fileID); err != nil {
		return err
	}
	return insertChart(ctx, s.conn, fileID, c)
}

func (s *SQLite) DeleteChart(ctx context.Context, owner, fileID, chartID string) error {
	if err := s.ownsFile(ctx, owner, fileID); err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx, `DELETE FROM charts WHERE id = ? AND file_id = ?`, chartID, fileID)
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("chart", chartID)
	}
	return nil
}

func (s *SQLite) Close() error { return s.conn.Close() }
