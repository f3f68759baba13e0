// Package store keeps the generation history log in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/joedanields/Automated-CO-PO/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_code TEXT NOT NULL DEFAULT '',
		course_name TEXT NOT NULL DEFAULT '',
		regulation TEXT NOT NULL,
		category TEXT NOT NULL,
		dept_type TEXT NOT NULL DEFAULT 'default',
		student_count INTEGER NOT NULL DEFAULT 0,
		output_file TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordGeneration appends one generation attempt to the history log.
func (s *Store) RecordGeneration(g model.GenerationRecord) (int64, error) {
	created := g.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO generations (course_code, course_name, regulation, category, dept_type,
		 student_count, output_file, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.CourseCode, g.CourseName, g.Regulation, g.Category, g.DeptType,
		g.StudentCount, g.OutputFile, g.Status, g.Detail, created,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListGenerations returns the history, newest first.
func (s *Store) ListGenerations() ([]model.GenerationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, course_code, course_name, regulation, category, dept_type,
		 student_count, output_file, status, detail, created_at
		 FROM generations ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.GenerationRecord
	for rows.Next() {
		var g model.GenerationRecord
		if err := rows.Scan(&g.ID, &g.CourseCode, &g.CourseName, &g.Regulation, &g.Category,
			&g.DeptType, &g.StudentCount, &g.OutputFile, &g.Status, &g.Detail, &g.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, g)
	}
	return records, rows.Err()
}

// GetGeneration returns one history row by ID.
func (s *Store) GetGeneration(id int64) (model.GenerationRecord, error) {
	var g model.GenerationRecord
	err := s.db.QueryRow(
		`SELECT id, course_code, course_name, regulation, category, dept_type,
		 student_count, output_file, status, detail, created_at
		 FROM generations WHERE id = ?`, id,
	).Scan(&g.ID, &g.CourseCode, &g.CourseName, &g.Regulation, &g.Category,
		&g.DeptType, &g.StudentCount, &g.OutputFile, &g.Status, &g.Detail, &g.CreatedAt)
	return g, err
}

// GenerationCount returns the number of logged generation attempts.
func (s *Store) GenerationCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&count)
	return count, err
}
