package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"deepresearch/internal/models"
)

// Service handles report and upload persistence.
type Service struct {
	db *sql.DB
}

// NewService builds a new reports service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateReport inserts a running report for the query and returns the record.
func (s *Service) CreateReport(ctx context.Context, query, provider, model string) (*models.Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (query, provider, model, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		query, provider, model, models.ReportRunning, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("report id: %w", err)
	}
	return &models.Report{
		ID:        id,
		Query:     query,
		Provider:  provider,
		Model:     model,
		Status:    models.ReportRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CompleteReport stores the markdown result and marks the report complete.
func (s *Service) CompleteReport(ctx context.Context, id int64, markdown string) error {
	if id <= 0 {
		return errors.New("invalid report id")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, markdown = ?, error = '', updated_at = ? WHERE id = ?`,
		models.ReportComplete, markdown, now, id,
	)
	if err != nil {
		return fmt.Errorf("complete report: %w", err)
	}
	return requireRow(res)
}

// FailReport records the failure reason.
func (s *Service) FailReport(ctx context.Context, id int64, cause string) error {
	if id <= 0 {
		return errors.New("invalid report id")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		models.ReportFailed, cause, now, id,
	)
	if err != nil {
		return fmt.Errorf("fail report: %w", err)
	}
	return requireRow(res)
}

// GetReport returns one report by id.
func (s *Service) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, provider, model, status, COALESCE(markdown, ''), COALESCE(error, ''), created_at, updated_at
		 FROM reports WHERE id = ?`, id,
	)
	var r models.Report
	if err := row.Scan(&r.ID, &r.Query, &r.Provider, &r.Model, &r.Status, &r.Markdown, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &r, nil
}

// ListReports returns report summaries (no markdown body) newest first.
func (s *Service) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, provider, model, status, COALESCE(error, ''), created_at, updated_at
		 FROM reports ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var list []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(&r.ID, &r.Query, &r.Provider, &r.Model, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// RecordUpload stores the upload metadata plus its extracted text.
func (s *Service) RecordUpload(ctx context.Context, fileName, storedPath, mimeType string, size int64, extractedText string, ttl time.Duration) (int64, error) {
	if fileName == "" || storedPath == "" {
		return 0, errors.New("file name and path are required")
	}
	now := time.Now().UTC()
	expires := now.Add(ttl)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (file_name, stored_path, mime_type, size, extracted_text, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fileName, storedPath, mimeType, size, extractedText, now, expires,
	)
	if err != nil {
		return 0, fmt.Errorf("record upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("upload id: %w", err)
	}
	return id, nil
}

// GetUploadsByIDs returns the requested uploads; every id must exist and
// be unexpired.
func (s *Service) GetUploadsByIDs(ctx context.Context, ids []int64) ([]*models.Upload, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, time.Now().UTC())
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, stored_path, mime_type, size, COALESCE(extracted_text, ''), created_at, expires_at
		 FROM uploads WHERE id IN (`+placeholders+`) AND expires_at > ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get uploads: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Upload, len(ids))
	for rows.Next() {
		u := new(models.Upload)
		if err := rows.Scan(&u.ID, &u.FileName, &u.StoredPath, &u.MimeType, &u.Size, &u.ExtractedText, &u.CreatedAt, &u.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*models.Upload, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("upload id %d not found: %w", id, sql.ErrNoRows)
		}
		ordered = append(ordered, u)
	}
	return ordered, nil
}

// UploadUsage returns the total size of unexpired uploads.
func (s *Service) UploadUsage(ctx context.Context) (int64, error) {
	var usage sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size) FROM uploads WHERE expires_at > ?`, time.Now().UTC(),
	).Scan(&usage)
	if err != nil {
		return 0, fmt.Errorf("upload usage: %w", err)
	}
	return usage.Int64, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
