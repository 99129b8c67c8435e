package reports

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultUploadTTL             = 24 * time.Hour
	DefaultUploadCleanupInterval = time.Hour
)

// StartUploadCleaner periodically removes expired uploads (file and row).
func (s *Service) StartUploadCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultUploadCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpiredUploads(); err != nil {
				log.Printf("cleanup uploads error: %v", err)
			}
		}
	}
}

func (s *Service) cleanupExpiredUploads() error {
	rows, err := s.db.Query(`
		SELECT id, stored_path FROM uploads
		WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	type uploadRow struct {
		id   int64
		path string
	}
	var expired []uploadRow
	for rows.Next() {
		var ur uploadRow
		if err := rows.Scan(&ur.id, &ur.path); err != nil {
			return err
		}
		expired = append(expired, ur)
	}

	for _, u := range expired {
		if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove upload %s failed: %v", u.path, err)
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM uploads WHERE id = ?`, u.id); err != nil {
			log.Printf("delete upload record %d failed: %v", u.id, err)
		}

		// prune empty directories
		_ = os.Remove(filepath.Dir(u.path))
	}
	return nil
}
