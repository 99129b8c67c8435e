package models

import "time"

// Upload represents a user-uploaded document whose text has been extracted.
type Upload struct {
	ID            int64     `json:"id"`
	FileName      string    `json:"file_name"`
	StoredPath    string    `json:"stored_path"`
	MimeType      string    `json:"mime_type"`
	Size          int64     `json:"size"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
