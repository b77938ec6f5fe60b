package domain

import (
	"fmt"
	"strings"
	"time"
)

// MediaFile points at an object already placed in external storage.
type MediaFile struct {
	ID        int64     `json:"id"`
	SessionID *int64    `json:"session_id"`
	FileKey   string    `json:"file_key"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	Source    string    `json:"source"`
	Metadata  Document  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Normalize checks required fields and applies registration defaults.
func (m *MediaFile) Normalize() error {
	m.FileKey = strings.TrimSpace(m.FileKey)
	m.FileName = strings.TrimSpace(m.FileName)
	if m.FileKey == "" || m.FileName == "" {
		return fmt.Errorf("%w: fileKey and fileName are required", ErrValidation)
	}
	if strings.TrimSpace(m.FileType) == "" {
		m.FileType = "document"
	}
	if strings.TrimSpace(m.MimeType) == "" {
		m.MimeType = "application/octet-stream"
	}
	if strings.TrimSpace(m.Source) == "" {
		m.Source = "n8n"
	}
	return nil
}
