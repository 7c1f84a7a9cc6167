package models

import "time"

// FileAsset describes one stored upload. Exactly one blob named
// "<ID>.<ext>" backs each record in the storage directory.
type FileAsset struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size"`
	MimeType   string    `json:"mimetype"`
	UploaderID int64     `json:"uploader_id"`
	CreatedAt  time.Time `json:"created_at"`
}
