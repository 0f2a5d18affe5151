package model

import "time"

// BackupEntry describes one snapshot artifact on disk. Checksum is the
// sha256 hex of the uncompressed store content recorded in the manifest
// sidecar; it is empty for artifacts missing their manifest.
type BackupEntry struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum,omitempty"`
	Compressed bool      `json:"compressed"`
	Corrupt    bool      `json:"corrupt"`
}
