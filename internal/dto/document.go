package dto

import "time"

// ArchivedDocument describes a stored certificate document and its download link.
type ArchivedDocument struct {
	CertificateID string    `json:"certificate_id"`
	Folio         string    `json:"folio"`
	Path          string    `json:"path"`
	DownloadURL   string    `json:"download_url"`
	ExpiresAt     time.Time `json:"expires_at"`
	SkippedAssets []string  `json:"skipped_assets,omitempty"`
}
