package archive

import "strings"

// NewArchive creates an ObjectArchive instance based on the configuration.
// Parameters:
//   - cfg: archive configuration including endpoint, credentials, and bucket.
// Returns:
//   - ObjectArchive: initialized archive client implementation.
//   - error: non-nil if the archive client cannot be created.
func NewArchive(cfg *S3Config) (ObjectArchive, error) {
	// Auto-detect backend type if not specified
	if cfg.Type == "" {
		cfg.Type = detectArchiveType(cfg.Endpoint)
	}

	return NewS3Archive(cfg)
}

// detectArchiveType attempts to detect the backend type from the endpoint
func detectArchiveType(endpoint string) ArchiveType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return ArchiveTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return ArchiveTypeS3
	default:
		return ArchiveTypeS3Compatible
	}
}
