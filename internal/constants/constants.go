// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Upload constants
const (
	// MaxUploadSize is the maximum accepted upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// UploadFormField is the multipart field carrying the uploaded image
	UploadFormField = "file"

	// UploadURLPrefix is the URL path under which saved uploads are served
	UploadURLPrefix = "/static/uploads/"
)

// Flash message constants
const (
	// FlashNoFilePart is flashed when the request has no file part
	FlashNoFilePart = "No file part"

	// FlashNoSelectedFile is flashed when the file part has an empty filename
	FlashNoSelectedFile = "No selected file"

	// FlashTTL is how long undelivered flash messages are kept
	FlashTTL = time.Hour

	// FlashCleanupInterval is how often expired flash messages are purged
	FlashCleanupInterval = 10 * time.Minute
)

// Server constants
const (
	// RequestTimeout bounds a single request including embedding
	RequestTimeout = 2 * time.Minute

	// ShutdownTimeout is the grace period for in-flight requests on shutdown
	ShutdownTimeout = 30 * time.Second
)

// Database build constants
const (
	// DefaultBuildConcurrency is the default number of parallel embedding workers for db build
	DefaultBuildConcurrency = 4

	// MaxNameLength is the maximum label length accepted from a directory name
	MaxNameLength = 128
)
