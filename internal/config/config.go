package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Web      WebConfig
	Model    ModelConfig
	Database DatabaseConfig
	Log      LogConfig
}

type WebConfig struct {
	Host          string
	Port          int
	SessionSecret string // signs flash cookies (defaults to a dev secret)
	UploadDir     string // where uploaded images are stored and served from
	// AllowedOrigins receive CORS headers on the JSON API; localhost is always allowed
	AllowedOrigins []string
}

// Model backends understood by fingerprint.NewEmbedder.
const (
	BackendTFServing = "tfserving"
	BackendFace      = "face"
	BackendImage     = "image"
)

type ModelConfig struct {
	Backend   string // tfserving, face or image
	URL       string // base URL of the model server
	Name      string // TF Serving model name
	InputSize int    // square input edge in pixels (defaults to 160)
	Timeout   time.Duration
}

// Matcher strategies.
const (
	MatcherLinear = "linear"
	MatcherHNSW   = "hnsw"
)

type DatabaseConfig struct {
	SnapshotPath  string // reference snapshot (.gob, .json, .yaml, .sqlite)
	URL           string // PostgreSQL connection URL, used when SnapshotPath is empty
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	Matcher       string // linear (exact) or hnsw (approximate)
	HNSWIndexPath string // Path to persist the HNSW graph (optional, rebuilt on startup when empty)
}

type LogConfig struct {
	Level  string // logrus level name
	Format string // text or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString returns the trimmed value of key or defaultVal when unset or blank.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			UploadDir:      envString("UPLOAD_DIR", "static/uploads"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Model: ModelConfig{
			Backend:   strings.ToLower(envString("MODEL_BACKEND", BackendTFServing)),
			URL:       envString("MODEL_URL", "http://localhost:8501"),
			Name:      envString("MODEL_NAME", "embedding_model"),
			InputSize: envInt("MODEL_INPUT_SIZE", 160),
			Timeout:   time.Duration(envInt("MODEL_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			SnapshotPath:  snapshotPath(),
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			Matcher:       strings.ToLower(envString("MATCHER", MatcherLinear)),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: strings.ToLower(envString("LOG_FORMAT", "text")),
		},
	}
}

// snapshotPath defaults to the bundled gob snapshot unless a PostgreSQL source
// is configured; SNAPSHOT_PATH always wins when set.
func snapshotPath() string {
	if p, ok := os.LookupEnv("SNAPSHOT_PATH"); ok {
		return strings.TrimSpace(p)
	}
	if os.Getenv("DATABASE_URL") != "" {
		return ""
	}
	return "model/database.gob"
}

// UsePostgres reports whether the reference database comes from PostgreSQL.
func (c *DatabaseConfig) UsePostgres() bool {
	return c.SnapshotPath == "" && c.URL != ""
}
