// ABOUTME: courserun configuration management with backend selection
// ABOUTME: Handles the JSON settings file, COURSERUN_* overrides, and the storage factory

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/harper/courserun/internal/checkpoint"
	"github.com/harper/courserun/internal/fileutil"
	"github.com/harper/courserun/internal/route"
	"github.com/harper/courserun/internal/sampler"
	"github.com/harper/courserun/internal/screenshot"
	"github.com/harper/courserun/internal/storage"
	"github.com/harper/courserun/internal/verify"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COURSERUN_"

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

const (
	defaultDBFilename = "courserun.db"
	badgerDirname     = "badger"
)

// Config stores courserun configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty" env:"BACKEND"`

	// DataDir is the root directory for data storage.
	// SQLite puts courserun.db here; Badger uses the badger/ subdirectory.
	// Supports ~ expansion. Defaults to ~/.local/share/courserun.
	DataDir string `json:"data_dir,omitempty" env:"DATA_DIR"`

	// CourseDir holds course YAML and GPX files. Defaults to <DataDir>/courses.
	CourseDir string `json:"course_dir,omitempty" env:"COURSE_DIR"`

	// Tesseract is the OCR binary used for screenshot verification.
	Tesseract string `json:"tesseract,omitempty" env:"TESSERACT"`

	OffCourseThreshold float64 `json:"off_course_threshold,omitempty" env:"OFF_COURSE_THRESHOLD"`
	CheckpointRadius   float64 `json:"checkpoint_radius,omitempty" env:"CHECKPOINT_RADIUS"`
	FinishRadius       float64 `json:"finish_radius,omitempty" env:"FINISH_RADIUS"`

	// RecoverHours is how long an interrupted session stays recoverable.
	RecoverHours float64 `json:"recover_hours,omitempty" env:"RECOVER_HOURS"`

	Completion   route.CompletionCriteria `json:"completion" envPrefix:"COMPLETION_"`
	Verification verify.Config            `json:"verification" envPrefix:"VERIFY_"`
	Screenshot   screenshot.Config        `json:"screenshot" envPrefix:"SCREENSHOT_"`
}

// Default returns a config with every tunable at its stock value.
func Default() *Config {
	return &Config{
		Backend:            BackendSQLite,
		OffCourseThreshold: route.DefaultOffCourseThreshold,
		CheckpointRadius:   checkpoint.DefaultRadius,
		FinishRadius:       checkpoint.DefaultFinishRadius,
		RecoverHours:       sampler.DefaultStaleAfter.Hours(),
		Completion:         route.DefaultCompletionCriteria(),
		Verification:       verify.DefaultConfig(),
		Screenshot:         screenshot.DefaultConfig(),
	}
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DefaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetCourseDir returns the course directory with ~ expanded.
func (c *Config) GetCourseDir() string {
	if c.CourseDir == "" {
		return filepath.Join(c.GetDataDir(), "courses")
	}
	return ExpandPath(c.CourseDir)
}

// GetTesseract returns the OCR binary name.
func (c *Config) GetTesseract() string {
	if c.Tesseract == "" {
		return "tesseract"
	}
	return c.Tesseract
}

// Validate checks the backend name and every tunable.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if c.OffCourseThreshold < 0 || c.CheckpointRadius < 0 || c.FinishRadius < 0 {
		return fmt.Errorf("distances must not be negative")
	}
	if c.RecoverHours < 0 {
		return fmt.Errorf("recover_hours must not be negative")
	}
	if c.Completion.MinTotalTime > c.Completion.MaxTotalTime {
		return fmt.Errorf("completion: min_total_time exceeds max_total_time")
	}
	if err := c.Verification.Validate(); err != nil {
		return fmt.Errorf("verification: %w", err)
	}
	if c.Screenshot.MinSignatures < 1 {
		return fmt.Errorf("screenshot: min_signatures must be at least 1")
	}
	return nil
}

// RouteOptions returns route indexing options.
func (c *Config) RouteOptions() []route.Option {
	return []route.Option{route.WithOffCourseThreshold(c.OffCourseThreshold)}
}

// CheckpointOptions returns checkpoint engine options.
func (c *Config) CheckpointOptions() []checkpoint.Option {
	return []checkpoint.Option{
		checkpoint.WithRadius(c.CheckpointRadius),
		checkpoint.WithFinishRadius(c.FinishRadius),
	}
}

// SamplerOptions returns sampler options derived from the config.
func (c *Config) SamplerOptions() []sampler.Option {
	return []sampler.Option{
		sampler.WithStaleAfter(time.Duration(c.RecoverHours * float64(time.Hour))),
	}
}

// defaultFirstRunConfig returns the appropriate default config for first-time runs.
// If existing Badger data is found, it preserves Badger as the backend.
func defaultFirstRunConfig() *Config {
	cfg := Default()
	nonEmpty, err := storage.IsDirNonEmpty(filepath.Join(storage.DefaultDataDir(), badgerDirname))
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "warning: could not check for existing data: %v\n", err)
	case nonEmpty:
		cfg.Backend = BackendBadger
	}
	return cfg
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// StoragePath returns where the configured backend keeps its data.
func (c *Config) StoragePath(backend string) string {
	if backend == BackendBadger {
		return filepath.Join(c.GetDataDir(), badgerDirname)
	}
	return filepath.Join(c.GetDataDir(), defaultDBFilename)
}

// OpenStorage creates a Repository implementation based on the configured backend.
func (c *Config) OpenStorage() (storage.Repository, error) {
	return c.OpenBackend(c.GetBackend())
}

// OpenBackend opens a specific backend under the data directory.
func (c *Config) OpenBackend(backend string) (storage.Repository, error) {
	switch backend {
	case BackendSQLite:
		return storage.NewSQLiteDB(c.StoragePath(backend))
	case BackendBadger:
		return storage.NewBadgerDB(c.StoragePath(backend))
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "courserun", "config.json")
}

// Load reads config from disk, then applies COURSERUN_* environment overrides.
// Fields missing from the file keep their defaults.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg := defaultFirstRunConfig()
		if saveErr := cfg.Save(); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", saveErr)
		}
		return cfg, applyEnv(cfg)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, applyEnv(cfg)
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return cfg.Validate()
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.AtomicWrite(path, data)
}
