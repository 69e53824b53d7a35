// Package config loads the metiers service configuration from config.yaml.
//
// Every field has a default (see Default). A missing file is not an error;
// the file only needs to carry what differs from the defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DataDir is the per-user directory holding the database, logs and config.
	DataDir = ".metiers"

	// ConfigFile is the default config file name inside DataDir.
	ConfigFile = "config.yaml"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "METIERS_CONFIG"
)

// Environment overrides applied after the file is read.
const (
	EnvLLMAPIKey        = "METIERS_LLM_API_KEY"
	EnvReferentialToken = "METIERS_REFERENTIAL_TOKEN"
	EnvDatabasePath     = "METIERS_DB_PATH"
	EnvReferentialURL   = "METIERS_REFERENTIAL_URL"
	EnvLLMBaseURL       = "METIERS_LLM_BASE_URL"
)

// Database driver names accepted in database.driver.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Config models config.yaml.
type Config struct {
	Version     int               `yaml:"version"`
	Database    DatabaseConfig    `yaml:"database"`
	Referential ReferentialConfig `yaml:"referential"`
	LLM         LLMConfig         `yaml:"llm"`
	Retry       RetryConfig       `yaml:"retry"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Salary      SalaryConfig      `yaml:"salary"`
	Agents      AgentsConfig      `yaml:"agents"`
	Log         LogConfig         `yaml:"log"`
}

// DatabaseConfig selects the sqlite driver and file.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ReferentialConfig describes the external occupation referential.
type ReferentialConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token,omitempty"`
	PageSize int           `yaml:"page_size"`
	MaxPages int           `yaml:"max_pages"`
	Timeout  time.Duration `yaml:"timeout"`
	// VolatileFields are excluded from content fingerprints.
	VolatileFields []string `yaml:"volatile_fields"`
}

// LLMConfig configures the generative-text collaborator.
type LLMConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RetryConfig bounds the retry loop around every external call.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// ScheduleConfig holds the wall-clock interval of each periodic job.
// A zero or negative interval disables the job.
type ScheduleConfig struct {
	SalaryCollection    time.Duration `yaml:"salary_collection"`
	TrendMonitoring     time.Duration `yaml:"trend_monitoring"`
	Correction          time.Duration `yaml:"correction"`
	ChangeDetection     time.Duration `yaml:"change_detection"`
	PendingReenrichment time.Duration `yaml:"pending_reenrichment"`
}

// SalaryConfig lists the salary data providers and their fan-out bound.
type SalaryConfig struct {
	MaxConcurrent int            `yaml:"max_concurrent"`
	Timeout       time.Duration  `yaml:"timeout"`
	Sources       []SalarySource `yaml:"sources"`
}

// SalarySource is one provider entry. Kind selects the payload schema.
type SalarySource struct {
	Name    string  `yaml:"name"`
	Kind    string  `yaml:"kind"`
	BaseURL string  `yaml:"base_url"`
	Weight  float64 `yaml:"weight"`
	APIKey  string  `yaml:"api_key,omitempty"`
}

// AgentsConfig holds knobs shared by the batch agents.
type AgentsConfig struct {
	BatchLimit int `yaml:"batch_limit"`
	// OutlookMaxAge is how old an outlook may get before trend monitoring refreshes it.
	OutlookMaxAge time.Duration `yaml:"outlook_max_age"`
}

// LogConfig controls the process log.
type LogConfig struct {
	File string `yaml:"file,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Driver: DriverCGO,
			Path:   "",
		},
		Referential: ReferentialConfig{
			BaseURL:        "https://api.francetravail.io/partenaire/rome-metiers/v1",
			PageSize:       150,
			MaxPages:       200,
			Timeout:        30 * time.Second,
			VolatileFields: []string{"updated_at", "fetched_at"},
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.anthropic.com/v1",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
			Timeout:   120 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
		Schedule: ScheduleConfig{
			SalaryCollection:    7 * 24 * time.Hour,
			TrendMonitoring:     24 * time.Hour,
			Correction:          30 * 24 * time.Hour,
			ChangeDetection:     7 * 24 * time.Hour,
			PendingReenrichment: 24 * time.Hour,
		},
		Salary: SalaryConfig{
			MaxConcurrent: 3,
			Timeout:       20 * time.Second,
			Sources: []SalarySource{
				{Name: "insee", Kind: "insee", BaseURL: "https://api.insee.fr/salaires/v1", Weight: 1.0},
				{Name: "apec", Kind: "apec", BaseURL: "https://api.apec.fr/remuneration/v1", Weight: 0.8},
				{Name: "jobboard", Kind: "generic", BaseURL: "https://api.example-jobs.fr/v1", Weight: 0.5},
			},
		},
		Agents: AgentsConfig{
			BatchLimit:    50,
			OutlookMaxAge: 90 * 24 * time.Hour,
		},
	}
}

// DefaultPath returns ~/.metiers/config.yaml, or METIERS_CONFIG when set.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DataDir, ConfigFile), nil
}

// Load reads the config file at path over the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverCGO, DriverPureGo:
	default:
		return fmt.Errorf("config: unknown database driver %q (want %q or %q)", c.Database.Driver, DriverCGO, DriverPureGo)
	}
	if c.Referential.PageSize <= 0 {
		return fmt.Errorf("config: referential.page_size must be > 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must be >= 0")
	}
	if c.Salary.MaxConcurrent <= 0 {
		return fmt.Errorf("config: salary.max_concurrent must be > 0")
	}
	seen := make(map[string]bool, len(c.Salary.Sources))
	for _, s := range c.Salary.Sources {
		if s.Name == "" {
			return fmt.Errorf("config: salary source without name")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate salary source %q", s.Name)
		}
		seen[s.Name] = true
		if s.Weight <= 0 || s.Weight > 1 {
			return fmt.Errorf("config: salary source %q weight %.2f outside (0,1]", s.Name, s.Weight)
		}
	}
	return nil
}

// SourceWeights returns the static trust weight of every configured source.
func (c *Config) SourceWeights() map[string]float64 {
	weights := make(map[string]float64, len(c.Salary.Sources))
	for _, s := range c.Salary.Sources {
		weights[s.Name] = s.Weight
	}
	return weights
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLLMAPIKey)); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLLMBaseURL)); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvReferentialToken)); v != "" {
		cfg.Referential.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvReferentialURL)); v != "" {
		cfg.Referential.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabasePath)); v != "" {
		cfg.Database.Path = v
	}
}

// resolvePaths fills in the database path next to the config file when unset.
func (c *Config) resolvePaths(dir string) error {
	if c.Database.Path == "" {
		if dir == "" || dir == "." {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, DataDir)
		}
		c.Database.Path = filepath.Join(dir, "metiers.db")
	}
	return nil
}
