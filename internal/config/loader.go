package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

//go:embed defaults.yaml
var builtinDefaults []byte

// FileName is the config file name inside a .cadence directory
const FileName = "config.yaml"

// envOverrides are read with envconfig using the CADENCE prefix
type envOverrides struct {
	Workflow        string        `envconfig:"WORKFLOW"`
	Provider        string        `envconfig:"PROVIDER"`
	Model           string        `envconfig:"MODEL"`
	ReviewerTimeout time.Duration `envconfig:"REVIEWER_TIMEOUT"`
	Mode            string        `envconfig:"MODE"`
}

// Loader resolves the layered configuration
type Loader struct {
	// projectDir holds .cadence/config.yaml
	projectDir string

	// userDir holds the user-level config.yaml (~/.cadence)
	userDir string

	// skipEnv disables CADENCE_* overrides, for tests
	skipEnv bool
}

// NewLoader creates a loader for the project in projectDir
func NewLoader(projectDir string) *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		projectDir: projectDir,
		userDir:    filepath.Join(homeDir, ".cadence"),
	}
}

// SetUserDir overrides the user config directory
func (l *Loader) SetUserDir(dir string) {
	l.userDir = dir
}

// Load merges every layer and validates the result.
//
// Precedence, lowest to highest:
// 1. Built-in defaults (embedded)
// 2. User file (~/.cadence/config.yaml)
// 3. Project file (.cadence/config.yaml)
// 4. CADENCE_* environment variables
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(builtinDefaults, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse built-in config: %w", err)
	}

	for _, path := range []string{
		filepath.Join(l.userDir, FileName),
		filepath.Join(l.projectDir, ".cadence", FileName),
	} {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.Root == "" || cfg.Root == "." {
		cfg.Root = l.projectDir
	}

	if !l.skipEnv {
		if err := applyEnv(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlayFile decodes path over cfg. Scalars in the file replace, maps
// merge key by key, lists replace. A missing file is not an error.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, "read config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("cadence", &env); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid CADENCE_* environment", err)
	}

	if env.Workflow != "" {
		cfg.Workflow = env.Workflow
	}
	if env.Provider != "" {
		cfg.Provider = env.Provider
	}
	if env.Model != "" {
		cfg.Model = env.Model
	}
	if env.ReviewerTimeout > 0 {
		cfg.Reviewer.Timeout = env.ReviewerTimeout
	}
	if env.Mode != "" {
		cfg.Validation.Mode = env.Mode
	}
	return nil
}

// Default returns the built-in configuration rooted at dir, without reading
// any file or environment variable.
func Default(dir string) *Config {
	var cfg Config
	// The embedded defaults are covered by TestDefaultIsValid.
	_ = yaml.Unmarshal(builtinDefaults, &cfg)
	cfg.Root = dir
	return &cfg
}
