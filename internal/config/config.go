// internal/config/config.go
//
// This package handles configuration and the .workbench directory.
// Settings come from .workbench/config.yaml, WORKBENCH_* environment
// variables (a .env file is honored) and built-in defaults, in that order
// of precedence: env beats file beats default.

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/workbench"
)

const (
	// WorkbenchDir is the directory created in each project that uses the workbench
	WorkbenchDir = ".workbench"

	// EnvPrefix namespaces environment overrides, e.g. WORKBENCH_LOG_LEVEL.
	EnvPrefix = "WORKBENCH"

	configHeader = "# claims workbench configuration\n# Environment variables prefixed WORKBENCH_ override any value below.\n"
)

// RulesConfig holds the desk rules the controller enforces.
type RulesConfig struct {
	PolicyPrefix       string        `yaml:"policy_prefix" mapstructure:"policy_prefix"`
	HighValueThreshold int64         `yaml:"high_value_threshold" mapstructure:"high_value_threshold"`
	MinPhotos          int           `yaml:"min_photos" mapstructure:"min_photos"`
	UndoDepth          int           `yaml:"undo_depth" mapstructure:"undo_depth"`
	AssessmentTimeout  time.Duration `yaml:"assessment_timeout" mapstructure:"assessment_timeout"`
}

// AnthropicConfig configures the remote vision backend.
type AnthropicConfig struct {
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
}

// RetryConfig tunes retries against remote backends.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// InferenceConfig selects the assessment backend.
type InferenceConfig struct {
	Provider  string          `yaml:"provider" mapstructure:"provider"`
	MockDelay time.Duration   `yaml:"mock_delay" mapstructure:"mock_delay"`
	CacheSize int             `yaml:"cache_size" mapstructure:"cache_size"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
}

// LogConfig controls the diagnostic log file.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// UIConfig tunes the terminal interface.
type UIConfig struct {
	LogPanelLines int `yaml:"log_panel_lines" mapstructure:"log_panel_lines"`
}

// Config holds the runtime configuration for the workbench.
type Config struct {
	// ProjectDir is the directory the workbench was started from
	ProjectDir string `yaml:"-" mapstructure:"-"`

	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	UI        UIConfig        `yaml:"ui" mapstructure:"ui"`
}

// Default returns the built-in configuration.
func Default() Config {
	rules := workbench.DefaultRules()
	retry := inference.DefaultRetryConfig()
	return Config{
		Rules: RulesConfig{
			PolicyPrefix:       rules.PolicyPrefix,
			HighValueThreshold: rules.HighValueThreshold,
			MinPhotos:          rules.MinPhotos,
			UndoDepth:          rules.UndoDepth,
			AssessmentTimeout:  rules.AssessmentTimeout,
		},
		Inference: InferenceConfig{
			Provider:  inference.ProviderMock,
			MockDelay: inference.DefaultMockDelay,
			CacheSize: 64,
			Anthropic: AnthropicConfig{
				Model:       inference.DefaultAnthropicModel,
				MaxTokens:   2048,
				MinInterval: time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:    retry.MaxAttempts,
				InitialBackoff: retry.InitialBackoff,
				MaxBackoff:     retry.MaxBackoff,
			},
		},
		Log: LogConfig{Level: "info", Format: "json"},
		UI:  UIConfig{LogPanelLines: 8},
	}
}

// InitWorkbenchDir creates the .workbench directory structure and writes a
// default config file if none exists yet.
//
// .workbench/
// ├── config.yaml
// └── logs/       <- workbench.log (diagnostics) and journal.log (audit trail)
func InitWorkbenchDir(projectDir string) error {
	root := filepath.Join(projectDir, WorkbenchDir)
	if err := os.MkdirAll(filepath.Join(root, "logs"), 0o755); err != nil {
		return eris.Wrap(err, "config: create workbench dir")
	}
	path := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "config: stat %s", path)
	}
	def := Default()
	def.ProjectDir = projectDir
	return def.Save()
}

// Load reads configuration for projectDir from file and environment.
func Load(projectDir string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(projectDir, WorkbenchDir))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("inference.anthropic.api_key", EnvPrefix+"_INFERENCE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind api key")
	}

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.ProjectDir = projectDir
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, eris.Wrap(err, "config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("rules.policy_prefix", def.Rules.PolicyPrefix)
	v.SetDefault("rules.high_value_threshold", def.Rules.HighValueThreshold)
	v.SetDefault("rules.min_photos", def.Rules.MinPhotos)
	v.SetDefault("rules.undo_depth", def.Rules.UndoDepth)
	v.SetDefault("rules.assessment_timeout", def.Rules.AssessmentTimeout)
	v.SetDefault("inference.provider", def.Inference.Provider)
	v.SetDefault("inference.mock_delay", def.Inference.MockDelay)
	v.SetDefault("inference.cache_size", def.Inference.CacheSize)
	v.SetDefault("inference.anthropic.api_key", "")
	v.SetDefault("inference.anthropic.model", def.Inference.Anthropic.Model)
	v.SetDefault("inference.anthropic.max_tokens", def.Inference.Anthropic.MaxTokens)
	v.SetDefault("inference.anthropic.min_interval", def.Inference.Anthropic.MinInterval)
	v.SetDefault("inference.retry.max_attempts", def.Inference.Retry.MaxAttempts)
	v.SetDefault("inference.retry.initial_backoff", def.Inference.Retry.InitialBackoff)
	v.SetDefault("inference.retry.max_backoff", def.Inference.Retry.MaxBackoff)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("ui.log_panel_lines", def.UI.LogPanelLines)
}

func (c *Config) normalize() {
	c.Rules.PolicyPrefix = claims.NormalizePolicyNumber(c.Rules.PolicyPrefix)
	c.Inference.Provider = strings.ToLower(strings.TrimSpace(c.Inference.Provider))
	c.Inference.Anthropic.APIKey = strings.TrimSpace(c.Inference.Anthropic.APIKey)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

func (c *Config) validate() error {
	if c.Rules.PolicyPrefix == "" {
		return eris.New("rules.policy_prefix is required")
	}
	if c.Rules.HighValueThreshold <= 0 {
		return eris.New("rules.high_value_threshold must be positive")
	}
	if c.Rules.MinPhotos < 1 {
		return eris.New("rules.min_photos must be at least 1")
	}
	if c.Rules.UndoDepth < 0 {
		return eris.New("rules.undo_depth must be >= 0 (0 keeps every snapshot)")
	}
	switch c.Inference.Provider {
	case inference.ProviderMock:
	case inference.ProviderAnthropic:
		if c.Inference.Anthropic.APIKey == "" {
			return eris.New("inference.anthropic.api_key (or ANTHROPIC_API_KEY) is required for the anthropic provider")
		}
	default:
		return eris.Errorf("inference.provider must be 'mock' or 'anthropic', got %q", c.Inference.Provider)
	}
	if c.Inference.CacheSize < 0 {
		return eris.New("inference.cache_size must be >= 0")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return eris.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}
	return nil
}

// WorkbenchRules converts the rules section for the controller.
func (c *Config) WorkbenchRules() workbench.Rules {
	return workbench.Rules{
		PolicyPrefix:       c.Rules.PolicyPrefix,
		HighValueThreshold: c.Rules.HighValueThreshold,
		MinPhotos:          c.Rules.MinPhotos,
		UndoDepth:          c.Rules.UndoDepth,
		AssessmentTimeout:  c.Rules.AssessmentTimeout,
	}
}

// InferenceSettings converts the inference section for inference.Build.
func (c *Config) InferenceSettings() inference.Settings {
	retry := inference.DefaultRetryConfig()
	retry.MaxAttempts = c.Inference.Retry.MaxAttempts
	retry.InitialBackoff = c.Inference.Retry.InitialBackoff
	retry.MaxBackoff = c.Inference.Retry.MaxBackoff
	return inference.Settings{
		Provider:  c.Inference.Provider,
		MockDelay: c.Inference.MockDelay,
		CacheSize: c.Inference.CacheSize,
		Anthropic: inference.AnthropicConfig{
			APIKey:      c.Inference.Anthropic.APIKey,
			Model:       c.Inference.Anthropic.Model,
			MaxTokens:   c.Inference.Anthropic.MaxTokens,
			MinInterval: c.Inference.Anthropic.MinInterval,
		},
		Retry: retry,
	}
}

// Root returns ProjectDir/.workbench
func (c *Config) Root() string {
	return filepath.Join(c.ProjectDir, WorkbenchDir)
}

// ConfigPath returns the on-disk location for the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Root(), "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.Root(), "logs")
}

// LogPath returns the diagnostic log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "workbench.log")
}

// JournalPath returns the operator journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// Save writes the configuration to ConfigPath. The API key is never persisted.
func (c *Config) Save() error {
	if c == nil {
		return eris.New("config: nil receiver")
	}
	out := *c
	out.Inference.Anthropic.APIKey = ""
	data, err := yaml.Marshal(out)
	if err != nil {
		return eris.Wrap(err, "config: encode config")
	}
	if err := os.MkdirAll(c.Root(), 0o755); err != nil {
		return eris.Wrap(err, "config: ensure workbench dir")
	}
	if err := os.WriteFile(c.ConfigPath(), append([]byte(configHeader), data...), 0o644); err != nil {
		return eris.Wrap(err, "config: write config")
	}
	return nil
}
