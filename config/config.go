package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"

	OnMissingFatal = "fatal"
	OnMissingWarn  = "warn"

	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Artifact keys. UpdatedMainTF names the compute revision of main.tf, which
// has its own policy independent of the first main.tf.
const (
	BackendTF     = "backend-bootstrap/backend.tf"
	MainTF        = "main.tf"
	UpdatedMainTF = "main.tf#update"
	VariablesTF   = "variables.tf"
	IndexJS       = "src/index.js"
	PackageJSON   = "src/package.json"
	WorkflowYML   = ".github/workflows/deploy.yml"
	GitIgnore     = ".gitignore"
)

// ArtifactRule decides what happens when an expected block is missing or invalid.
type ArtifactRule struct {
	Path      string `mapstructure:"path"`
	OnMissing string `mapstructure:"on_missing"`
}

type Config struct {
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	ModelName   string  `mapstructure:"model_name"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TellmURL    string  `mapstructure:"tellm_url"`

	ProjectName     string `mapstructure:"project_name"`
	AWSRegion       string `mapstructure:"aws_region"`
	LambdaRuntime   string `mapstructure:"lambda_runtime"`
	FunctionMessage string `mapstructure:"function_message"`

	RemoteURL     string `mapstructure:"remote_url"`
	RemoteName    string `mapstructure:"remote_name"`
	Branch        string `mapstructure:"branch"`
	CommitMessage string `mapstructure:"commit_message"`

	ProjectDir      string `mapstructure:"project_dir"`
	TerraformBin    string `mapstructure:"terraform_bin"`
	GitBin          string `mapstructure:"git_bin"`
	SkipBootstrap   bool   `mapstructure:"skip_bootstrap"`
	SkipPublish     bool   `mapstructure:"skip_publish"`
	ValidateContent bool   `mapstructure:"validate"`

	Artifacts []ArtifactRule `mapstructure:"artifacts"`
}

var defaults = map[string]interface{}{
	"provider":         ProviderGemini,
	"api_key":          "",
	"model_name":       "",
	"base_url":         "",
	"temperature":      0.2,
	"max_tokens":       8192,
	"tellm_url":        "",
	"project_name":     "pankaj-devops-lambda",
	"aws_region":       "ap-south-1",
	"lambda_runtime":   "nodejs18.x",
	"function_message": "My name is pankaj",
	"remote_url":       "",
	"remote_name":      "origin",
	"branch":           "main",
	"commit_message":   "AI-generated Lambda deployment infra",
	"project_dir":      ".",
	"terraform_bin":    "terraform",
	"git_bin":          "git",
	"skip_bootstrap":   false,
	"skip_publish":     false,
	"validate":         true,
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.applyProviderDefaults()
	return cfg
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// LoadConfig builds the run configuration from .env, an optional YAML file and
// LAMBDAFORGE_* environment variables. An empty configPath searches for
// lambdaforge.yaml in the working directory and in $HOME/.lambdaforge.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LAMBDAFORGE")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("lambdaforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lambdaforge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(CredentialEnv(cfg.Provider))
	}
	cfg.applyProviderDefaults()
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// CredentialEnv names the environment variable holding the provider's API key.
func CredentialEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

func (c *Config) applyProviderDefaults() {
	if c.ModelName == "" {
		switch c.Provider {
		case ProviderOpenAI:
			c.ModelName = "gpt-4o"
		case ProviderOpenRouter:
			c.ModelName = "google/gemini-pro-1.5"
		case ProviderAnthropic:
			c.ModelName = "claude-3-5-sonnet-20240620"
		default:
			c.ModelName = "gemini-1.5-pro"
		}
	}
	if c.Provider == ProviderOpenRouter && c.BaseURL == "" {
		c.BaseURL = OpenRouterBaseURL
	}
}

// Validate reports configuration that makes a run impossible. A missing
// credential is always fatal.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s not set: add it to your environment or .env file", CredentialEnv(c.Provider))
	}
	if c.ProjectName == "" {
		return errors.New("project_name must not be empty")
	}
	if !c.SkipPublish && c.RemoteURL == "" {
		return errors.New("remote_url must be set unless publishing is skipped")
	}
	for _, r := range c.Artifacts {
		if r.Path == "" {
			return errors.New("artifact rule without a path")
		}
		if r.OnMissing != OnMissingFatal && r.OnMissing != OnMissingWarn {
			return fmt.Errorf("artifact %s: on_missing must be %q or %q, got %q", r.Path, OnMissingFatal, OnMissingWarn, r.OnMissing)
		}
	}
	return nil
}

// MaskedAPIKey shows the first five characters of the credential.
func (c *Config) MaskedAPIKey() string {
	if len(c.APIKey) <= 5 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return c.APIKey[:5] + "*****"
}

// DefaultArtifactRules lists which artifacts stop the run when absent.
func DefaultArtifactRules() []ArtifactRule {
	return []ArtifactRule{
		{Path: BackendTF, OnMissing: OnMissingFatal},
		{Path: MainTF, OnMissing: OnMissingFatal},
		{Path: VariablesTF, OnMissing: OnMissingFatal},
		{Path: WorkflowYML, OnMissing: OnMissingFatal},
		{Path: UpdatedMainTF, OnMissing: OnMissingWarn},
		{Path: IndexJS, OnMissing: OnMissingWarn},
		{Path: PackageJSON, OnMissing: OnMissingWarn},
	}
}

// IsFatal reports whether a missing or invalid block for key ends the run.
// Configured rules take precedence over the defaults; unknown keys are fatal.
func (c *Config) IsFatal(key string) bool {
	for _, r := range c.Artifacts {
		if r.Path == key {
			return r.OnMissing != OnMissingWarn
		}
	}
	for _, r := range DefaultArtifactRules() {
		if r.Path == key {
			return r.OnMissing == OnMissingFatal
		}
	}
	return true
}

// Names are the per-run unique backend resource names.
type Names struct {
	Suffix      string
	StateBucket string
	LockTable   string
}

// NewRunNames derives fresh state bucket and lock table names for project.
func NewRunNames(project string) Names {
	return NamesWithSuffix(project, uuid.New().String()[:8])
}

func NamesWithSuffix(project, suffix string) Names {
	return Names{
		Suffix:      suffix,
		StateBucket: fmt.Sprintf("%s-tfstate-%s", project, suffix),
		LockTable:   fmt.Sprintf("%s-tf-lock-%s", project, suffix),
	}
}
