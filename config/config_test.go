package config

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentials(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "LAMBDAFORGE_API_KEY", "LAMBDAFORGE_PROVIDER"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "lambdaforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.ModelName)
	assert.Equal(t, "pankaj-devops-lambda", cfg.ProjectName)
	assert.Equal(t, "ap-south-1", cfg.AWSRegion)
	assert.Equal(t, "nodejs18.x", cfg.LambdaRuntime)
	assert.Equal(t, "origin", cfg.RemoteName)
	assert.Equal(t, "main", cfg.Branch)
	assert.Equal(t, "AI-generated Lambda deployment infra", cfg.CommitMessage)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-6)
	assert.True(t, cfg.ValidateContent)
}

func TestLoadConfig_FileAndCredentialEnv(t *testing.T) {
	clearCredentials(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-abcdefgh")

	path := writeConfig(t, `
provider: openrouter
project_name: demo
remote_url: https://example.com/acme/infra.git
artifacts:
  - path: src/index.js
    on_missing: fatal
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, cfg.Provider)
	assert.Equal(t, "sk-or-abcdefgh", cfg.APIKey)
	assert.Equal(t, OpenRouterBaseURL, cfg.BaseURL)
	assert.Equal(t, "demo", cfg.ProjectName)
	assert.Equal(t, "ap-south-1", cfg.AWSRegion)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsFatal(IndexJS))
	assert.False(t, cfg.IsFatal(PackageJSON))
	assert.True(t, cfg.IsFatal(MainTF))
	assert.False(t, cfg.IsFatal(UpdatedMainTF))
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearCredentials(t)
	t.Setenv("LAMBDAFORGE_AWS_REGION", "eu-west-1")

	cfg, err := LoadConfig(writeConfig(t, "aws_region: us-east-1\n"))
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RemoteURL = "https://example.com/r.git"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.APIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.RemoteURL = ""
	assert.Error(t, cfg.Validate())
	cfg.SkipPublish = true
	assert.NoError(t, cfg.Validate())

	cfg.Artifacts = []ArtifactRule{{Path: MainTF, OnMissing: "ignore"}}
	assert.Error(t, cfg.Validate())

	cfg.Artifacts = nil
	cfg.Provider = "cohere"
	assert.Error(t, cfg.Validate())
}

func TestMaskedAPIKey(t *testing.T) {
	cfg := &Config{APIKey: "AIzaSyExample"}
	assert.Equal(t, "AIzaS*****", cfg.MaskedAPIKey())

	cfg.APIKey = "abc"
	assert.Equal(t, "***", cfg.MaskedAPIKey())
}

func TestNewRunNames(t *testing.T) {
	n := NewRunNames("pankaj-devops-lambda")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), n.Suffix)
	assert.Equal(t, "pankaj-devops-lambda-tfstate-"+n.Suffix, n.StateBucket)
	assert.Equal(t, "pankaj-devops-lambda-tf-lock-"+n.Suffix, n.LockTable)

	assert.NotEqual(t, n.Suffix, NewRunNames("pankaj-devops-lambda").Suffix)
}

func TestIsFatal_UnknownKey(t *testing.T) {
	assert.True(t, DefaultConfig().IsFatal("other.tf"))
}
