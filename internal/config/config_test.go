package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
	"github.com/codebuildervaibhav/speaker-splitter/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(config.EnvAssemblyAIKey, "env-key")

	cfg, err := config.Load(writeFile(t, "config.yaml", "paths:\n  input_dir: clips\n"), writeFile(t, ".env", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format() != audio.CanonicalFormat {
		t.Fatalf("format = %v, want %v", cfg.Format(), audio.CanonicalFormat)
	}
	if cfg.Paths.InputDir != "clips" || cfg.Paths.OutputRoot != "output" {
		t.Fatalf("unexpected paths %+v", cfg.Paths)
	}
	if cfg.Silence.ThresholdDB != -50 || cfg.Silence.MinSilenceMs != 2000 {
		t.Fatalf("unexpected silence defaults %+v", cfg.Silence)
	}
	if cfg.Separation.Model != "htdemucs" || cfg.SeparationTimeout() != 30*time.Minute {
		t.Fatalf("unexpected separation defaults %+v", cfg.Separation)
	}
	if cfg.AssemblyAI.APIKey != "env-key" {
		t.Fatalf("api key = %q", cfg.AssemblyAI.APIKey)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv(config.EnvAssemblyAIKey, "from-env")

	cfg, err := config.Load(writeFile(t, "config.yaml", "assemblyai:\n  api_key: from-file\n"), writeFile(t, ".env", ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AssemblyAI.APIKey != "from-env" {
		t.Fatalf("api key = %q, want from-env", cfg.AssemblyAI.APIKey)
	}
}

func TestEnvFileSuppliesSecret(t *testing.T) {
	t.Setenv(config.EnvAssemblyAIKey, "")
	os.Unsetenv(config.EnvAssemblyAIKey)

	cfg, err := config.Load("", writeFile(t, ".env", config.EnvAssemblyAIKey+"=dotenv-key\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AssemblyAI.APIKey != "dotenv-key" {
		t.Fatalf("api key = %q, want dotenv-key", cfg.AssemblyAI.APIKey)
	}
}

func TestValidationReportsKeys(t *testing.T) {
	t.Setenv(config.EnvAssemblyAIKey, "")

	yaml := `
audio:
  sample_width: 9
silence:
  threshold_db: 6
log:
  level: loud
`
	_, err := config.Load(writeFile(t, "config.yaml", yaml), writeFile(t, ".env", ""))
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, key := range []string{"audio.sample_width", "silence.threshold_db", "log.level", "assemblyai.api_key"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(config.EnvAssemblyAIKey, "k")
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	t.Setenv(config.EnvAssemblyAIKey, "k")
	if _, err := config.Load(writeFile(t, "config.yaml", "audio: [1, 2"), writeFile(t, ".env", "")); err == nil {
		t.Fatal("expected a parse error")
	}
}
