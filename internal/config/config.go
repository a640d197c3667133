// Package config loads the splitter configuration from YAML, .env and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
)

// EnvAssemblyAIKey overrides assemblyai.api_key
const EnvAssemblyAIKey = "ASSEMBLYAI_API_KEY"

// Config represents the application configuration
type Config struct {
	Audio struct {
		Channels    int      `yaml:"channels" validate:"min=1,max=8"`
		SampleRate  int      `yaml:"sample_rate" validate:"min=1000"`
		SampleWidth int      `yaml:"sample_width" validate:"min=1,max=4"`
		Extensions  []string `yaml:"extensions" validate:"min=1,dive,startswith=."`
		FFmpeg      string   `yaml:"ffmpeg" validate:"required"`
	} `yaml:"audio"`

	Silence struct {
		ThresholdDB  float64 `yaml:"threshold_db" validate:"lte=0"`
		MinSilenceMs int64   `yaml:"min_silence_ms" validate:"min=1"`
	} `yaml:"silence"`

	Paths struct {
		InputDir   string `yaml:"input_dir" validate:"required"`
		TempDir    string `yaml:"temp_dir" validate:"required"`
		FinalAudio string `yaml:"final_audio" validate:"required"`
		OutputRoot string `yaml:"output_root" validate:"required"`
		Database   string `yaml:"database" validate:"required"`
	} `yaml:"paths"`

	Separation struct {
		Python         string   `yaml:"python" validate:"required"`
		Model          string   `yaml:"model" validate:"required"`
		ExtraArgs      []string `yaml:"extra_args"`
		TimeoutMinutes int      `yaml:"timeout_minutes" validate:"min=1"`
	} `yaml:"separation"`

	AssemblyAI struct {
		BaseURL             string `yaml:"base_url" validate:"required,url"`
		APIKey              string `yaml:"api_key" validate:"required"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds" validate:"min=1"`
		MaxWaitMinutes      int    `yaml:"max_wait_minutes" validate:"min=0"`
	} `yaml:"assemblyai"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file" validate:"required"`
		TokenFile       string `yaml:"token_file" validate:"required"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port" validate:"min=1,max=65535"`
	} `yaml:"server"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes" validate:"min=1"`
		MaxAgeHours     int `yaml:"max_age_hours" validate:"min=1"`
	} `yaml:"cleanup"`

	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=console json"`
	} `yaml:"log"`
}

// Default returns the configuration used when a key is not set
func Default() *Config {
	var c Config

	c.Audio.Channels = audio.CanonicalFormat.Channels
	c.Audio.SampleRate = audio.CanonicalFormat.SampleRate
	c.Audio.SampleWidth = audio.CanonicalFormat.SampleWidth
	c.Audio.Extensions = append([]string(nil), audio.DefaultExtensions...)
	c.Audio.FFmpeg = "ffmpeg"

	c.Silence.ThresholdDB = audio.DefaultSilenceThresholdDB
	c.Silence.MinSilenceMs = audio.DefaultMinSilenceMs

	c.Paths.InputDir = "input"
	c.Paths.TempDir = "temp"
	c.Paths.FinalAudio = "final/final_audio.mp3"
	c.Paths.OutputRoot = "output"
	c.Paths.Database = "splitter.db"

	c.Separation.Python = "python"
	c.Separation.Model = "htdemucs"
	c.Separation.TimeoutMinutes = 30

	c.AssemblyAI.BaseURL = "https://api.assemblyai.com"
	c.AssemblyAI.PollIntervalSeconds = 3
	c.AssemblyAI.MaxWaitMinutes = 60

	c.GoogleDrive.CredentialsFile = "credentials.json"
	c.GoogleDrive.TokenFile = "token.json"
	c.GoogleDrive.FolderName = "speaker-splitter"

	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080

	c.Cleanup.IntervalMinutes = 60
	c.Cleanup.MaxAgeHours = 24

	c.Log.Level = "info"
	c.Log.Format = "console"

	return &c
}

// Load reads the YAML file at path over the defaults, loads envFile (or
// ./.env when envFile is empty and the file exists), applies environment
// overrides and validates the result. An empty path skips the YAML file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %v", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %v", path, err)
		}
	}

	if err := loadEnv(envFile); err != nil {
		return nil, err
	}
	if key := os.Getenv(EnvAssemblyAIKey); key != "" {
		cfg.AssemblyAI.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(envFile string) error {
	if envFile == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %v", envFile, err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every section and reports all offending keys at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		msg := fmt.Sprintf("%s failed %q", key, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s failed %q (%s)", key, fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Format returns the canonical audio format
func (c *Config) Format() audio.Format {
	return audio.Format{
		Channels:    c.Audio.Channels,
		SampleRate:  c.Audio.SampleRate,
		SampleWidth: c.Audio.SampleWidth,
	}
}

// SeparationTimeout returns the demucs deadline
func (c *Config) SeparationTimeout() time.Duration {
	return time.Duration(c.Separation.TimeoutMinutes) * time.Minute
}

// PollInterval returns the initial AssemblyAI poll interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.AssemblyAI.PollIntervalSeconds) * time.Second
}

// MaxWait returns how long to wait for a transcript; zero means no limit
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.AssemblyAI.MaxWaitMinutes) * time.Minute
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
