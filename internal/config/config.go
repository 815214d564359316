package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all ScribeCast environment variables.
const EnvPrefix = "SCRIBECAST_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	EngineURL         string `yaml:"engine_url"`
	EngineModel       string `yaml:"engine_model"`
	EngineLanguage    string `yaml:"engine_language"`
	EngineSampleRate  int    `yaml:"engine_sample_rate"`
	EngineMinSpeakers int    `yaml:"engine_min_speakers"`
	EngineMaxSpeakers int    `yaml:"engine_max_speakers"`

	PauseSplit bool    `yaml:"pause_split"`
	PauseGap   float64 `yaml:"pause_gap"`

	AnalysisModel       string  `yaml:"analysis_model"`
	AnalysisMinNewChars int     `yaml:"analysis_min_new_chars"`
	AnalysisTemperature float32 `yaml:"analysis_temperature"`
	AnalysisMaxTokens   int     `yaml:"analysis_max_tokens"`
	AnalysisTimeout     string  `yaml:"analysis_timeout"`

	KafkaBrokers            []string `yaml:"kafka_brokers"`
	KafkaTranscriptionTopic string   `yaml:"kafka_transcription_topic"`
	KafkaAnalysisTopic      string   `yaml:"kafka_analysis_topic"`

	IdleTimeout  string `yaml:"idle_timeout"`
	ReapInterval string `yaml:"reap_interval"`

	// Secrets — env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:              ":8080",
		EngineURL:               "wss://api.deepgram.com/v1/listen",
		EngineModel:             "nova-2",
		EngineLanguage:          "en-US",
		EngineSampleRate:        16000,
		EngineMinSpeakers:       1,
		EngineMaxSpeakers:       4,
		PauseGap:                0.8,
		AnalysisModel:           "openai/gpt-4o-mini",
		AnalysisMinNewChars:     10,
		AnalysisTemperature:     0.7,
		AnalysisMaxTokens:       250,
		AnalysisTimeout:         "30s",
		KafkaTranscriptionTopic: "transcription-events",
		KafkaAnalysisTopic:      "analysis-events",
		IdleTimeout:             "5m",
		ReapInterval:            "60s",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedAnalysisTimeout returns AnalysisTimeout as a time.Duration,
// falling back to 30s if the value is invalid.
func (c *Config) ParsedAnalysisTimeout() time.Duration {
	d, err := time.ParseDuration(c.AnalysisTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ParsedIdleTimeout returns IdleTimeout as a time.Duration, falling
// back to 5m if the value is invalid.
func (c *Config) ParsedIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.IdleTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// ParsedReapInterval returns ReapInterval as a time.Duration, falling
// back to 60s if the value is invalid.
func (c *Config) ParsedReapInterval() time.Duration {
	d, err := time.ParseDuration(c.ReapInterval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// AnalysisAPIKey returns the secret for the configured analysis model's
// provider, or "" when the provider is unknown or its key is unset.
func (c *Config) AnalysisAPIKey() string {
	switch analysisProvider(c.AnalysisModel) {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

func analysisProvider(model string) string {
	provider, _, _ := strings.Cut(model, "/")
	return provider
}

var providerNames = map[string]string{
	"openai":    "OpenAI",
	"anthropic": "Anthropic",
	"gemini":    "Gemini",
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "ENGINE_URL"); v != "" {
		cfg.EngineURL = v
	}
	if v := os.Getenv(EnvPrefix + "ENGINE_MODEL"); v != "" {
		cfg.EngineModel = v
	}
	if v := os.Getenv(EnvPrefix + "ENGINE_LANGUAGE"); v != "" {
		cfg.EngineLanguage = v
	}
	if v := os.Getenv(EnvPrefix + "ENGINE_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.EngineSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "ENGINE_MIN_SPEAKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.EngineMinSpeakers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ENGINE_MAX_SPEAKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.EngineMaxSpeakers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "PAUSE_SPLIT"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.PauseSplit = b
		}
	}
	if v := os.Getenv(EnvPrefix + "PAUSE_GAP"); v != "" {
		if gap, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && gap > 0 {
			cfg.PauseGap = gap
		}
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_MODEL"); v != "" {
		cfg.AnalysisModel = v
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_MIN_NEW_CHARS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.AnalysisMinNewChars = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_TEMPERATURE"); v != "" {
		if temp, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil && temp >= 0 {
			cfg.AnalysisTemperature = float32(temp)
		}
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.AnalysisMaxTokens = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_TIMEOUT"); v != "" {
		cfg.AnalysisTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = parseBrokers(v)
	}
	if v := os.Getenv(EnvPrefix + "KAFKA_TRANSCRIPTION_TOPIC"); v != "" {
		cfg.KafkaTranscriptionTopic = v
	}
	if v := os.Getenv(EnvPrefix + "KAFKA_ANALYSIS_TOPIC"); v != "" {
		cfg.KafkaAnalysisTopic = v
	}
	if v := os.Getenv(EnvPrefix + "IDLE_TIMEOUT"); v != "" {
		cfg.IdleTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "REAP_INTERVAL"); v != "" {
		cfg.ReapInterval = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured — sessions cannot reach the transcription engine. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if provider := analysisProvider(cfg.AnalysisModel); cfg.AnalysisAPIKey() == "" {
		if name, ok := providerNames[provider]; ok {
			warnings = append(warnings, fmt.Sprintf("%s API key not configured — live analysis is disabled. Set %s%s_API_KEY.",
				name, EnvPrefix, strings.ToUpper(provider)))
		} else {
			warnings = append(warnings, fmt.Sprintf("Unknown analysis model provider %q — live analysis is disabled.", provider))
		}
	}
	if cfg.EngineMinSpeakers > cfg.EngineMaxSpeakers {
		warnings = append(warnings, fmt.Sprintf("engine_min_speakers %d exceeds engine_max_speakers %d — speaker hints will be ignored.",
			cfg.EngineMinSpeakers, cfg.EngineMaxSpeakers))
	}
	if _, err := time.ParseDuration(cfg.AnalysisTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid analysis_timeout %q — using default 30s.", cfg.AnalysisTimeout))
	}
	if _, err := time.ParseDuration(cfg.IdleTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid idle_timeout %q — using default 5m.", cfg.IdleTimeout))
	}
	if _, err := time.ParseDuration(cfg.ReapInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid reap_interval %q — using default 60s.", cfg.ReapInterval))
	}

	return warnings
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
