package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Upload      UploadConfig    `yaml:"upload"`
	ASR         ASRConfig       `yaml:"asr"`
	Keywords    KeywordsConfig  `yaml:"keywords"`
	Bus         BusConfig       `yaml:"bus"`
	Journal     JournalConfig   `yaml:"journal"`
}

type UploadConfig struct {
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ASRConfig struct {
	Mode       string `yaml:"mode"` // mock, exec, whisper
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Command    string `yaml:"command"`
	Device     string `yaml:"device"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	WarmOnBoot bool   `yaml:"warm_on_boot"`
}

type KeywordsConfig struct {
	Path string `yaml:"path"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRequests   int    `yaml:"max_requests"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		ServiceName: "echolot",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Upload: UploadConfig{
			MaxFileSizeMB:     25,
			AllowedExtensions: []string{".wav", ".mp3"},
		},
		ASR: ASRConfig{
			Mode:       "mock",
			Model:      "bofenghuang/whisper-medium-cv11-german",
			Device:     "cpu",
			Language:   "de",
			SampleRate: 16000,
			WarmOnBoot: true,
		},
		Keywords: KeywordsConfig{
			Path: "./keywords.json",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Enabled:       true,
			Path:          "./data/echolot-journal.db",
			RetentionDays: 30,
			MaxRequests:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "ECHOLOT_SERVICE_NAME")
	overrideString(&cfg.Environment, "ECHOLOT_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "ECHOLOT_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "ECHOLOT_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "ECHOLOT_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "ECHOLOT_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "ECHOLOT_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "ECHOLOT_TELEMETRY_PROMETHEUS_BIND")
	overrideInt(&cfg.Upload.MaxFileSizeMB, "ECHOLOT_UPLOAD_MAX_FILE_SIZE_MB")
	overrideStringSlice(&cfg.Upload.AllowedExtensions, "ECHOLOT_UPLOAD_ALLOWED_EXTENSIONS")
	overrideString(&cfg.ASR.Mode, "ECHOLOT_ASR_MODE")
	overrideString(&cfg.ASR.Model, "ECHOLOT_ASR_MODEL")
	overrideString(&cfg.ASR.ModelPath, "ECHOLOT_ASR_MODEL_PATH")
	overrideString(&cfg.ASR.Command, "ECHOLOT_ASR_COMMAND")
	overrideString(&cfg.ASR.Device, "ECHOLOT_ASR_DEVICE")
	overrideString(&cfg.ASR.Language, "ECHOLOT_ASR_LANGUAGE")
	overrideInt(&cfg.ASR.SampleRate, "ECHOLOT_ASR_SAMPLE_RATE")
	overrideBool(&cfg.ASR.WarmOnBoot, "ECHOLOT_ASR_WARM_ON_BOOT")
	overrideString(&cfg.Keywords.Path, "ECHOLOT_KEYWORDS_PATH")
	overrideBool(&cfg.Bus.Enabled, "ECHOLOT_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "ECHOLOT_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "ECHOLOT_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "ECHOLOT_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "ECHOLOT_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "ECHOLOT_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "ECHOLOT_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "ECHOLOT_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "ECHOLOT_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Journal.Enabled, "ECHOLOT_JOURNAL_ENABLED")
	overrideString(&cfg.Journal.Path, "ECHOLOT_JOURNAL_PATH")
	overrideInt(&cfg.Journal.RetentionDays, "ECHOLOT_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxRequests, "ECHOLOT_JOURNAL_MAX_REQUESTS")
	overrideBool(&cfg.Journal.VacuumOnStart, "ECHOLOT_JOURNAL_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// MaxFileSizeBytes converts the configured megabyte ceiling to bytes.
func (u UploadConfig) MaxFileSizeBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Upload.MaxFileSizeMB <= 0 {
		return errors.New("upload.max_file_size_mb must be positive")
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		return errors.New("upload.allowed_extensions must not be empty")
	}
	for _, ext := range cfg.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("upload.allowed_extensions entries must start with a dot, got %q", ext)
		}
	}
	switch cfg.ASR.Mode {
	case "mock", "exec", "whisper":
	default:
		return errors.New("asr.mode must be one of mock|exec|whisper")
	}
	if cfg.ASR.Mode == "exec" && cfg.ASR.Command == "" {
		return errors.New("asr.command must be set when mode=exec")
	}
	if cfg.ASR.Mode == "whisper" && cfg.ASR.ModelPath == "" {
		return errors.New("asr.model_path must be set when mode=whisper")
	}
	if cfg.ASR.SampleRate <= 0 {
		return errors.New("asr.sample_rate must be positive")
	}
	if cfg.Keywords.Path == "" {
		return errors.New("keywords.path must not be empty")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Journal.Enabled {
		if cfg.Journal.Path == "" {
			return errors.New("journal.path must not be empty when journal is enabled")
		}
		if cfg.Journal.RetentionDays < 0 {
			return errors.New("journal.retention_days must be >= 0")
		}
	}
	return nil
}
