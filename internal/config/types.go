package config

import "time"

// Config represents the complete hookgate configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	State    StateConfig    `yaml:"state"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Replay   ReplayConfig   `yaml:"replay"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// WebhooksConfig defines webhook listener settings.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint defines a single signed webhook endpoint.
type WebhookEndpoint struct {
	Path string `yaml:"path"`

	// SecretEnv names the environment variable holding the shared secret.
	SecretEnv string `yaml:"secret_env"`

	// Secret is an inline secret. Prefer SecretEnv.
	Secret string `yaml:"secret,omitempty"`

	SignatureHeader string        `yaml:"signature_header"`
	Tolerance       time.Duration `yaml:"tolerance"`
	MaxBodySize     string        `yaml:"max_body_size"`
}

// ReplayConfig controls rejection of repeated deliveries inside the
// tolerance window.
type ReplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Store   string `yaml:"store"` // "sqlite" or "memory"
}

// DispatchConfig controls the delivery worker.
type DispatchConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

const (
	DefaultSecretEnv       = "WEBHOOK_SECRET"
	DefaultWebhookPath     = "/webhook/elevenlabs"
	DefaultSignatureHeader = "ElevenLabs-Signature"
	DefaultTolerance       = 30 * time.Minute
	DefaultPort            = "3000"

	ReplayStoreSQLite = "sqlite"
	ReplayStoreMemory = "memory"
)

// Defaults returns a Config that matches a bare deployment configured only
// through WEBHOOK_SECRET and PORT.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "hookgate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/hookgate.db",
		},
		Webhooks: WebhooksConfig{
			Listen: ":" + DefaultPort,
		},
		Replay: ReplayConfig{
			Enabled: false,
			Store:   ReplayStoreSQLite,
		},
		Dispatch: DispatchConfig{
			PollInterval:  time.Second,
			PruneInterval: 5 * time.Minute,
		},
	}
}

// DefaultEndpoint returns the single endpoint used when none is configured.
func DefaultEndpoint() WebhookEndpoint {
	return WebhookEndpoint{
		Path:            DefaultWebhookPath,
		SecretEnv:       DefaultSecretEnv,
		SignatureHeader: DefaultSignatureHeader,
		Tolerance:       DefaultTolerance,
	}
}
