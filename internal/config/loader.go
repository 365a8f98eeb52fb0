package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrMissingSecret means an endpoint has no usable shared secret. The service
// must not start in that state.
var ErrMissingSecret = errors.New("webhook secret is not configured")

// Load reads configuration from configPath. An empty path loads Defaults with
// a single default endpoint, which is enough for an environment-only
// deployment. Secrets are resolved during Load, so a nil error means every
// endpoint has one.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
		}
	}

	applyDefaults(cfg)

	if err := applyPortOverride(cfg); err != nil {
		return nil, err
	}
	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.State.Path == "" {
		cfg.State.Path = def.State.Path
	}
	if cfg.Webhooks.Listen == "" {
		cfg.Webhooks.Listen = def.Webhooks.Listen
	}
	if cfg.Replay.Store == "" {
		cfg.Replay.Store = def.Replay.Store
	}
	if cfg.Dispatch.PollInterval <= 0 {
		cfg.Dispatch.PollInterval = def.Dispatch.PollInterval
	}
	if cfg.Dispatch.PruneInterval <= 0 {
		cfg.Dispatch.PruneInterval = def.Dispatch.PruneInterval
	}

	if len(cfg.Webhooks.Endpoints) == 0 {
		cfg.Webhooks.Endpoints = []WebhookEndpoint{DefaultEndpoint()}
	}
	base := DefaultEndpoint()
	for i := range cfg.Webhooks.Endpoints {
		ep := &cfg.Webhooks.Endpoints[i]
		if ep.SecretEnv == "" && ep.Secret == "" {
			ep.SecretEnv = base.SecretEnv
		}
		if ep.SignatureHeader == "" {
			ep.SignatureHeader = base.SignatureHeader
		}
		if ep.Tolerance <= 0 {
			ep.Tolerance = base.Tolerance
		}
	}
}

// applyPortOverride lets PORT replace the listen port, keeping the host.
func applyPortOverride(cfg *Config) error {
	port, ok := os.LookupEnv("PORT")
	if !ok || port == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(cfg.Webhooks.Listen)
	if err != nil {
		return fmt.Errorf("webhooks.listen %q: %w", cfg.Webhooks.Listen, err)
	}
	cfg.Webhooks.Listen = net.JoinHostPort(host, port)
	return nil
}

// resolveSecrets fills Secret from SecretEnv. Inline secrets win.
func resolveSecrets(cfg *Config) error {
	for i := range cfg.Webhooks.Endpoints {
		ep := &cfg.Webhooks.Endpoints[i]
		if ep.Secret == "" && ep.SecretEnv != "" {
			ep.Secret = os.Getenv(ep.SecretEnv)
		}
		if envVarPattern.MatchString(ep.Secret) {
			matches := envVarPattern.FindStringSubmatch(ep.Secret)
			return fmt.Errorf("webhooks.endpoints[%d].secret: environment variable ${%s} is not set: %w", i, matches[1], ErrMissingSecret)
		}
		if ep.Secret == "" {
			if ep.SecretEnv != "" {
				return fmt.Errorf("webhook endpoint %q: $%s is empty or unset: %w", ep.Path, ep.SecretEnv, ErrMissingSecret)
			}
			return fmt.Errorf("webhook endpoint %q: %w", ep.Path, ErrMissingSecret)
		}
	}
	return nil
}

// interpolateEnv replaces ${VAR} with its value. Unset variables are left in
// place so validation can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if _, _, err := net.SplitHostPort(cfg.Webhooks.Listen); err != nil {
		return fmt.Errorf("webhooks.listen %q: %w", cfg.Webhooks.Listen, err)
	}

	switch cfg.Replay.Store {
	case ReplayStoreSQLite, ReplayStoreMemory:
	default:
		return fmt.Errorf("replay.store must be %q or %q (got %q)", ReplayStoreSQLite, ReplayStoreMemory, cfg.Replay.Store)
	}

	seen := make(map[string]bool, len(cfg.Webhooks.Endpoints))
	for i, ep := range cfg.Webhooks.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("webhooks.endpoints[%d].path must start with / (got %q)", i, ep.Path)
		}
		if seen[ep.Path] {
			return fmt.Errorf("webhooks.endpoints[%d].path %q is duplicated", i, ep.Path)
		}
		seen[ep.Path] = true
		if ep.Path == "/" || ep.Path == "/healthz" {
			return fmt.Errorf("webhooks.endpoints[%d].path %q is reserved", i, ep.Path)
		}
	}
	return nil
}
