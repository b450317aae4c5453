package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvConfigPath overrides config discovery when set.
const EnvConfigPath = "FEEDBACKD_CONFIG"

// Load reads, interpolates, defaults and validates the config at path.
// Relative paths inside the file resolve against the file's directory.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadUnverified is Load without the .checksums check, for relocking
// files that were edited on purpose.
func LoadUnverified(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verify bool) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default values.
	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.SourcePath = absPath
	cfg = applyConfigDefaults(cfg)
	resolvePaths(cfg, filepath.Dir(absPath))

	if verify {
		if err := verifyConfigHashes(cfg); err != nil {
			return nil, err
		}
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover finds the config file by checking standard locations.
// Priority order: $FEEDBACKD_CONFIG, ~/.config/feedbackd/config.yaml,
// /etc/feedbackd/config.yaml, ./config.yaml.
func Discover() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	candidates := []string{}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "feedbackd", "config.yaml"))
	}
	candidates = append(candidates, "/etc/feedbackd/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/feedbackd/config.yaml, /etc/feedbackd/config.yaml, ./config.yaml)", EnvConfigPath)
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)

	if cfg.Network.Listen == "" {
		cfg.Network.Listen = defaults.Network.Listen
	}
	if cfg.Network.ReplyPort == 0 {
		cfg.Network.ReplyPort = defaults.Network.ReplyPort
	}
	if cfg.Network.BufferSize == 0 {
		cfg.Network.BufferSize = defaults.Network.BufferSize
	}

	if len(cfg.Feedbacks.Dirs) == 0 {
		cfg.Feedbacks.Dirs = defaults.Feedbacks.Dirs
	}
	if cfg.Feedbacks.Default == "" {
		cfg.Feedbacks.Default = defaults.Feedbacks.Default
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaults.Journal.Path
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	return cfg
}

func resolvePaths(cfg *Config, baseDir string) {
	for i, dir := range cfg.Feedbacks.Dirs {
		cfg.Feedbacks.Dirs[i] = resolvePath(baseDir, dir)
	}
	if IsHooksFile(cfg.Hooks.Module) {
		cfg.Hooks.Module = resolvePath(baseDir, cfg.Hooks.Module)
	}
	if cfg.Journal.Path != ":memory:" {
		cfg.Journal.Path = resolvePath(baseDir, cfg.Journal.Path)
	}
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(baseDir, p)
}

// IsHooksFile reports whether a hooks module reference names a file rather
// than a built-in module.
func IsHooksFile(ref string) bool {
	if ref == "" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ref))
	return ext == ".yaml" || ext == ".yml" || strings.ContainsRune(ref, filepath.Separator)
}

// interpolateEnv expands ${VAR} from the environment. Unset variables are
// left in place and rejected by validation where they matter.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	listenPort, err := portOf(cfg.Network.Listen)
	if err != nil {
		return fmt.Errorf("network.listen: %w", err)
	}
	if cfg.Network.ReplyPort < 1 || cfg.Network.ReplyPort > 65535 {
		return fmt.Errorf("network.reply_port must be in 1..65535 (got %d)", cfg.Network.ReplyPort)
	}
	if listenPort != 0 && listenPort == cfg.Network.ReplyPort {
		return fmt.Errorf("network.listen and network.reply_port must differ (both %d)", listenPort)
	}
	if cfg.Network.BufferSize < 1 || cfg.Network.BufferSize > 65535 {
		return fmt.Errorf("network.buffer_size must be in 1..65535 (got %d)", cfg.Network.BufferSize)
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if cfg.Journal.Retention < 0 {
		return errors.New("journal.retention must not be negative")
	}

	if cfg.API.Enabled {
		if cfg.API.APIKey == "" {
			return errors.New("api.api_key is required when the API is enabled")
		}
		if m := envVarPattern.FindStringSubmatch(cfg.API.APIKey); m != nil {
			return fmt.Errorf("api.api_key: environment variable ${%s} is not set", m[1])
		}
		if _, err := portOf(cfg.API.Listen); err != nil {
			return fmt.Errorf("api.listen: %w", err)
		}
	}
	return nil
}

func portOf(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}
