package config

import "time"

// Config represents the complete feedbackd configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Network   NetworkConfig   `yaml:"network"`
	Feedbacks FeedbacksConfig `yaml:"feedbacks"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Journal   JournalConfig   `yaml:"journal"`
	API       APIConfig       `yaml:"api,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// NetworkConfig defines the datagram endpoints. Listen and the reply port
// must not share a port.
type NetworkConfig struct {
	Listen     string `yaml:"listen"`
	ReplyPort  int    `yaml:"reply_port"`
	BufferSize int    `yaml:"buffer_size"`
}

// FeedbacksConfig lists where process feedbacks are discovered and which
// feedback is used as the default.
type FeedbacksConfig struct {
	Dirs    []string `yaml:"dirs"`
	Default string   `yaml:"default"`
}

// HooksConfig names the controller hook module: a built-in module name or
// a path to a hooks YAML file.
type HooksConfig struct {
	Module string `yaml:"module"`
}

// JournalConfig defines the signal journal database.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// APIConfig defines the admin HTTP API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key"`
}

// Defaults returns a config with every default applied.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "feedbackd",
			LogLevel: "info",
		},
		Network: NetworkConfig{
			Listen:     ":12345",
			ReplyPort:  12346,
			BufferSize: 65535,
		},
		Feedbacks: FeedbacksConfig{
			Dirs:    []string{"./feedbacks"},
			Default: "noop",
		},
		Journal: JournalConfig{
			Enabled:   true,
			Path:      "./data/journal.db",
			Retention: 7 * 24 * time.Hour,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}
