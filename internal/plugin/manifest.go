package plugin

import (
	"fmt"
	"strings"
)

const (
	// SupportedManifestVersion is the only manifest layout this build reads.
	SupportedManifestVersion = 1
	manifestFilename         = "manifest.yaml"
)

// Manifest defines the structure of a process feedback's manifest.yaml file.
type Manifest struct {
	ManifestVersion int            `yaml:"manifest_version"`
	Name            string         `yaml:"name"`
	Version         string         `yaml:"version"`
	Protocol        int            `yaml:"protocol"`
	Entrypoint      string         `yaml:"entrypoint"`
	Description     string         `yaml:"description,omitempty"`
	Variables       map[string]any `yaml:"variables,omitempty"` // initial exposed variables
}

// validateManifest checks required manifest fields.
func validateManifest(m *Manifest) error {
	if m.ManifestVersion == 0 {
		return fmt.Errorf("manifest_version is required")
	}
	if m.ManifestVersion != SupportedManifestVersion {
		return fmt.Errorf("unsupported manifest_version %d (supported: %d)", m.ManifestVersion, SupportedManifestVersion)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.Protocol == 0 {
		return fmt.Errorf("protocol version is required")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint is required")
	}
	// Check for path traversal in entrypoint
	if strings.Contains(m.Entrypoint, "..") {
		return fmt.Errorf("entrypoint contains path traversal: %s", m.Entrypoint)
	}
	return nil
}
