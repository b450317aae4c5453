package plugin

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Discover scans feedback roots for manifest.yaml files and registers every
// valid process feedback in reg. Roots are processed in input order;
// duplicate names keep the first registration (built-ins win). Missing
// roots are skipped with a warning; invalid manifests are logged but not fatal.
func Discover(reg *Registry, roots []string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	seenRoots := make(map[string]struct{}, len(roots))
	added := 0
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return added, fmt.Errorf("failed to resolve feedback root %q: %w", root, err)
		}
		if _, ok := seenRoots[absRoot]; ok {
			continue
		}
		seenRoots[absRoot] = struct{}{}

		info, err := os.Stat(absRoot)
		if os.IsNotExist(err) {
			logger.Warn("feedback root does not exist, skipping", "root", absRoot)
			continue
		}
		if err != nil {
			return added, fmt.Errorf("failed to stat feedback root %s: %w", absRoot, err)
		}
		if !info.IsDir() {
			return added, fmt.Errorf("feedback root is not a directory: %s", absRoot)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			dir := filepath.Dir(path)
			entry, err := loadProcessEntry(dir, absRoot, logger)
			if err != nil {
				logger.Warn("failed to load feedback", "root", absRoot, "path", dir, "error", err.Error())
				return nil
			}

			if err := reg.add(entry); err != nil {
				kept := ""
				if existing, ok := reg.Get(entry.Name); ok {
					kept = existing.Path
					if existing.Source == SourceBuiltin {
						kept = "builtin"
					}
				}
				logger.Warn("duplicate feedback ignored (keeping first registered)",
					"feedback", entry.Name,
					"ignored_path", entry.Path,
					"kept", kept,
				)
				return nil
			}

			added++
			logger.Info("loaded feedback", "feedback", entry.Name, "path", entry.Path, "version", entry.Version)
			return nil
		})
		if err != nil {
			return added, fmt.Errorf("failed to scan feedback root %s: %w", absRoot, err)
		}
	}
	return added, nil
}

// loadProcessEntry reads and validates a single process feedback directory.
func loadProcessEntry(dir, root string, logger *slog.Logger) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := validateManifest(&manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Protocol != hookProtocol {
		return nil, fmt.Errorf("unsupported protocol version %d (supported: %d)", manifest.Protocol, hookProtocol)
	}

	entrypoint := filepath.Join(dir, manifest.Entrypoint)
	if err := validateTrust(entrypoint, dir, root); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	spec := ProcessSpec{
		Name:       manifest.Name,
		Entrypoint: entrypoint,
		Variables:  manifest.Variables,
	}
	return &Entry{
		Name:        manifest.Name,
		Description: manifest.Description,
		Source:      SourceProcess,
		Path:        dir,
		Version:     manifest.Version,
		factory: func() (Plugin, error) {
			return NewProcess(spec, logger.With("feedback", spec.Name)), nil
		},
	}, nil
}

// validateTrust requires the entrypoint to resolve inside both the feedback
// directory and its root, be executable, and live in a directory that is not
// world-writable.
func validateTrust(entrypoint, dir, root string) error {
	resolvedEntrypoint, err := filepath.EvalSymlinks(entrypoint)
	if err != nil {
		return fmt.Errorf("failed to resolve entrypoint symlink: %w", err)
	}
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve feedback path symlink: %w", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("failed to resolve feedback root symlink %s: %w", root, err)
	}

	if !strings.HasPrefix(resolvedEntrypoint, resolvedRoot+string(os.PathSeparator)) {
		return fmt.Errorf("entrypoint %s is not under feedback root %s", resolvedEntrypoint, resolvedRoot)
	}
	if !strings.HasPrefix(resolvedEntrypoint, resolvedDir+string(os.PathSeparator)) {
		return fmt.Errorf("entrypoint %s is not under feedback directory %s", resolvedEntrypoint, resolvedDir)
	}

	info, err := os.Stat(resolvedEntrypoint)
	if err != nil {
		return fmt.Errorf("entrypoint not found: %w", err)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("entrypoint is not executable: %s", resolvedEntrypoint)
	}

	dirInfo, err := os.Stat(resolvedDir)
	if err != nil {
		return fmt.Errorf("feedback directory not found: %w", err)
	}
	if dirInfo.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("feedback directory is world-writable: %s", resolvedDir)
	}
	return nil
}
