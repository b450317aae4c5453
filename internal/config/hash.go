package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

const checksumsFile = ".checksums"

// ChecksumManifest is the on-disk .checksums file written by `config lock`.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// HashUpdateFileResult captures the checksum outcome for one file.
type HashUpdateFileResult struct {
	Key  string
	Path string
	Hash string
}

// HashUpdateReport captures what `config lock` wrote.
type HashUpdateReport struct {
	ChecksumPath string
	Written      bool
	Files        []HashUpdateFileResult
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}
	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}
	return nil
}

// Fingerprint returns the BLAKE3 hash of the loaded config file. It is
// reported by the admin API so operators can tell which config is live.
func Fingerprint(cfg *Config) (string, error) {
	if cfg.SourcePath == "" {
		return "", fmt.Errorf("config has no source path")
	}
	return ComputeBlake3Hash(cfg.SourcePath)
}

// lockedFiles returns the files covered by .checksums: the config itself
// and a hooks file, which runs commands and must not change unnoticed.
func lockedFiles(cfg *Config) map[string]string {
	dir := filepath.Dir(cfg.SourcePath)
	files := map[string]string{filepath.Base(cfg.SourcePath): cfg.SourcePath}
	if IsHooksFile(cfg.Hooks.Module) {
		key := cfg.Hooks.Module
		if rel, err := filepath.Rel(dir, cfg.Hooks.Module); err == nil && !strings.HasPrefix(rel, "..") {
			key = rel
		}
		files[key] = cfg.Hooks.Module
	}
	return files
}

// Lock hashes the config and hooks file and writes .checksums next to the
// config. With dryRun it only reports.
func Lock(cfg *Config, dryRun bool) (*HashUpdateReport, error) {
	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      make(map[string]string),
	}
	report := &HashUpdateReport{ChecksumPath: filepath.Join(filepath.Dir(cfg.SourcePath), checksumsFile)}

	for key, path := range lockedFiles(cfg) {
		hash, err := ComputeBlake3Hash(path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", key, err)
		}
		manifest.Hashes[key] = hash
		report.Files = append(report.Files, HashUpdateFileResult{Key: key, Path: path, Hash: hash})
	}
	if dryRun {
		return report, nil
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checksums: %w", err)
	}
	if err := os.WriteFile(report.ChecksumPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write checksums: %w", err)
	}
	report.Written = true
	return report, nil
}

// LoadChecksums reads .checksums from dir. It returns (nil, nil) when the
// file does not exist.
func LoadChecksums(dir string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, checksumsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}

// ErrChecksumMismatch is returned by Load when a locked file changed.
var ErrChecksumMismatch = errors.New("config verification failed")

// verifyConfigHashes enforces .checksums when present. Without it, nothing
// is verified.
func verifyConfigHashes(cfg *Config) error {
	dir := filepath.Dir(cfg.SourcePath)
	manifest, err := LoadChecksums(dir)
	if err != nil || manifest == nil {
		return err
	}

	for key, path := range lockedFiles(cfg) {
		expected, ok := manifest.Hashes[key]
		if !ok {
			return fmt.Errorf("%w: %s has no hash in %s\nRun: feedbackd config lock", ErrChecksumMismatch, key, filepath.Join(dir, checksumsFile))
		}
		if err := VerifyFileHash(path, expected); err != nil {
			return fmt.Errorf("%w: %v\n"+
				"If you edited this file intentionally, run: feedbackd config lock", ErrChecksumMismatch, err)
		}
	}
	return nil
}
