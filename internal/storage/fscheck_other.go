//go:build !darwin && !linux

package storage

// Journals open without a mount check here.
func detectFilesystemType(string) (string, error) {
	return "", errFilesystemUndetectable
}
