package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// LockSuffix is appended to the config path to form the lock sidecar.
const LockSuffix = ".b3"

var ErrIntegrity = errors.New("config integrity check failed")

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// LockPath returns the sidecar path for configPath.
func LockPath(configPath string) string {
	return configPath + LockSuffix
}

// Lock pins configPath by writing its digest to the sidecar in b3sum format.
func Lock(configPath string) (string, error) {
	hash, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%s  %s\n", hash, filepath.Base(configPath))
	if err := os.WriteFile(LockPath(configPath), []byte(line), 0600); err != nil {
		return "", fmt.Errorf("failed to write lock: %w", err)
	}
	return hash, nil
}

// VerifyLock checks configPath against its sidecar. It reports false with
// no error when no sidecar exists.
func VerifyLock(configPath string) (bool, error) {
	raw, err := os.ReadFile(LockPath(configPath))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read lock: %w", err)
	}

	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: empty lock file %s", ErrIntegrity, LockPath(configPath))
	}
	expected := fields[0]

	actual, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return false, err
	}
	if actual != expected {
		return false, fmt.Errorf("%w: hash mismatch for %s (expected %s, got %s); run 'mecfinder config lock' after reviewing the change",
			ErrIntegrity, filepath.Base(configPath), expected, actual)
	}
	return true, nil
}
