package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
)

const (
	appDir = "navpreview"

	// configDirEnv overrides the search path, e.g. for a mounted volume
	configDirEnv = "NAVPREVIEW_CONFIG_DIR"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, in
// order. If one of them already holds a config.yaml, only that one is returned
// so a default file is never written next to an existing one.
func GetDefaultConfigPaths() ([]string, error) {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return []string{dir}, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	if runtime.GOOS == "windows" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategorySystem).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", appDir),
		}
	} else {
		configPaths = []string{
			filepath.Join(homeDir, ".config", appDir),
			"/etc/" + appDir,
		}
	}

	for _, dir := range configPaths {
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
			return []string{dir}, nil
		}
	}
	return configPaths, nil
}

// FindConfigFile returns the config.yaml Load would read.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, dir := range configPaths {
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Newf("config.yaml not found in %v", configPaths).
		Category(errors.CategoryNotFound).
		Context("operation", "find-config-file").
		Build()
}

// moveFile renames src to dst, copying when they are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) //nolint:gosec // G304: temp file created by SaveYAMLConfig
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) //nolint:gosec // G304: caller-chosen config path
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("error copying file contents: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("error closing destination file: %w", err)
	}

	if err := os.Remove(src); err != nil {
		GetLogger().Warn("failed to remove temporary config file", logger.String("path", src), logger.Error(err))
	}
	return nil
}
