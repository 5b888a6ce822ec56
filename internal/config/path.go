package config

import (
	"os"
	"path/filepath"

	"github.com/weft-org/weft/internal/build"
	"github.com/weft-org/weft/internal/fileutil"
)

// Paths holds resolved directories before configuration overrides apply.
type Paths struct {
	ConfigDir      string
	PipelinesDir   string
	DataDir        string
	LogsDir        string
	BaseConfigFile string
	// Warnings collects any warnings encountered during path resolution.
	Warnings []string
}

// XDGConfig contains the standard XDG directories used as a fallback.
type XDGConfig struct {
	DataHome   string
	ConfigHome string
}

// ResolvePaths determines application paths from the application home
// environment variable, a legacy dot-directory, and XDG defaults.
//
// Resolution logic:
//  1. If appHomeEnv is set, place everything under its value.
//  2. Else, if the legacy dot-directory exists on disk, use it and warn.
//  3. Otherwise, fall back to XDG-compliant defaults.
func ResolvePaths(appHomeEnv, legacyPath string, xdg XDGConfig) Paths {
	switch {
	case os.Getenv(appHomeEnv) != "":
		return setUnifiedPaths(os.Getenv(appHomeEnv))
	case fileutil.FileExists(legacyPath):
		paths := setUnifiedPaths(legacyPath)
		paths.Warnings = append(paths.Warnings,
			"using legacy directory "+legacyPath+"; set "+appHomeEnv+" or migrate to XDG directories")
		return paths
	default:
		return setXDGPaths(xdg)
	}
}

// setXDGPaths organizes data, logs, and configuration under the standard
// XDG directories.
func setXDGPaths(xdg XDGConfig) Paths {
	configDir := filepath.Join(xdg.ConfigHome, build.Slug)
	return Paths{
		ConfigDir:      configDir,
		PipelinesDir:   filepath.Join(configDir, "pipelines"),
		DataDir:        filepath.Join(xdg.DataHome, build.Slug, "data"),
		LogsDir:        filepath.Join(xdg.DataHome, build.Slug, "logs"),
		BaseConfigFile: filepath.Join(configDir, "base.yaml"),
	}
}

// setUnifiedPaths places all subdirectories within one home directory.
func setUnifiedPaths(homeDir string) Paths {
	homeDir = fileutil.ResolvePathOrBlank(homeDir)
	return Paths{
		ConfigDir:      homeDir,
		PipelinesDir:   filepath.Join(homeDir, "pipelines"),
		DataDir:        filepath.Join(homeDir, "data"),
		LogsDir:        filepath.Join(homeDir, "logs"),
		BaseConfigFile: filepath.Join(homeDir, "base.yaml"),
	}
}
