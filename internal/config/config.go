// SPDX-License-Identifier: MPL-2.0

// Package config loads tool settings for the mesonwheel CLI. Settings come
// from three layers in ascending precedence: built-in defaults, an optional
// mesonwheel.toml, and MESONWHEEL_* environment variables. Command-line
// flags override the loaded settings at the CLI layer.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/mesonwheel/mesonwheel/internal/cueschema"
)

// ErrSettings reports an unreadable or schema-violating settings file.
var ErrSettings = errors.New("invalid tool settings")

// FileName is the settings file looked up in the working directory when no
// explicit path is given.
const FileName = "mesonwheel.toml"

// DefaultOutputDir is where built artifacts land unless overridden.
const DefaultOutputDir = "dist"

//go:embed settings_schema.cue
var settingsSchema []byte

// Settings holds every tool option the CLI exposes.
type Settings struct {
	OutputDir     string `mapstructure:"output-dir"`
	BuildDir      string `mapstructure:"build-dir"`
	ConfigureArgs string `mapstructure:"configure-args"`
	InstallArgs   string `mapstructure:"install-args"`
	DistArgs      string `mapstructure:"dist-args"`
	Verbose       bool   `mapstructure:"verbose"`
}

// Load resolves the settings. explicitPath names a settings file that must
// exist; when empty, FileName in the working directory is read if present.
// Returns the settings and the path of the file actually read, empty when
// none was.
func Load(explicitPath string) (*Settings, string, error) {
	v := viper.New()

	v.SetDefault("output-dir", DefaultOutputDir)
	v.SetDefault("build-dir", "")
	v.SetDefault("configure-args", "")
	v.SetDefault("install-args", "")
	v.SetDefault("dist-args", "")
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("MESONWHEEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := explicitPath
	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}

	resolved := ""
	if path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, "", err
		}
		resolved = path
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrSettings, path, err)
	}
	return &s, resolved, nil
}

// mergeFile reads one TOML settings file, validates it against the closed
// schema, and merges it into viper's config layer.
func mergeFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSettings, path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSettings, path, err)
	}
	if err := cueschema.Validate(settingsSchema, "#Settings", raw, path); err != nil {
		return fmt.Errorf("%w: %v", ErrSettings, err)
	}

	return v.MergeConfigMap(raw)
}
