package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Document is the fully loaded configuration directory: one global
// tailshipper.yaml plus every files.d/*.yaml document.
type Document struct {
	Global Global
	Files  []FileConfig
}

// Load reads dir/tailshipper.yaml and every dir/files.d/*.yaml document. A
// dir/.env file, if present, is loaded into the process environment before
// ${VAR} expansion so secrets need not live in the YAML itself.
func Load(dir string) (*Document, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	var doc Document

	globalPath := filepath.Join(dir, "tailshipper.yaml")
	globalData, err := os.ReadFile(globalPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", globalPath, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(globalData))), &doc.Global); err != nil {
		return nil, fmt.Errorf("parse %s: %w", globalPath, err)
	}

	pattern := filepath.Join(dir, "files.d", "*.yaml")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m, err)
		}
		var fc FileConfig
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", m, err)
		}
		doc.Files = append(doc.Files, fc)
	}

	return &doc, nil
}

// ResolvePaths expands a FileConfig's File glob (which may include `**`)
// into the concrete file paths it currently matches.
func ResolvePaths(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand glob %s: %w", pattern, err)
	}
	return matches, nil
}
