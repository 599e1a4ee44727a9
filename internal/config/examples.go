package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const namePrefix = "-- name:"

// Examples returns the configured example queries followed by the ones
// loaded from files matching examples_glob. A relative glob is resolved
// against the config file's directory.
func (c *Config) Examples() ([]Example, error) {
	settings := c.ConsoleSettings()
	examples := settings.Examples

	if settings.ExamplesGlob == "" {
		return examples, nil
	}

	pattern := settings.ExamplesGlob
	if !filepath.IsAbs(pattern) {
		if p := c.Path(); p != "" {
			pattern = filepath.Join(filepath.Dir(p), pattern)
		}
	}

	fromFiles, err := LoadExampleFiles(pattern)
	if err != nil {
		return examples, err
	}
	return append(examples, fromFiles...), nil
}

// LoadExampleFiles reads every file matching pattern as one example.
// The example is named by a leading "-- name: ..." line, or else by the
// file name without extension. Empty files are skipped.
func LoadExampleFiles(pattern string) ([]Example, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid examples glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	examples := make([]Example, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read example %s: %w", path, err)
		}

		query := strings.TrimSpace(string(data))
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if first, rest, _ := strings.Cut(query, "\n"); strings.HasPrefix(first, namePrefix) {
			name = strings.TrimSpace(strings.TrimPrefix(first, namePrefix))
			query = strings.TrimSpace(rest)
		}
		if query == "" {
			continue
		}

		examples = append(examples, Example{Name: name, Query: query})
	}
	return examples, nil
}
