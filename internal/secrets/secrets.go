// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads backend API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name
// and the file contents (trimmed) are the value.
//
// Conventional key files: anthropic-api-key, openai-api-key. A key missing from
// the directory falls back to the environment variable derived from its name
// (anthropic-api-key → ANTHROPIC_API_KEY).
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Lookup returns the secret named key from loaded, falling back to the
// environment variable EnvName(key). The boolean is false when neither is set.
func Lookup(loaded map[string]string, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if v, ok := loaded[key]; ok && v != "" {
		return v, true
	}
	if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
		return v, true
	}
	return "", false
}

// EnvName maps a secret file name to its environment variable name.
func EnvName(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
