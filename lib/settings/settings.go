// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Settings is the on-disk configuration shape.
type Settings struct {
	Permissions Permissions `json:"permissions"`
}

// Permissions holds the deny rule strings.
type Permissions struct {
	Deny []string `json:"deny"`
}

// Path returns the settings file location for a working directory.
func Path(dir string) string {
	return filepath.Join(dir, ".claude", "settings.json")
}

// Load reads .claude/settings.json from dir. A missing file is not an
// error: it yields an empty Settings, which means no enforcement and
// the command runs without isolation. A file that exists but cannot be
// read or parsed is fatal.
func Load(dir string) (*Settings, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	parsed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result. Settings files are authored by hand, so the
// tolerant front end accepts // line comments, /* block comments */,
// and trailing commas on top of plain JSON.
func Parse(data []byte) (*Settings, error) {
	stripped := jsonc.ToJSON(data)

	var parsed Settings
	if err := json.Unmarshal(stripped, &parsed); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return &parsed, nil
}
