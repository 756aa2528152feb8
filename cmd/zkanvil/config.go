// Copyright 2025 The zkanvil Authors
// This file is part of zkanvil.
//
// zkanvil is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// zkanvil is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with zkanvil. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

// setFlagsFromConfigFile fills flags the command line left unset from a
// YAML or TOML file. Keys are flag names; explicit CLI values win.
func setFlagsFromConfigFile(ctx *cli.Context, filePath string) error {
	if filePath == "" {
		return nil
	}

	fileConfig := make(map[string]interface{})
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, fileConfig); err != nil {
			return fmt.Errorf("parse %s: %w", filePath, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("parse %s: %w", filePath, err)
		}
	default:
		return errors.New("config files only accepted are .yaml and .toml")
	}

	for key, value := range fileConfig {
		if ctx.IsSet(key) {
			continue
		}
		var text string
		if slice, ok := value.([]interface{}); ok {
			parts := make([]string, len(slice))
			for i, v := range slice {
				parts[i] = fmt.Sprintf("%v", v)
			}
			text = strings.Join(parts, ",")
		} else {
			text = fmt.Sprintf("%v", value)
		}
		if err := ctx.Set(key, text); err != nil {
			return fmt.Errorf("apply config key %s=%q: %w", key, text, err)
		}
	}
	return nil
}
