package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// settings are the CLI defaults, optionally read from a TOML file:
//
//	language = "python"
//	threshold = 0.5
//	normalize_literals = true
//	workers = 4
type settings struct {
	Language          string  `toml:"language"`
	Threshold         float64 `toml:"threshold"`
	NormalizeLiterals bool    `toml:"normalize_literals"`
	Workers           int     `toml:"workers"`
}

func defaultSettings() settings {
	return settings{
		Language:          "python",
		Threshold:         0.5,
		NormalizeLiterals: true,
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nbcompare", "config.toml")
}

// loadSettings reads path over the defaults. A missing default file is not an
// error; a missing explicit file is.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return s, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return s, nil
}

func (s settings) validate() error {
	if s.Language == "" {
		return errors.New("language must not be empty")
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", s.Threshold)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", s.Workers)
	}
	return nil
}
