package env

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads .env (or the given files) into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func GetEnv(key string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	return parsed(key, defaultValue, strconv.Atoi)
}

func GetEnvFloat(key string, defaultValue float64) float64 {
	return parsed(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func GetEnvBool(key string, defaultValue bool) bool {
	return parsed(key, defaultValue, strconv.ParseBool)
}

// parsed falls back to defaultValue when key is unset or does not parse
func parsed[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := GetEnv(key, "")
	if value == "" {
		return defaultValue
	}
	v, err := parse(value)
	if err != nil {
		return defaultValue
	}
	return v
}
