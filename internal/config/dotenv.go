package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// loadDotEnvFile copies entries from a dotenv file into the environment.
// Variables that already have a non-empty value win, and empty entries in
// the file are skipped. A missing file is not an error.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	for k, v := range vals {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}
