package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFiles lists the dotenv files read by LoadDotEnv, highest priority first.
var EnvFiles = []string{".env.local", ".env"}

// LoadDotEnv sets variables from the dotenv files in dir. Variables already in
// the process environment take precedence, then earlier files in EnvFiles.
// It returns the files that were loaded.
func LoadDotEnv(dir string) ([]string, error) {
	var loaded []string

	for _, name := range EnvFiles {
		path := filepath.Join(dir, name)

		envs, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("cannot parse env file %q: %w", path, err)
		}

		for k, v := range envs {
			if _, exists := os.LookupEnv(k); exists {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return loaded, fmt.Errorf("cannot set env %q from %q: %w", k, path, err)
			}
		}
		loaded = append(loaded, path)
	}

	return loaded, nil
}
