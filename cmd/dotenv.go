package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from ~/.ollama/.env. Variables that
// are already set are left alone, and a missing file is not an error.
func LoadDotEnv() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	envPath := filepath.Join(home, ".ollama", ".env")
	if err := godotenv.Load(envPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("could not load %s: %w", envPath, err)
	}

	return nil
}
