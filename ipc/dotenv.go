package ipc

import (
	"fmt"

	"github.com/joho/godotenv"
)

// ReadDotEnvFile parses filename into a key/value map.
func ReadDotEnvFile(filename string) (map[string]string, error) {
	envMap, err := godotenv.Read(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return envMap, nil
}
