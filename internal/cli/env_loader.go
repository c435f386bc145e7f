package cli

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "WSEDGE_"

// loadEnvFromDotEnv copies WSEDGE_* values from a .env file into the process
// environment. Variables that are already set win over the file. A missing
// file is not an error.
func loadEnvFromDotEnv(path string) {
	values, err := godotenv.Read(path)
	if err != nil {
		return
	}
	for key, value := range values {
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		if existing := strings.TrimSpace(os.Getenv(key)); existing != "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
