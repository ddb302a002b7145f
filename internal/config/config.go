package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv       string
	Port         string
	SnapshotPath string
	ResultsDir   string
	Python       string
}

// Load reads configuration from the environment, preferring values from a
// local .env file when one exists.
func Load() Config {
	_ = godotenv.Load(".env", ".env.local")

	return Config{
		AppEnv:       getenv("APP_ENV", "development"),
		Port:         getenv("PORT", "8080"),
		SnapshotPath: getenv("SNAPSHOT_PATH", "jobs.json"),
		ResultsDir:   getenv("RESULTS_DIR", "results"),
		Python:       getenv("WHISPER_PYTHON", "python3"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
