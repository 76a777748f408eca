package core_config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load fills cfg from the environment using envconfig struct tags.
// A .env file at envFile (or "./.env" when empty) is loaded first if present;
// a missing file is not an error so deployments can rely on real env vars.
func Load(cfg interface{}, envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	// Ignore the error: the file is optional.
	_ = godotenv.Load(envFile)

	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("envconfig process failed: %w", err)
	}
	return nil
}
