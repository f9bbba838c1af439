// Package config loads the process configuration from environment variables
// and an optional .env file.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the application configuration structure. All variables
// carry the DATABRIDGES_ prefix.
type Config struct {
	APIKey    string   `envconfig:"API_KEY" required:"true"`
	APISecret string   `envconfig:"API_SECRET" required:"true"`
	Scopes    []string `envconfig:"SCOPES"`
	Host      string   `envconfig:"HOST" default:"https://api.wfp.org/vam-data-bridges/4.1.0"`
	TokenURL  string   `envconfig:"TOKEN_URL" default:"https://api.wfp.org/token"`
	PageSize  int      `envconfig:"PAGE_SIZE" default:"1000"`
	Workers   int      `envconfig:"WORKERS" default:"5"`
	LogLevel  string   `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool     `envconfig:"LOG_PRETTY" default:"false"`
}

// LoadFromEnv loads a new configuration structure using environment
// variables and an optional .env file.
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	config := new(Config)
	if err := envconfig.Process("databridges", config); err != nil {
		return nil, err
	}
	return config, nil
}
