package httpapi

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the HTTP server settings.
type Config struct {
	Port              string        `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout   time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`
	ReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	AllowedOrigin     string        `envconfig:"HTTP_ALLOWED_ORIGIN" default:"*"`
}

// GetConfig reads the server settings from the environment.
func GetConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing env config: %w", err)
	}
	return &config, nil
}
