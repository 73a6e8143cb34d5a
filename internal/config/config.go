package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	RedisConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetBasePath() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetRefreshInterval() time.Duration
	GetConnectivityTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Session
	Redis
}

// New loads an optional .env file and parses the environment into a Config.
func New() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching .env files.
func FromEnv() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.sanitize()
	return c, nil
}

func (c *mainConfig) sanitize() {
	c.EnvVars.sanitize()
	c.API.sanitize()
	c.Session.sanitize()
}
