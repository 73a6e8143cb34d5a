package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	AppName  string `env:"APP_NAME"  envDefault:"Source Portal"`
	Env      string `env:"ENV"       envDefault:"DEV"`
	BasePath string `env:"BASE_PATH" envDefault:"/"`
}

var _ EnvConfig = EnvVars{}

func (e *EnvVars) sanitize() {
	e.Env = strings.ToUpper(strings.TrimSpace(e.Env))
	if e.Env == "" {
		e.Env = "DEV"
	}

	// BasePath is always "/" or "/something" without a trailing slash
	base := "/" + strings.Trim(strings.TrimSpace(e.BasePath), "/")
	e.BasePath = base
}

func (e EnvVars) GetPort() string {
	port := strings.TrimSpace(e.Port)
	if port == "" {
		port = "8080"
	}
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) IsDev() bool {
	return e.Env == "DEV"
}

// GetBasePath returns the path prefix the portal is served under in production
// (e.g. "/portal"). "/" means the portal owns the whole host.
func (e EnvVars) GetBasePath() string {
	return e.BasePath
}
