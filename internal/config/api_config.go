package config

import (
	"strings"
	"time"
)

type API struct {
	BaseURL             string        `env:"API_BASE_URL"                envDefault:"http://localhost:4000"`
	Timeout             time.Duration `env:"API_TIMEOUT"                 envDefault:"15s"`
	RefreshInterval     time.Duration `env:"AGREEMENTS_REFRESH_INTERVAL" envDefault:"30s"`
	ConnectivityTimeout time.Duration `env:"GRPC_TEST_TIMEOUT"           envDefault:"5s"`
}

var _ APIConfig = API{}

func (a *API) sanitize() {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.Timeout <= 0 {
		a.Timeout = 15 * time.Second
	}
	if a.RefreshInterval < time.Second {
		a.RefreshInterval = 30 * time.Second
	}
	if a.ConnectivityTimeout <= 0 {
		a.ConnectivityTimeout = 5 * time.Second
	}
}

func (a API) GetAPIBaseURL() string {
	return a.BaseURL
}

func (a API) GetAPITimeout() time.Duration {
	return a.Timeout
}

// GetRefreshInterval is the period of the background "my agreements" refresh.
func (a API) GetRefreshInterval() time.Duration {
	return a.RefreshInterval
}

func (a API) GetConnectivityTimeout() time.Duration {
	return a.ConnectivityTimeout
}
