package config

import "time"

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetCookieName() string
	GetCookieSecure() bool
}

type Session struct {
	TTL          time.Duration `env:"SESSION_TTL"   envDefault:"24h"`
	CookieName   string        `env:"COOKIE_NAME"   envDefault:"portal_session"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

var _ SessionConfig = Session{}

func (s *Session) sanitize() {
	if s.TTL <= 0 {
		s.TTL = 24 * time.Hour
	}
	if s.CookieName == "" {
		s.CookieName = "portal_session"
	}
}

// GetSessionTTL bounds how long a browser's stored session lives when the
// access token itself carries no expiry.
func (s Session) GetSessionTTL() time.Duration {
	return s.TTL
}

func (s Session) GetCookieName() string {
	return s.CookieName
}

func (s Session) GetCookieSecure() bool {
	return s.CookieSecure
}
