package sessions

import (
	"context"
	"encoding/json"
	"time"

	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is the authenticated state of one browser: the bearer credential,
// the refresh credential and the user it belongs to.
type Session struct {
	Token        string
	RefreshToken string
	User         *users.User
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.User != nil
}

// Store is the single writer of session state. Every mutation writes through
// to the KeyValue so a restart reconstructs the prior session.
type Store struct {
	kv      KeyValue
	maxTTL  time.Duration
	nowTime func() time.Time
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithMaxTTL caps how long persisted session keys live.
func WithMaxTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.maxTTL = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func NewStore(kv KeyValue, options ...StoreOption) *Store {
	s := &Store{
		kv:      kv,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Get returns the persisted session. Missing, partial or undecodable data is
// reported as no session; partial and undecodable data is also cleared.
func (s *Store) Get(ctx context.Context) (Session, bool) {
	token, tokenErr := s.kv.Get(ctx, KeyToken)
	rawUser, userErr := s.kv.Get(ctx, KeyUser)

	if isStorageFailure(tokenErr) || isStorageFailure(userErr) {
		log.Err(firstErr(tokenErr, userErr)).Msg("Session store unavailable")
		return Session{}, false
	}

	if tokenErr != nil && userErr != nil {
		return Session{}, false
	}

	if tokenErr != nil || userErr != nil || token == "" {
		log.Warn().Msg("Partial session found, clearing")
		s.clearQuietly(ctx)
		return Session{}, false
	}

	var user users.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		log.Err(err).Msg("Malformed session user, clearing")
		s.clearQuietly(ctx)
		return Session{}, false
	}
	if err := user.Validate(); err != nil {
		log.Err(err).Msg("Incomplete session user, clearing")
		s.clearQuietly(ctx)
		return Session{}, false
	}

	refresh, err := s.kv.Get(ctx, KeyRefreshToken)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		log.Err(err).Msg("Session store unavailable")
		return Session{}, false
	}

	return Session{Token: token, RefreshToken: refresh, User: &user}, true
}

// Set persists token, refresh token and user together.
func (s *Store) Set(ctx context.Context, token, refreshToken string, user *users.User) error {
	if token == "" || user == nil {
		return errors.Wrap(portalerrors.ErrSessionInvalid, "[Store.Set] token and user are both required")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.Set] marshal user")
	}

	ttl, ok := s.ttlFor(token)
	if !ok {
		return errors.Wrap(portalerrors.ErrSessionInvalid, "[Store.Set] access token already expired")
	}

	values := map[string]string{
		KeyToken:        token,
		KeyRefreshToken: refreshToken,
		KeyUser:         string(data),
	}
	if err := s.kv.SetMany(ctx, values, ttl); err != nil {
		return errors.Wrap(err, "[Store.Set] kv.SetMany")
	}
	return nil
}

// UpdateUser replaces the stored user after a profile refresh, keeping the
// credentials. It fails when there is no session to update.
func (s *Store) UpdateUser(ctx context.Context, user *users.User) error {
	if user == nil {
		return errors.Wrap(portalerrors.ErrSessionInvalid, "[Store.UpdateUser] user is required")
	}
	if _, ok := s.Get(ctx); !ok {
		return portalerrors.ErrSessionNotFound
	}

	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.UpdateUser] marshal user")
	}
	if err := s.kv.SetMany(ctx, map[string]string{KeyUser: string(data)}, 0); err != nil {
		return errors.Wrap(err, "[Store.UpdateUser] kv.SetMany")
	}
	return nil
}

// Clear removes the whole session. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, sessionKeys...); err != nil {
		return errors.Wrap(err, "[Store.Clear] kv.Delete")
	}
	return nil
}

// IsAuthenticated is true only when both token and user are present.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	sess, ok := s.Get(ctx)
	return ok && sess.Valid()
}

// AccessToken returns the bearer credential, or "" when logged out.
func (s *Store) AccessToken(ctx context.Context) string {
	sess, ok := s.Get(ctx)
	if !ok {
		return ""
	}
	return sess.Token
}

// ttlFor caps the session lifetime at the token's exp claim. ok is false for a
// token that has already expired, which must not be persisted.
func (s *Store) ttlFor(token string) (time.Duration, bool) {
	ttl := s.maxTTL
	expiry, hasExpiry := TokenExpiry(token)
	if !hasExpiry {
		return ttl, true
	}
	untilExpiry := expiry.Sub(s.nowTime())
	if untilExpiry <= 0 {
		return 0, false
	}
	if ttl <= 0 || untilExpiry < ttl {
		ttl = untilExpiry
	}
	return ttl, true
}

func (s *Store) clearQuietly(ctx context.Context) {
	if err := s.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear session")
	}
}

func isStorageFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrKeyNotFound)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if isStorageFailure(err) {
			return err
		}
	}
	return nil
}
