package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by a KeyValue when the key holds no value.
var ErrKeyNotFound = errors.New("key not found")

// Fixed key names the session triple is persisted under.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

var sessionKeys = []string{KeyToken, KeyRefreshToken, KeyUser}

// KeyValue is the durable storage behind a Store. Each browser gets its own
// namespace, so implementations never see keys from another browser.
type KeyValue interface {
	// Get returns the value for key or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// SetMany writes all values in one step. A positive ttl sets an expiry on
	// every written key; zero keeps whatever expiry the keys already had.
	SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error

	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}

// KeyValueFactory returns the KeyValue namespace for a browser session id.
type KeyValueFactory func(namespace string) KeyValue
