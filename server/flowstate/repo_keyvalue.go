package flowstate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a browser has no flow in progress
var ErrNotFound = errors.New("flow state not found")

// DefaultMaxAge is how long an abandoned flow is kept
const DefaultMaxAge = 30 * time.Minute

// KeyFlow is the key a browser's flow is kept under, next to its session keys
const KeyFlow = "flow"

// KeyValueRepo keeps flow state in the browser's key/value namespace, so every
// portal instance sharing the backend sees the same flow. Entries older than
// maxAge are treated as absent and expire in the backend.
type KeyValueRepo struct {
	kvFactory sessions.KeyValueFactory
	maxAge    time.Duration
	nowTime   func() time.Time
}

// NewKeyValueRepo creates a flow state repository over kvFactory
func NewKeyValueRepo(kvFactory sessions.KeyValueFactory, maxAge time.Duration, nowTime func() time.Time) *KeyValueRepo {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if nowTime == nil {
		nowTime = time.Now
	}
	return &KeyValueRepo{
		kvFactory: kvFactory,
		maxAge:    maxAge,
		nowTime:   nowTime,
	}
}

// Upsert stores or replaces the flow of a browser
func (r *KeyValueRepo) Upsert(ctx context.Context, browserID string, state *FlowState) error {
	if browserID == "" {
		return errors.New("browser id cannot be empty")
	}
	if state == nil {
		return errors.New("state cannot be nil")
	}

	stored := *state
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowTime()
	}
	remaining := r.maxAge - r.nowTime().Sub(stored.CreatedAt)
	if remaining <= 0 {
		return r.Delete(ctx, browserID)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "[KeyValueRepo.Upsert] marshal")
	}
	if err := r.kvFactory(browserID).SetMany(ctx, map[string]string{KeyFlow: string(data)}, remaining); err != nil {
		return errors.Wrap(err, "[KeyValueRepo.Upsert] kv.SetMany")
	}
	return nil
}

// Get returns the flow of a browser
func (r *KeyValueRepo) Get(ctx context.Context, browserID string) (*FlowState, error) {
	raw, err := r.kvFactory(browserID).Get(ctx, KeyFlow)
	if errors.Is(err, sessions.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[KeyValueRepo.Get] kv.Get")
	}

	var state FlowState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, ErrNotFound
	}
	if r.nowTime().Sub(state.CreatedAt) > r.maxAge {
		return nil, ErrNotFound
	}
	return &state, nil
}

// Delete removes the flow of a browser; deleting nothing is not an error
func (r *KeyValueRepo) Delete(ctx context.Context, browserID string) error {
	if err := r.kvFactory(browserID).Delete(ctx, KeyFlow); err != nil {
		return errors.Wrap(err, "[KeyValueRepo.Delete] kv.Delete")
	}
	return nil
}
