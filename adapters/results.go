package adapters

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/pkg/errors"
)

// KeyLastResult is the key the last test result of a browser is kept under,
// next to the session keys.
const KeyLastResult = "adapterTest"

// ResultStore keeps the last connectivity result of one browser. The result
// expires with the same ttl as the browser's session.
type ResultStore struct {
	kv  sessions.KeyValue
	ttl time.Duration
}

func NewResultStore(kv sessions.KeyValue, ttl time.Duration) *ResultStore {
	return &ResultStore{kv: kv, ttl: ttl}
}

// Save replaces the stored result and restarts its expiry.
func (s *ResultStore) Save(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "[ResultStore.Save] marshal")
	}
	if err := s.kv.SetMany(ctx, map[string]string{KeyLastResult: string(data)}, s.ttl); err != nil {
		return errors.Wrap(err, "[ResultStore.Save] kv.SetMany")
	}
	return nil
}

// Load returns the stored result; ok is false when there is none or it is unreadable.
func (s *ResultStore) Load(ctx context.Context) (Result, bool) {
	raw, err := s.kv.Get(ctx, KeyLastResult)
	if err != nil {
		return Result{}, false
	}
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, false
	}
	return r, true
}

// Clear forgets the stored result
func (s *ResultStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyLastResult); err != nil {
		return errors.Wrap(err, "[ResultStore.Clear] kv.Delete")
	}
	return nil
}

// PassedFor reports whether the stored result is a pass for endpoint
func (s *ResultStore) PassedFor(ctx context.Context, endpoint string) bool {
	r, ok := s.Load(ctx)
	return ok && r.PassedFor(endpoint)
}
