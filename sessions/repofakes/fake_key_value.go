package repofakes

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-source-portal/sessions"
)

var _ sessions.KeyValue = (*FakeKeyValue)(nil)

type entry struct {
	value     string
	expiresAt time.Time
}

// FakeKeyValue is an in-memory sessions.KeyValue. Namespaces created with
// Namespace share the underlying map, mirroring a shared Redis instance.
type FakeKeyValue struct {
	prefix  string
	data    *map[string]entry
	lock    *sync.RWMutex
	nowTime func() time.Time
}

func NewFakeKeyValue() *FakeKeyValue {
	data := make(map[string]entry)
	return &FakeKeyValue{
		data:    &data,
		lock:    &sync.RWMutex{},
		nowTime: time.Now,
	}
}

// WithNowTime sets the clock used for expiry checks
func (kv *FakeKeyValue) WithNowTime(nowFunc func() time.Time) *FakeKeyValue {
	kv.nowTime = nowFunc
	return kv
}

// Namespace returns a view of the same storage with keys prefixed by ns.
func (kv *FakeKeyValue) Namespace(ns string) sessions.KeyValue {
	return &FakeKeyValue{
		prefix:  kv.prefix + ns + ":",
		data:    kv.data,
		lock:    kv.lock,
		nowTime: kv.nowTime,
	}
}

// Factory adapts Namespace to a sessions.KeyValueFactory
func (kv *FakeKeyValue) Factory() sessions.KeyValueFactory {
	return kv.Namespace
}

func (kv *FakeKeyValue) Get(_ context.Context, key string) (string, error) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()

	e, ok := (*kv.data)[kv.prefix+key]
	if !ok {
		return "", sessions.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && !kv.nowTime().Before(e.expiresAt) {
		return "", sessions.ErrKeyNotFound
	}
	return e.value, nil
}

func (kv *FakeKeyValue) SetMany(_ context.Context, values map[string]string, ttl time.Duration) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()

	for k, v := range values {
		e := entry{value: v}
		if ttl > 0 {
			e.expiresAt = kv.nowTime().Add(ttl)
		} else if existing, ok := (*kv.data)[kv.prefix+k]; ok {
			e.expiresAt = existing.expiresAt
		}
		(*kv.data)[kv.prefix+k] = e
	}
	return nil
}

func (kv *FakeKeyValue) Delete(_ context.Context, keys ...string) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()

	for _, k := range keys {
		delete(*kv.data, kv.prefix+k)
	}
	return nil
}

// Len reports how many keys are stored across all namespaces
func (kv *FakeKeyValue) Len() int {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	return len(*kv.data)
}

// Put writes a raw value, bypassing the session encoding (test helper).
func (kv *FakeKeyValue) Put(key, value string) {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	(*kv.data)[kv.prefix+key] = entry{value: value}
}
