package manager

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-zoox/core-utils/safe"
)

// Manager is a concurrent registry of live sessions keyed by id.
type Manager[T any] struct {
	options *Options[T]
	cache   *safe.Map
	count   atomic.Int64

	// serializes Set and Remove so check and act are one step
	mu sync.Mutex
}

type Options[T any] struct {
	Cache *safe.Map
	// OnRemove is called after an instance leaves the registry.
	OnRemove func(id string, instance T)
}

func New[T any](opts ...*Options[T]) *Manager[T] {
	var options *Options[T]
	cache := safe.NewMap()
	if len(opts) == 1 && opts[0] != nil {
		options = opts[0]

		if options.Cache != nil {
			cache = options.Cache
		}
	}

	return &Manager[T]{
		cache:   cache,
		options: options,
	}
}

func (m *Manager[T]) Get(id string) (T, error) {
	if instance, ok := m.cache.Get(id).(T); ok {
		return instance, nil
	}

	var t T
	return t, fmt.Errorf("id %s not found", id)
}

func (m *Manager[T]) Set(id string, instance T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.Get(id); err == nil {
		return fmt.Errorf("id %s already registered", id)
	}

	m.cache.Set(id, instance)
	m.count.Add(1)
	return nil
}

func (m *Manager[T]) Remove(id string) {
	m.mu.Lock()
	instance, err := m.Get(id)
	if err != nil {
		m.mu.Unlock()
		return
	}

	m.cache.Del(id)
	m.count.Add(-1)
	m.mu.Unlock()

	if m.options != nil && m.options.OnRemove != nil {
		m.options.OnRemove(id, instance)
	}
}

// Count returns the number of registered instances.
func (m *Manager[T]) Count() int {
	return int(m.count.Load())
}

// ForEach visits a snapshot of the registered instances.
func (m *Manager[T]) ForEach(fn func(id string, instance T)) {
	for _, id := range m.cache.Keys() {
		if instance, err := m.Get(id); err == nil {
			fn(id, instance)
		}
	}
}
