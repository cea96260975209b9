package rootlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]string
	wait time.Duration
}

func NewMemory(wait time.Duration) *Memory {
	return &Memory{held: map[string]string{}, wait: wait}
}

func (m *Memory) Acquire(ctx context.Context, keys ...string) (func(context.Context) error, error) {
	return acquireAll(ctx, m, keys, uuid.NewString(), m.wait)
}

func (m *Memory) try(_ context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return false, nil
	}
	m.held[key] = token
	return true, nil
}

func (m *Memory) drop(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}
