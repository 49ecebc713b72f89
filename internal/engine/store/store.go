package store

import (
	"context"
	"sync"
)

type (
	// Store persists the engine's state snapshot. The engine is the sole
	// writer; snapshots are opaque blobs to everything else.
	Store interface {
		// Load returns the last snapshot, or (nil, nil) if none exists.
		Load(ctx context.Context) ([]byte, error)
		Save(ctx context.Context, data []byte) error
	}

	// Memory is an in-process store, used in tests.
	Memory struct {
		mu   sync.Mutex
		data []byte
	}
)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	cpy := make([]byte, len(m.data))
	copy(cpy, m.data)
	return cpy, nil
}

func (m *Memory) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]byte, len(data))
	copy(cpy, data)
	m.data = cpy
	return nil
}
