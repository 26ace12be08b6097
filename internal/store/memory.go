package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. Subscribers get a buffered channel;
// notifications to a full channel are dropped.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[string][]chan string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		values: map[string]string{},
		subs:   map[string][]chan string{},
	}
}

func (m *MemoryStore) Get(_ context.Context, topic string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[topic]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, topic)
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, topic, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[topic] = value
	return nil
}

func (m *MemoryStore) Publish(_ context.Context, topic, value string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[topic] {
		select {
		case ch <- value:
		default:
		}
	}
	return nil
}

func (m *MemoryStore) Subscribe(topic string) <-chan string {
	ch := make(chan string, 64)
	m.mu.Lock()
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()
	return ch
}

func (m *MemoryStore) Delete(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, topic)
}
