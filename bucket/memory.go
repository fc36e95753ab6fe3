package bucket

import "sync"

// Memory is an in-memory bucket provider.
// It is used in tests and for setups where persistence across restarts
// is not needed.
type Memory struct {
	mu      *sync.RWMutex
	buckets map[string]map[string][]byte
}

func NewMemory() Memory {
	return Memory{
		mu:      &sync.RWMutex{},
		buckets: make(map[string]map[string][]byte),
	}
}

func (m Memory) EnsureBucket(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[name]; !ok {
		m.buckets[name] = make(map[string][]byte)
	}
	return nil
}

func (m Memory) Put(bucket, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	b[key] = value
	return nil
}

func (m Memory) Get(bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := b[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m Memory) Buckets() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	return names, nil
}

func (m Memory) DeleteBucket(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, name)
	return nil
}

func (m Memory) Close() error {
	return nil
}
