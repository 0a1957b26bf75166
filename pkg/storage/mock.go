package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStorage keeps encoded slots in process memory. It backs the
// "memory" storage backend and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	slots     map[string]map[string][]byte
	pingError error
	saveError error

	deleteError error
	deleteFails int // remaining DeleteAllSlots calls that fail
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory slot store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		slots: make(map[string]map[string][]byte),
	}
}

// SetPingError configures Ping to fail with err; nil restores success.
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures SaveSlot to fail with err; nil restores success.
func (m *MemoryStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// FailDeletes makes the next n DeleteAllSlots calls fail with err.
func (m *MemoryStorage) FailDeletes(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteFails, m.deleteError = n, err
}

// PutRaw stores undecoded bytes under a slot, for corruption tests.
func (m *MemoryStorage) PutRaw(key, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(key)[name] = data
}

func (m *MemoryStorage) bucket(key string) map[string][]byte {
	b, ok := m.slots[key]
	if !ok {
		b = make(map[string][]byte)
		m.slots[key] = b
	}
	return b
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveSlot(ctx context.Context, slot *SaveSlot) error {
	if slot == nil {
		return errors.New("slot cannot be nil")
	}
	data, err := EncodeSlot(slot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.bucket(slot.Key)[slot.Name] = data
	return nil
}

func (m *MemoryStorage) LoadSlot(ctx context.Context, key, name string) (*SaveSlot, error) {
	m.mu.RLock()
	data, ok := m.slots[key][name]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodeSlot(data)
}

func (m *MemoryStorage) DeleteSlot(ctx context.Context, key, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.slots[key]; ok {
		delete(b, name)
		if len(b) == 0 {
			delete(m.slots, key)
		}
	}
	return nil
}

func (m *MemoryStorage) ListSlots(ctx context.Context, key string) ([]SlotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]SlotInfo, 0, len(m.slots[key]))
	for name, data := range m.slots[key] {
		slot, err := DecodeSlot(data)
		if err != nil {
			// still listed so it can be overwritten or purged
			infos = append(infos, SlotInfo{Name: name})
			continue
		}
		infos = append(infos, slot.Info())
	}
	SortSlotInfos(infos)
	return infos, nil
}

func (m *MemoryStorage) DeleteAllSlots(ctx context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteFails > 0 {
		m.deleteFails--
		return 0, m.deleteError
	}
	n := len(m.slots[key])
	delete(m.slots, key)
	return n, nil
}

func (m *MemoryStorage) ListKeys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.slots))
	for k := range m.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SortSlotInfos orders listings with the default slot first, then by name.
func SortSlotInfos(infos []SlotInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
}
