package core

import (
	"hash/fnv"
	"sync"
)

const defaultMemoryShards = 32

// memoryTier is the process-lifetime identifier -> content map.
// Keys are spread across independently locked shards so writers to one
// identifier do not block readers of another.
type memoryTier struct {
	shards []memoryShard
}

type memoryShard struct {
	mu   sync.RWMutex
	data map[ID][]byte
}

func newMemoryTier(n int) *memoryTier {
	if n <= 0 {
		n = defaultMemoryShards
	}
	m := &memoryTier{shards: make([]memoryShard, n)}
	for i := range m.shards {
		m.shards[i].data = make(map[ID][]byte)
	}
	return m
}

func (m *memoryTier) shard(id ID) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(id)) //nolint:errcheck // hash.Hash writes never fail
	return &m.shards[h.Sum32()%uint32(len(m.shards))]
}

// get returns a copy of the stored content.
func (m *memoryTier) get(id ID) ([]byte, bool) {
	s := m.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return clone(value), true
}

// put stores a copy of content, replacing any previous entry.
func (m *memoryTier) put(id ID, content []byte) {
	stored := clone(content)
	s := m.shard(id)
	s.mu.Lock()
	s.data[id] = stored
	s.mu.Unlock()
}

// stats returns the entry count and total content bytes.
func (m *memoryTier) stats() (keys int, bytes int64) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		keys += len(s.data)
		for _, v := range s.data {
			bytes += int64(len(v))
		}
		s.mu.RUnlock()
	}
	return keys, bytes
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
