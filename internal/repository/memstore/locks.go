package memstore

import (
	"sort"
	"sync"
)

// roomLocks hands out one mutex per room id.
type roomLocks struct {
	mu sync.Mutex
	m  map[uint64]*sync.Mutex
}

func (l *roomLocks) get(id uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[uint64]*sync.Mutex)
	}
	m, ok := l.m[id]
	if !ok {
		m = new(sync.Mutex)
		l.m[id] = m
	}
	return m
}

// lock acquires every room in ascending order and returns the release func.
func (l *roomLocks) lock(ids []uint64) func() {
	ordered := uniqueSorted(ids)
	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		m := l.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func uniqueSorted(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
