package machines

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore keeps records in process memory. Each machine has its own slot
// holding an immutable *Record; an upsert builds a fresh Record and swaps the
// pointer, so readers see either the old or the new record in full. The map
// lock is only held to find or create a slot.
type MemoryStore struct {
	mu     sync.RWMutex
	slots  map[string]*atomic.Pointer[Record]
	closed atomic.Bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[string]*atomic.Pointer[Record]),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, machineID, clientID string, runningPrograms []string, now time.Time) (Record, error) {
	if s.closed.Load() {
		return Record{}, unavailable("upsert machine", nil)
	}
	if err := ctx.Err(); err != nil {
		return Record{}, unavailable("upsert machine", err)
	}

	rec := &Record{
		MachineID:       machineID,
		ClientID:        clientID,
		RunningPrograms: cloneStrings(runningPrograms),
		LastSeen:        now,
	}
	s.slot(machineID).Store(rec)

	return rec.clone(), nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]Record, error) {
	if s.closed.Load() {
		return nil, unavailable("list machines", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list machines", err)
	}

	s.mu.RLock()
	result := make([]Record, 0, len(s.slots))
	for _, slot := range s.slots {
		if rec := slot.Load(); rec != nil {
			result = append(result, rec.clone())
		}
	}
	s.mu.RUnlock()

	sortByMachineID(result)
	return result, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return unavailable("ping", nil)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *MemoryStore) slot(machineID string) *atomic.Pointer[Record] {
	s.mu.RLock()
	slot, ok := s.slots[machineID]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok = s.slots[machineID]; ok {
		return slot
	}
	slot = &atomic.Pointer[Record]{}
	s.slots[machineID] = slot
	return slot
}
