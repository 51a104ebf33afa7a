package remote

import (
	"context"
	"sync"

	"github.com/mmcdole/playtally/internal/domain"
)

// Memory is an in-process document store. Writes create missing documents.
// Failures can be injected per item to exercise retry paths.
type Memory struct {
	mu       sync.Mutex
	counts   map[string]int
	failures map[string]error
	writes   map[string]int
}

// NewMemory creates an empty in-memory document store
func NewMemory() *Memory {
	return &Memory{
		counts:   make(map[string]int),
		failures: make(map[string]error),
		writes:   make(map[string]int),
	}
}

func (m *Memory) SetPlayCount(ctx context.Context, itemID string, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes[itemID]++
	if err := m.failures[itemID]; err != nil {
		return err
	}
	m.counts[itemID] = count
	return nil
}

func (m *Memory) GetPlayCount(ctx context.Context, itemID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count, ok := m.counts[itemID]
	if !ok {
		return 0, domain.ErrDocumentNotFound
	}
	return count, nil
}

// Fail makes every write for itemID return err; a nil err clears it
func (m *Memory) Fail(itemID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, itemID)
		return
	}
	m.failures[itemID] = err
}

// Writes returns how many write attempts itemID received
func (m *Memory) Writes(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[itemID]
}
