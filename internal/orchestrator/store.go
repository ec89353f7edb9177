package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

var (
	ErrNotFound         = errors.New("strategy not found")
	ErrStrategyDisabled = errors.New("strategy is disabled")
)

// Store persists strategy records and the executions they produced.
type Store interface {
	Save(ctx context.Context, rec strategy.Record) error
	Get(ctx context.Context, id string) (strategy.Record, error)
	List(ctx context.Context) ([]strategy.Record, error)
	AppendExecution(ctx context.Context, strategyID string, exec order.Execution) error
}

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]strategy.Record
	executions map[string][]order.Execution
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]strategy.Record),
		executions: make(map[string][]order.Execution),
	}
}

func (m *MemoryStore) Save(_ context.Context, rec strategy.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (strategy.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return strategy.Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) List(_ context.Context) ([]strategy.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]strategy.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AppendExecution(_ context.Context, strategyID string, exec order.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[strategyID] = append(m.executions[strategyID], exec)
	return nil
}

// ExecutionsFor returns the journal of one strategy.
func (m *MemoryStore) ExecutionsFor(strategyID string) []order.Execution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]order.Execution(nil), m.executions[strategyID]...)
}
