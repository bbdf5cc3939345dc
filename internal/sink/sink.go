// Package sink provides the output destinations for flattened match data.
package sink

import (
	"sync"

	"ltd2-harvester/internal/flatten"
)

// Sink receives batches of flattened tables. Implementations must tolerate
// empty tables within a batch.
type Sink interface {
	// Append persists one batch. The caller may reuse the dataset after
	// Append returns.
	Append(d *flatten.Dataset) error
	Close() error
}

// MemorySink accumulates batches in memory, the tabular-object output mode.
type MemorySink struct {
	mu   sync.Mutex
	data *flatten.Dataset
}

// NewMemorySink creates an accumulating sink with the given table schemas.
func NewMemorySink(opts flatten.Options) *MemorySink {
	return &MemorySink{data: flatten.NewDataset(opts)}
}

func (m *MemorySink) Append(d *flatten.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Merge(d)
}

func (m *MemorySink) Close() error {
	return nil
}

// Dataset returns the accumulated tables.
func (m *MemorySink) Dataset() *flatten.Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}
