package dataset

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Store is a thread-safe in-memory holder of uploaded datasets.
// Datasets are session-scoped snapshots, not persisted records: when the
// store reaches capacity the least recently used dataset is evicted.
type Store struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

// NewStore creates a store holding at most maxSize datasets.
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 32
	}
	return &Store{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Put stores a dataset, evicting the least recently used one at capacity.
func (s *Store) Put(ds *domain.Dataset) error {
	if ds == nil || ds.ID == "" {
		return fmt.Errorf("dataset with an ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[ds.ID]; ok {
		s.order.MoveToFront(elem)
		elem.Value = ds
		return nil
	}

	elem := s.order.PushFront(ds)
	s.items[ds.ID] = elem

	for s.order.Len() > s.maxSize {
		s.removeOldest()
	}
	return nil
}

// Get retrieves a dataset and marks it recently used.
func (s *Store) Get(id string) (*domain.Dataset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	return elem.Value.(*domain.Dataset), true
}

// Delete removes a dataset. Deleting an unknown ID is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		s.order.Remove(elem)
		delete(s.items, id)
	}
}

// Len returns the number of stored datasets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *Store) removeOldest() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	ds := elem.Value.(*domain.Dataset)
	s.order.Remove(elem)
	delete(s.items, ds.ID)
}
