package queue

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrItemNotFound is returned by control operations for unknown local ids.
var ErrItemNotFound = errors.New("queue item not found")

// Store is the process-wide mapping from local id to item state.
type Store struct {
	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
	now   func() time.Time
}

// NewStore constructs an empty queue store.
func NewStore() *Store {
	return &Store{
		order: list.New(),
		index: make(map[string]*list.Element),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Put inserts an item or overwrites the existing entry in place. An existing
// entry keeps its position and, if currently claimed, its claim.
func (s *Store) Put(item Item) {
	if item.LocalID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	item.UpdatedAt = now
	if elem, ok := s.index[item.LocalID]; ok {
		current := elem.Value.(*Item)
		if item.CreatedAt.IsZero() {
			item.CreatedAt = current.CreatedAt
		}
		if !current.Available {
			item.Available = false
		}
		elem.Value = &item
		return
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	s.index[item.LocalID] = s.order.PushBack(&item)
}

// Get returns a copy of the item stored under id.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return *elem.Value.(*Item), true
}

// TryClaimNext walks the consumption order and claims the first available
// Waiting item, returning a copy. ok is false when nothing is claimable.
func (s *Store) TryClaimNext() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		item, ok := elem.Value.(*Item)
		if !ok || item == nil {
			continue
		}
		if !item.Available || item.Status != StatusWaiting {
			continue
		}
		item.Available = false
		item.UpdatedAt = s.now()
		return *item, true
	}
	return Item{}, false
}

// Release returns a claimed item to the pool at the back of the order.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[id]
	if !ok {
		return false
	}
	item := elem.Value.(*Item)
	item.Available = true
	item.UpdatedAt = s.now()
	s.order.MoveToBack(elem)
	return true
}

// Update applies fn to the stored item under the store lock. fn must not block.
func (s *Store) Update(id string, fn func(*Item)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[id]
	if !ok {
		return false
	}
	item := elem.Value.(*Item)
	fn(item)
	item.UpdatedAt = s.now()
	return true
}

// Remove deletes the item regardless of state.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) bool {
	elem, ok := s.index[id]
	if !ok {
		return false
	}
	s.order.Remove(elem)
	delete(s.index, id)
	return true
}

// Snapshot returns copies of every item in consumption order.
func (s *Store) Snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		items = append(items, *elem.Value.(*Item))
	}
	return items
}

// CountWhere counts items matching pred. pred runs under the store lock.
func (s *Store) CountWhere(pred func(Item) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if pred(*elem.Value.(*Item)) {
			count++
		}
	}
	return count
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Stats returns item counts keyed by status.
func (s *Store) Stats() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[Status]int)
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		stats[elem.Value.(*Item).Status]++
	}
	return stats
}

// Drain removes every item and returns them in consumption order.
func (s *Store) Drain() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		items = append(items, *elem.Value.(*Item))
	}
	s.order.Init()
	s.index = make(map[string]*list.Element)
	return items
}
