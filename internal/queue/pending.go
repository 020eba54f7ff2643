package queue

import (
	"container/list"
	"sync"
)

// Pending is the ordered upstream buffer drained by queue-fill workers.
type Pending struct {
	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

// NewPending constructs an empty pending buffer.
func NewPending() *Pending {
	return &Pending{order: list.New(), index: make(map[string]*list.Element)}
}

// Put adds an entry, overwriting an existing one with the same local id in place.
func (p *Pending) Put(entry PendingEntry) {
	if entry.LocalID == "" {
		entry.LocalID = LocalID(entry.Service, entry.ItemID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem, ok := p.index[entry.LocalID]; ok {
		elem.Value = entry
		return
	}
	p.index[entry.LocalID] = p.order.PushBack(entry)
}

// Pop removes and returns the oldest entry.
func (p *Pending) Pop() (PendingEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	elem := p.order.Front()
	if elem == nil {
		return PendingEntry{}, false
	}
	entry := p.order.Remove(elem).(PendingEntry)
	delete(p.index, entry.LocalID)
	return entry, true
}

// Len returns the number of buffered entries.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Drain removes and returns every entry in order.
func (p *Pending) Drain() []PendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := make([]PendingEntry, 0, p.order.Len())
	for elem := p.order.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, elem.Value.(PendingEntry))
	}
	p.order.Init()
	p.index = make(map[string]*list.Element)
	return entries
}
