package scan

import (
	"sync"
	"time"

	"card-scanner/internal/catalog"
)

// Item is one identity in the pending list.
type Item struct {
	Identity  string
	Entry     *catalog.Entry
	Quantity  int
	FirstSeen time.Time
	LastSeen  time.Time
}

// Pending accumulates emitted events into per-identity quantities, in the
// order identities were first seen. It is safe for concurrent use.
type Pending struct {
	mu    sync.Mutex
	order []string
	items map[string]*Item
}

// NewPending creates an empty list.
func NewPending() *Pending {
	return &Pending{items: make(map[string]*Item)}
}

// Add records one more copy of the event's card.
func (p *Pending) Add(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if it, ok := p.items[ev.Identity]; ok {
		it.Quantity++
		it.LastSeen = ev.Timestamp
		return
	}
	p.items[ev.Identity] = &Item{
		Identity:  ev.Identity,
		Entry:     ev.Entry,
		Quantity:  1,
		FirstSeen: ev.Timestamp,
		LastSeen:  ev.Timestamp,
	}
	p.order = append(p.order, ev.Identity)
}

// Increment adds one to an existing identity. It reports false for unknown
// identities.
func (p *Pending) Increment(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, ok := p.items[identity]
	if !ok {
		return false
	}
	it.Quantity++
	return true
}

// Decrement removes one copy; the identity is dropped when none remain.
func (p *Pending) Decrement(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, ok := p.items[identity]
	if !ok {
		return false
	}
	it.Quantity--
	if it.Quantity <= 0 {
		p.removeLocked(identity)
	}
	return true
}

// Remove drops an identity entirely.
func (p *Pending) Remove(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(identity)
}

func (p *Pending) removeLocked(identity string) {
	if _, ok := p.items[identity]; !ok {
		return
	}
	delete(p.items, identity)
	for i, id := range p.order {
		if id == identity {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Items returns a copy of the list in first-seen order.
func (p *Pending) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Item, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.items[id])
	}
	return out
}

// Total returns the sum of all quantities.
func (p *Pending) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, it := range p.items {
		total += it.Quantity
	}
	return total
}

// Clear empties the list.
func (p *Pending) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = nil
	p.items = make(map[string]*Item)
}
