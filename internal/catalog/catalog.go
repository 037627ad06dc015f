// Package catalog holds the immutable set of reference cards and their
// precomputed descriptors.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"card-scanner/internal/descriptor"
)

// ErrUnusable is returned when a catalog does not match the extractor
// configuration (grid size or descriptor length). Such a catalog must not be
// used for matching.
var ErrUnusable = errors.New("catalog unusable")

// Metadata is the display information of a card.
type Metadata struct {
	Name        string   `json:"name"`
	Number      int      `json:"number"`
	Code        string   `json:"code,omitempty"`
	Set         string   `json:"set"`
	SetName     string   `json:"setName,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	Rarity      string   `json:"rarity,omitempty"`
	Type        string   `json:"type,omitempty"`
	Energy      *int     `json:"energy,omitempty"`
	Might       *int     `json:"might,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Illustrator string   `json:"illustrator,omitempty"`
	Text        string   `json:"text,omitempty"`
	Orientation string   `json:"orientation,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// Entry is one reference card.
type Entry struct {
	ID       string
	Metadata Metadata
	Grid     descriptor.Descriptor
	// DCT is empty when the catalog was built without DCT descriptors.
	DCT descriptor.Descriptor
}

// HasDCT reports whether the entry carries a DCT descriptor.
func (e Entry) HasDCT() bool {
	return len(e.DCT.Values) > 0
}

// Catalog is an immutable, validated list of entries. It is safe to share
// between goroutines.
type Catalog struct {
	gridSize int
	entries  []Entry
	byID     map[string]int
}

// New validates entries against gridSize and builds a catalog. The catalog
// keeps its own copy of the slice; entry order is preserved.
func New(gridSize int, entries []Entry) (*Catalog, error) {
	if gridSize < 2 {
		return nil, fmt.Errorf("%w: grid size %d", ErrUnusable, gridSize)
	}
	want := descriptor.Config{GridSize: gridSize}.Len()

	c := &Catalog{
		gridSize: gridSize,
		entries:  make([]Entry, len(entries)),
		byID:     make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)

	for i, e := range c.entries {
		if got := e.Grid.Len(); got != want {
			return nil, fmt.Errorf("%w: entry %q has %d values, want %d", ErrUnusable, e.ID, got, want)
		}
		if e.HasDCT() && e.DCT.Len() != descriptor.DCTLen {
			return nil, fmt.Errorf("%w: entry %q has %d DCT values, want %d", ErrUnusable, e.ID, e.DCT.Len(), descriptor.DCTLen)
		}
		if _, dup := c.byID[e.ID]; !dup {
			c.byID[e.ID] = i
		}
	}
	return c, nil
}

// GridSize returns the grid size every descriptor was built with.
func (c *Catalog) GridSize() int {
	return c.gridSize
}

// Len returns the number of entries. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entry returns the i-th entry in catalog order.
func (c *Catalog) Entry(i int) *Entry {
	return &c.entries[i]
}

// Lookup finds an entry by ID.
func (c *Catalog) Lookup(id string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.entries[i], true
}

// SortBySetNumber orders entries by set then collector number, the order
// catalogs are written in.
func SortBySetNumber(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Metadata, entries[j].Metadata
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		return a.Number < b.Number
	})
}
