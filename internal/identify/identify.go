// Package identify ranks catalog entries against a query descriptor by
// cosine similarity.
package identify

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"

	"card-scanner/internal/catalog"
	"card-scanner/internal/descriptor"
)

// Acceptance policy. These are tunable defaults, not part of the ranking.
const (
	// PlausibleThreshold marks a candidate worth showing as a suggestion.
	PlausibleThreshold = 0.55
	// AutoAcceptThreshold is the minimum similarity for continuous scanning
	// to accept a match without user confirmation.
	AutoAcceptThreshold = 0.60
)

// ErrDimensionMismatch is returned when a query descriptor's length differs
// from the catalog's.
var ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

// Options configures ranking.
type Options struct {
	// TopK is the number of candidates returned.
	TopK int
	// DCTWeight blends in DCT similarity as (1-w)*grid + w*dct when both
	// the query and the entry carry a DCT descriptor. Zero disables it.
	DCTWeight float64
	// PlausibleThreshold is the similarity a candidate needs to be offered
	// as a suggestion.
	PlausibleThreshold float64
}

// DefaultOptions returns top-3 ranking on the colour grid only.
func DefaultOptions() Options {
	return Options{TopK: 3, PlausibleThreshold: PlausibleThreshold}
}

// Query is a crop's descriptors in its natural orientation and turned 180
// degrees. Rotated may be empty, in which case only Normal is scored. The DCT
// descriptors are optional.
type Query struct {
	Normal     descriptor.Descriptor
	Rotated    descriptor.Descriptor
	NormalDCT  descriptor.Descriptor
	RotatedDCT descriptor.Descriptor
}

// Candidate is a ranked catalog match.
type Candidate struct {
	Entry      *catalog.Entry
	Similarity float64
	// Rotated is true when the 180-degree orientation scored higher.
	Rotated bool
	// NameConfirmed is set by a verifier that read the card name.
	NameConfirmed bool
}

// Identifier ranks queries against the current catalog. The catalog can be
// swapped at any time; calls in flight finish against the catalog they
// started with.
type Identifier struct {
	opts    Options
	catalog atomic.Pointer[catalog.Catalog]
}

// New creates an identifier. cat may be nil until a catalog is loaded.
func New(cat *catalog.Catalog, opts Options) *Identifier {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	id := &Identifier{opts: opts}
	id.catalog.Store(cat)
	return id
}

// SetCatalog replaces the catalog.
func (id *Identifier) SetCatalog(cat *catalog.Catalog) {
	id.catalog.Store(cat)
}

// Catalog returns the current catalog, nil when none is loaded.
func (id *Identifier) Catalog() *catalog.Catalog {
	return id.catalog.Load()
}

// Plausible reports whether the candidate clears the configured plausible
// threshold.
func (id *Identifier) Plausible(c Candidate) bool {
	return c.Similarity >= id.opts.PlausibleThreshold
}

// Ready reports whether a non-empty catalog is loaded.
func (id *Identifier) Ready() bool {
	return id.Catalog().Len() > 0
}

// Identify returns up to TopK candidates, highest similarity first; equal
// scores keep catalog order. For each entry the better of the normal and
// rotated orientation counts. A missing or empty catalog yields an empty
// result and no error.
func (id *Identifier) Identify(q Query) ([]Candidate, error) {
	cat := id.Catalog()
	if cat.Len() == 0 {
		return []Candidate{}, nil
	}

	want := descriptor.Config{GridSize: cat.GridSize()}.Len()
	if q.Normal.Len() != want {
		return nil, fmt.Errorf("%w: query has %d values, catalog %d", ErrDimensionMismatch, q.Normal.Len(), want)
	}
	hasRotated := q.Rotated.Len() > 0
	if hasRotated && q.Rotated.Len() != want {
		return nil, fmt.Errorf("%w: rotated query has %d values, catalog %d", ErrDimensionMismatch, q.Rotated.Len(), want)
	}
	blend := id.opts.DCTWeight > 0 && q.NormalDCT.Len() == descriptor.DCTLen

	candidates := make([]Candidate, cat.Len())
	for i := 0; i < cat.Len(); i++ {
		e := cat.Entry(i)
		useDCT := blend && e.HasDCT()

		sim := id.score(q.Normal, q.NormalDCT, e, useDCT)
		rotated := false
		if hasRotated {
			useRotatedDCT := useDCT && q.RotatedDCT.Len() == descriptor.DCTLen
			if rs := id.score(q.Rotated, q.RotatedDCT, e, useRotatedDCT); rs > sim {
				sim = rs
				rotated = true
			}
		}
		candidates[i] = Candidate{Entry: e, Similarity: sim, Rotated: rotated}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > id.opts.TopK {
		candidates = candidates[:id.opts.TopK]
	}
	return candidates, nil
}

func (id *Identifier) score(grid, dct descriptor.Descriptor, e *catalog.Entry, useDCT bool) float64 {
	sim := Cosine(grid, e.Grid)
	if useDCT {
		w := id.opts.DCTWeight
		sim = (1-w)*sim + w*Cosine(dct, e.DCT)
	}
	return sim
}

// Cosine returns the cosine similarity of two descriptors using their cached
// norms. A zero vector has similarity 0 with everything.
func Cosine(a, b descriptor.Descriptor) float64 {
	if a.Norm == 0 || b.Norm == 0 {
		return 0
	}
	return floats.Dot(a.Values, b.Values) / (a.Norm * b.Norm)
}
