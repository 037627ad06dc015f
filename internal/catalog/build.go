package catalog

import (
	"context"
	"errors"
	"image"
	"path/filepath"

	"card-scanner/internal/descriptor"
	cardimage "card-scanner/internal/image"
)

// ImageLoader decodes a reference image.
type ImageLoader func(path string) (*image.RGBA, error)

// BuildOptions controls catalog generation.
type BuildOptions struct {
	Descriptor descriptor.Config
	// DCT adds the secondary DCT descriptor to every entry.
	DCT bool
	// ImageDir resolves relative image paths.
	ImageDir string
	Load     ImageLoader
}

// DefaultBuildOptions hashes with the scanner's default descriptor and stores
// the DCT descriptor too, so catalogs can serve a non-zero DCT weight.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Descriptor: descriptor.DefaultConfig(), DCT: true}
}

// Skipped records a card that could not be hashed.
type Skipped struct {
	ID  string
	Err error
}

// Build hashes the reference image of every record and returns a catalog
// sorted by set and collector number. Cards whose image is missing or
// unreadable are skipped, not fatal.
func Build(ctx context.Context, records []CardRecord, opts BuildOptions) (*Catalog, []Skipped, error) {
	if err := opts.Descriptor.Validate(); err != nil {
		return nil, nil, err
	}
	load := opts.Load
	if load == nil {
		load = cardimage.Load
	}

	var entries []Entry
	var skipped []Skipped
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		entry, err := buildEntry(rec, opts, load)
		if err != nil {
			skipped = append(skipped, Skipped{ID: rec.ID, Err: err})
			continue
		}
		entries = append(entries, entry)
	}

	SortBySetNumber(entries)
	cat, err := New(opts.Descriptor.GridSize, entries)
	if err != nil {
		return nil, skipped, err
	}
	return cat, skipped, nil
}

func buildEntry(rec CardRecord, opts BuildOptions, load ImageLoader) (Entry, error) {
	if rec.ImagePath == "" {
		return Entry{}, errors.New("no image path")
	}
	path := rec.ImagePath
	if !filepath.IsAbs(path) && opts.ImageDir != "" {
		path = filepath.Join(opts.ImageDir, path)
	}
	img, err := load(path)
	if err != nil {
		return Entry{}, err
	}
	// Landscape cards (battlefields) are hashed in portrait, the way the
	// rectifier presents them.
	if cardimage.IsLandscape(img) {
		img = cardimage.Rotate90CCW(img)
	}

	grid, err := opts.Descriptor.Extract(img)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID:       rec.ID,
		Metadata: rec.Metadata,
		Grid:     descriptor.New(descriptor.Round4(grid.Values)),
	}
	if opts.DCT {
		dct, err := opts.Descriptor.ExtractDCT(img)
		if err != nil {
			return Entry{}, err
		}
		entry.DCT = descriptor.New(descriptor.Round4(dct.Values))
	}
	return entry, nil
}
