package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"card-scanner/internal/descriptor"
)

type fileCatalog struct {
	GridSize int         `json:"gridSize"`
	Cards    []fileEntry `json:"cards"`
}

type fileEntry struct {
	ID string `json:"id"`
	Metadata
	F []float64 `json:"f"`
	D []float64 `json:"d,omitempty"`
}

// Load decodes a JSON catalog. When gridSize is positive the file must have
// been built with that grid size, otherwise ErrUnusable is returned.
func Load(r io.Reader, gridSize int) (*Catalog, error) {
	var file fileCatalog
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if gridSize > 0 && file.GridSize != gridSize {
		return nil, fmt.Errorf("%w: catalog grid size %d, extractor uses %d", ErrUnusable, file.GridSize, gridSize)
	}

	entries := make([]Entry, 0, len(file.Cards))
	for _, fe := range file.Cards {
		e := Entry{
			ID:       fe.ID,
			Metadata: fe.Metadata,
			Grid:     descriptor.New(fe.F),
		}
		if len(fe.D) > 0 {
			e.DCT = descriptor.New(fe.D)
		}
		entries = append(entries, e)
	}
	return New(file.GridSize, entries)
}

// LoadFile loads a catalog from a JSON file.
func LoadFile(path string, gridSize int) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Load(f, gridSize)
}

// Write encodes the catalog as JSON.
func (c *Catalog) Write(w io.Writer) error {
	file := fileCatalog{GridSize: c.gridSize, Cards: make([]fileEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		file.Cards = append(file.Cards, fileEntry{
			ID:       e.ID,
			Metadata: e.Metadata,
			F:        e.Grid.Values,
			D:        e.DCT.Values,
		})
	}
	if err := json.NewEncoder(w).Encode(file); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return nil
}

// WriteFile writes the catalog to path via a temporary file and rename, so
// readers never see a partial catalog.
func (c *Catalog) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}
