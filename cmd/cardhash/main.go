// Command cardhash builds the reference catalog from the card database.
// It reads every card row, hashes its reference image with the colour-grid
// (and optionally DCT) descriptor and writes the catalog JSON.
//
// Usage: cardhash [-images dir] [-grid 16] [-dct=false] <cards.db> [output-json]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"card-scanner/internal/catalog"
)

func main() {
	defaults := catalog.DefaultBuildOptions()
	imageDir := flag.String("images", "", "Directory holding card images (default: next to the database)")
	grid := flag.Int("grid", defaults.Descriptor.GridSize, "Descriptor grid size")
	withDCT := flag.Bool("dct", defaults.DCT, "Also store DCT descriptors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <cards.db> [output-json]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nHashes every card image into a catalog file.\n")
		fmt.Fprintf(os.Stderr, "Default output: catalog.json\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	dbPath := flag.Arg(0)
	outputPath := "catalog.json"
	if flag.NArg() >= 2 {
		outputPath = flag.Arg(1)
	}
	if *imageDir == "" {
		*imageDir = filepath.Dir(dbPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Reading cards: %s\n", dbPath)
	records, err := catalog.ReadCardRecords(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading cards: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d cards\n", len(records))

	opts := defaults
	opts.Descriptor = opts.Descriptor.WithGridSize(*grid)
	opts.DCT = *withDCT
	opts.ImageDir = *imageDir
	cat, skipped, err := catalog.Build(ctx, records, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building catalog: %v\n", err)
		os.Exit(1)
	}
	for _, s := range skipped {
		fmt.Printf("  skipped %s: %v\n", s.ID, s.Err)
	}

	if err := cat.WriteFile(outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nWrote %d cards (grid %d, %d skipped) to %s\n", cat.Len(), cat.GridSize(), len(skipped), outputPath)
}
