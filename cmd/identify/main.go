// Command identify runs card detection and identification on a still image
// and prints every detected box with its top candidates.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"card-scanner/internal/app"
	"card-scanner/internal/config"
	cardimage "card-scanner/internal/image"
)

func main() {
	imagePath := flag.String("image", "", "Path to photo (JPEG, PNG, WebP or TIFF)")
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	catalogPath := flag.String("catalog", "", "Path to catalog JSON (overrides config)")
	modelPath := flag.String("model", "", "Path to ONNX detector model (overrides config)")
	useOCR := flag.Bool("ocr", false, "Confirm candidates by reading the name bar")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: identify -image <path> [-catalog catalog.json] [-model card-obb.onnx] [-ocr]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	cfg.OCR = cfg.OCR || *useOCR

	frame, err := cardimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded image: %dx%d pixels\n", frame.Bounds().Dx(), frame.Bounds().Dy())

	state := app.NewState(cfg)
	defer state.Close()

	if err := state.LoadCatalog(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := state.LoadDetector(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load detector: %v\n", err)
		os.Exit(1)
	}
	pipe, err := state.BuildPipeline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Catalog: %d cards, detector: %s\n", state.Identifier.Catalog().Len(), pipe.Precision())

	results, err := pipe.Identify(ctx, frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Identification failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDetected %d cards:\n", len(results))
	for i, res := range results {
		b := res.Box
		fmt.Printf("\n#%d  center (%.1f, %.1f)  size %.1fx%.1f  angle %.1f°  conf %.2f\n",
			i+1, b.CX, b.CY, b.W, b.H, b.Angle*180/math.Pi, b.Confidence)
		fmt.Printf("  %-4s %-12s %-32s %10s %8s %6s\n", "Rank", "Code", "Name", "Similarity", "Rotated", "Name")
		fmt.Printf("  %s\n", strings.Repeat("-", 78))
		for r, c := range res.Candidates {
			mark := ""
			if !state.Identifier.Plausible(c) {
				mark = " (weak)"
			}
			fmt.Printf("  %-4d %-12s %-32s %10.4f %8v %6v%s\n",
				r+1, c.Entry.ID, c.Entry.Metadata.Name, c.Similarity, c.Rotated, c.NameConfirmed, mark)
		}
	}
}
