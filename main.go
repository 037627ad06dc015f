// Package main provides the live card scanner: it reads camera frames,
// identifies cards against the catalog and keeps a pending list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"card-scanner/internal/app"
	"card-scanner/internal/capture"
	"card-scanner/internal/config"
	"card-scanner/internal/scan"
	"card-scanner/internal/version"
)

const appTitle = "Card Scanner"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	camera := flag.String("camera", "", "Camera index or video path (overrides config)")
	catalogPath := flag.String("catalog", "", "Path to catalog JSON (overrides config)")
	modelPath := flag.String("model", "", "Path to ONNX detector model (overrides config)")
	manual := flag.Bool("manual", false, "Keep the cooldown when no card is seen")
	flag.Parse()

	log.Printf("Starting %s v%s", appTitle, version.String())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *camera != "" {
		cfg.CameraDevice = *camera
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	if *manual {
		cfg.AutoScan = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	state := app.NewState(cfg)
	defer state.Close()

	state.On(app.EventDetectorStatus, func(data interface{}) {
		if st, ok := data.(app.DetectorStatus); ok {
			if st.Err != nil {
				log.Printf("Detector: %s (%v)", st.Status, st.Err)
			} else {
				log.Printf("Detector: %s", st.Status)
			}
		}
	})
	state.On(app.EventCatalogReloaded, func(interface{}) {
		log.Printf("Catalog reloaded from %s", cfg.CatalogPath)
	})
	state.On(app.EventCardDetected, func(data interface{}) {
		if line, ok := formatDetection(data); ok {
			fmt.Println(line)
		}
	})

	if err := state.LoadCatalog(); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	state.WatchCatalog()

	if err := state.LoadDetector(ctx); err != nil {
		return err
	}
	pipe, err := state.BuildPipeline()
	if err != nil {
		return err
	}

	cam, err := capture.Open(cfg.CameraDevice)
	if err != nil {
		return err
	}
	defer cam.Close()
	w, h := cam.Dimensions()
	log.Printf("Camera %s: %dx%d, detector %s", cfg.CameraDevice, w, h, pipe.Precision())

	ctrl := scan.New(cfg.Scan(), cam, pipe, state.HandleScan)
	ctrl.Start(ctx)
	<-ctx.Done()
	ctrl.Stop()

	printSummary(ctrl.Stats(), state.Pending)
	return nil
}

// formatDetection renders a card-detected event payload as one line. It
// reports false for payloads that are not scan events.
func formatDetection(data interface{}) (string, bool) {
	ev, ok := data.(scan.Event)
	if !ok || ev.Entry == nil {
		return "", false
	}
	return fmt.Sprintf("%s  %-12s %-32s sim=%.3f conf=%.2f",
		ev.Timestamp.Format("15:04:05.000"), ev.Identity, ev.Entry.Metadata.Name, ev.Similarity, ev.Confidence), true
}

func printSummary(stats scan.Stats, pending *scan.Pending) {
	fmt.Printf("\nTicks: %d  skipped: %d  no match: %d  suppressed: %d  errors: %d\n",
		stats.Ticks, stats.Skipped, stats.NoMatch, stats.Suppressed, stats.Errors)

	items := pending.Items()
	if len(items) == 0 {
		fmt.Println("No cards scanned.")
		return
	}
	fmt.Printf("\n%-4s %-12s %-32s %s\n", "Qty", "Code", "Name", "Set")
	for _, it := range items {
		fmt.Printf("%-4d %-12s %-32s %s\n", it.Quantity, it.Identity, it.Entry.Metadata.Name, it.Entry.Metadata.SetName)
	}
	fmt.Printf("Total: %d cards\n", pending.Total())
}
