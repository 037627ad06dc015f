// Package app wires configuration, catalog, detector and scanner together
// and fans out application events.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"card-scanner/internal/catalog"
	"card-scanner/internal/config"
	"card-scanner/internal/detect"
	"card-scanner/internal/detect/onnx"
	"card-scanner/internal/identify"
	"card-scanner/internal/monitoring"
	"card-scanner/internal/ocr"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/scan"
)

// EventType identifies different application events.
type EventType int

const (
	EventCatalogLoaded EventType = iota
	EventCatalogReloaded
	EventDetectorStatus
	EventCardDetected
	EventPendingChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// DetectorStatus is the payload of EventDetectorStatus.
type DetectorStatus struct {
	Status detect.Status
	Err    error
}

// State owns the long-lived components of a scanner process.
type State struct {
	mu sync.RWMutex

	Config     *config.Config
	Identifier *identify.Identifier
	Detector   detect.Detector
	Pipeline   *pipeline.Pipeline
	Pending    *scan.Pending

	watcher   *catalog.Watcher
	closers   []io.Closer
	listeners map[EventType][]EventListener
}

// NewState creates the application state with no catalog or detector yet.
func NewState(cfg *config.Config) *State {
	return &State{
		Config:     cfg,
		Identifier: identify.New(nil, cfg.Identify()),
		Pending:    scan.NewPending(),
		listeners:  make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadCatalog loads the configured catalog and hands it to the identifier.
func (s *State) LoadCatalog() error {
	cat, err := catalog.LoadFile(s.Config.CatalogPath, s.Config.GridSize)
	if err != nil {
		return err
	}
	s.Identifier.SetCatalog(cat)
	monitoring.Logf("catalog: %d entries, grid %d", cat.Len(), cat.GridSize())
	s.Emit(EventCatalogLoaded, cat)
	return nil
}

// WatchCatalog reloads the catalog whenever its file changes. It does
// nothing when the watch interval is zero.
func (s *State) WatchCatalog() {
	interval := s.Config.CatalogWatchInterval()
	if interval <= 0 {
		return
	}
	w := catalog.NewWatcher(s.Config.CatalogPath, s.Config.GridSize, interval)
	w.OnReload(func(cat *catalog.Catalog) {
		s.Identifier.SetCatalog(cat)
		s.Emit(EventCatalogReloaded, cat)
	})
	w.Start()

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
}

// LoadDetector loads the ONNX model. When the model is missing or fails to
// load and the heuristic is allowed, the heuristic detector is used instead.
func (s *State) LoadDetector(ctx context.Context) error {
	var model detect.Detector
	var loadErr error

	if _, err := os.Stat(s.Config.ModelPath); err == nil {
		det := onnx.New(s.Config.ModelPath, s.Config.Detect())
		det.OnChange(func(status detect.Status, err error) {
			s.Emit(EventDetectorStatus, DetectorStatus{Status: status, Err: err})
		})
		if loadErr = det.Load(ctx); loadErr == nil {
			model = det
		} else {
			det.Close()
		}
	} else {
		loadErr = fmt.Errorf("model %s: %w", s.Config.ModelPath, err)
	}

	selected := detect.Select(model, s.Config.AllowHeuristic, detect.DefaultHeuristicParams())
	if selected == nil {
		return fmt.Errorf("no detector available: %w", loadErr)
	}
	if model == nil {
		monitoring.Logf("detector: %v; using %s fallback", loadErr, selected.Precision())
		s.Emit(EventDetectorStatus, DetectorStatus{Status: selected.Status()})
	}

	s.mu.Lock()
	s.Detector = selected
	s.closers = append(s.closers, selected)
	s.mu.Unlock()
	return nil
}

// BuildPipeline assembles the recognition pipeline from the loaded detector,
// adding the OCR name check when enabled. OCR setup failures only disable
// the check.
func (s *State) BuildPipeline() (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Detector == nil {
		return nil, errors.New("detector not loaded")
	}

	opts := []pipeline.Option{pipeline.WithDCT(s.Config.DCTWeight > 0)}
	if s.Config.OCR {
		reader, err := ocr.NewNameReader(s.Config.OCRLanguage)
		if err != nil {
			monitoring.Logf("ocr: disabled: %v", err)
		} else {
			opts = append(opts, pipeline.WithVerifier(reader))
			s.closers = append(s.closers, reader)
		}
	}

	s.Pipeline = pipeline.New(s.Detector, s.Identifier, s.Config.Descriptor(), opts...)
	return s.Pipeline, nil
}

// HandleScan is the scan controller callback: it records the card in the
// pending list and notifies listeners.
func (s *State) HandleScan(ev scan.Event) {
	s.Pending.Add(ev)
	s.Emit(EventCardDetected, ev)
	s.Emit(EventPendingChanged, s.Pending.Items())
}

// Close stops the catalog watcher and releases detector and OCR resources.
func (s *State) Close() error {
	s.mu.Lock()
	w := s.watcher
	closers := s.closers
	s.watcher, s.closers = nil, nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
