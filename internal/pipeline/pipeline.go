// Package pipeline chains detection, rectification, description and
// identification for one frame.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"card-scanner/internal/descriptor"
	"card-scanner/internal/detect"
	"card-scanner/internal/identify"
	cardimage "card-scanner/internal/image"
	"card-scanner/internal/rectify"
)

// Verifier re-checks ranked candidates against the upright crop, for example
// by reading the printed name. It may reorder candidates and set
// NameConfirmed but must not change similarities.
type Verifier interface {
	Verify(crop *image.RGBA, candidates []identify.Candidate) []identify.Candidate
}

// Result is the identification of one detected card.
type Result struct {
	Box        detect.OrientedBox
	Candidates []identify.Candidate
}

// Top returns the best candidate, or false when there is none.
func (r Result) Top() (identify.Candidate, bool) {
	if len(r.Candidates) == 0 {
		return identify.Candidate{}, false
	}
	return r.Candidates[0], true
}

// Pipeline runs the per-frame recognition chain.
type Pipeline struct {
	detector   detect.Detector
	identifier *identify.Identifier
	config     descriptor.Config
	useDCT     bool
	verifier   Verifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVerifier adds a candidate verifier run after ranking.
func WithVerifier(v Verifier) Option {
	return func(p *Pipeline) { p.verifier = v }
}

// WithDCT also extracts DCT descriptors for identifiers that blend them.
func WithDCT(enabled bool) Option {
	return func(p *Pipeline) { p.useDCT = enabled }
}

// New creates a pipeline. config must match the catalog the identifier uses.
func New(det detect.Detector, id *identify.Identifier, config descriptor.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		detector:   det,
		identifier: id,
		config:     config,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ready reports whether both the detector and the catalog are usable.
func (p *Pipeline) Ready() bool {
	return p.detector.Status() == detect.StatusReady && p.identifier.Ready()
}

// Precision reports the detector's precision.
func (p *Pipeline) Precision() detect.Precision {
	return p.detector.Precision()
}

// Identify runs every detected box through the chain and returns one result
// per box in detector order. No detections yield an empty slice.
func (p *Pipeline) Identify(ctx context.Context, frame *image.RGBA) ([]Result, error) {
	boxes, err := p.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to detect: %w", err)
	}

	results := make([]Result, 0, len(boxes))
	for _, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.IdentifyBox(frame, box)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Best identifies only the highest-confidence box. It returns nil when no
// card was detected.
func (p *Pipeline) Best(ctx context.Context, frame *image.RGBA) (*Result, error) {
	boxes, err := p.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to detect: %w", err)
	}
	box, ok := detect.Best(boxes)
	if !ok {
		return nil, nil
	}
	res, err := p.IdentifyBox(frame, box)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// IdentifyBox rectifies one box and ranks it against the catalog.
func (p *Pipeline) IdentifyBox(frame *image.RGBA, box detect.OrientedBox) (Result, error) {
	if err := box.Validate(); err != nil {
		return Result{}, err
	}

	crop := rectify.Rectify(frame, box)
	q, err := p.query(crop)
	if err != nil {
		return Result{}, err
	}

	candidates, err := p.identifier.Identify(q)
	if err != nil {
		return Result{}, fmt.Errorf("failed to identify: %w", err)
	}
	if p.verifier != nil && len(candidates) > 0 {
		candidates = p.verifier.Verify(crop, candidates)
	}
	return Result{Box: box, Candidates: candidates}, nil
}

func (p *Pipeline) query(crop *image.RGBA) (identify.Query, error) {
	flipped := cardimage.Rotate180(crop)

	var q identify.Query
	var err error
	if q.Normal, err = p.config.Extract(crop); err != nil {
		return q, fmt.Errorf("failed to extract descriptor: %w", err)
	}
	if q.Rotated, err = p.config.Extract(flipped); err != nil {
		return q, fmt.Errorf("failed to extract descriptor: %w", err)
	}
	if !p.useDCT {
		return q, nil
	}
	if q.NormalDCT, err = p.config.ExtractDCT(crop); err != nil {
		return q, fmt.Errorf("failed to extract DCT descriptor: %w", err)
	}
	if q.RotatedDCT, err = p.config.ExtractDCT(flipped); err != nil {
		return q, fmt.Errorf("failed to extract DCT descriptor: %w", err)
	}
	return q, nil
}
