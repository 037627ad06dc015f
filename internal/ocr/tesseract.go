// Package ocr reads the printed card name to confirm identifier candidates.
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"card-scanner/internal/cvmat"
	"card-scanner/internal/identify"
	cardimage "card-scanner/internal/image"
	"card-scanner/internal/monitoring"
	"card-scanner/internal/pipeline"
)

// minBarHeight is the name bar height Tesseract reads reliably; smaller
// crops are upscaled to it.
const minBarHeight = 64

// NameReader implements pipeline.Verifier with Tesseract.
type NameReader struct {
	mu     sync.Mutex // gosseract clients are not goroutine-safe
	client *gosseract.Client
}

// NewNameReader creates a reader for the given tessdata language.
func NewNameReader(language string) (*NameReader, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// card names are proper nouns; dictionary correction only hurts
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}

	return &NameReader{client: client}, nil
}

// Close releases OCR resources.
func (r *NameReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		return err
	}
	return nil
}

// Verify implements pipeline.Verifier. OCR failures leave candidates as
// they are.
func (r *NameReader) Verify(crop *image.RGBA, candidates []identify.Candidate) []identify.Candidate {
	text, err := r.ReadName(crop)
	if err != nil {
		monitoring.Logf("ocr: name read failed: %v", err)
		return candidates
	}
	return pipeline.ConfirmByName(text, candidates)
}

// ReadName returns the text of the name bar of an upright crop.
func (r *NameReader) ReadName(crop *image.RGBA) (string, error) {
	b := crop.Bounds()
	bar := cardimage.Crop(crop, pipeline.NameBarRegion.Bounds(b.Dx(), b.Dy()).Add(b.Min))

	mat, err := cvmat.FromRGBA(bar)
	if err != nil {
		return "", err
	}
	defer mat.Close()

	processed := preprocessForOCR(mat)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return "", fmt.Errorf("reader closed")
	}
	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// preprocessForOCR upscales the bar, equalises it locally and binarises it
// to dark text on a light background.
func preprocessForOCR(region gocv.Mat) gocv.Mat {
	scaled := region.Clone()
	if h := region.Rows(); h > 0 && h < minBarHeight {
		scale := float64(minBarHeight) / float64(h)
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// name bars often print light text on a dark banner
	white := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if white < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}
	return binary
}
