package image

import (
	"image"
	"runtime"
	"sync"
)

// parallelRows runs fn over [0,h) split into horizontal stripes, one per CPU.
func parallelRows(h int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (h + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}

// BGRBytes packs an RGBA frame into tightly packed BGR rows, OpenCV's
// default channel order. Alpha is dropped.
func BGRBytes(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*3)
	parallelRows(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			si := img.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * w * 3
			for x := 0; x < w; x++ {
				out[di+0] = img.Pix[si+2]
				out[di+1] = img.Pix[si+1]
				out[di+2] = img.Pix[si+0]
				si += 4
				di += 3
			}
		}
	})
	return out
}

// FromBGRBytes unpacks BGR rows into an opaque RGBA frame.
func FromBGRBytes(data []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	parallelRows(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			si := y * w * 3
			di := y * img.Stride
			for x := 0; x < w; x++ {
				img.Pix[di+0] = data[si+2]
				img.Pix[di+1] = data[si+1]
				img.Pix[di+2] = data[si+0]
				img.Pix[di+3] = 255
				si += 3
				di += 4
			}
		}
	})
	return img
}

// FromGrayBytes expands single-channel rows into an opaque RGBA frame.
func FromGrayBytes(data []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range data[:w*h] {
		o := (i/w)*img.Stride + (i%w)*4
		img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = v, v, v, 255
	}
	return img
}
