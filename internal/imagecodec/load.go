package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// loadImage reads and decodes path. SVG sources are rasterized to fit
// within maxW x maxH.
func loadImage(path string, maxW, maxH int) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImageError{Kind: ErrUnopenable, Path: path, Err: err}
	}

	if isSVG(path, data) {
		img, err := rasterizeSVG(data, maxW, maxH)
		if err != nil {
			return nil, &ImageError{Kind: ErrUnopenable, Path: path, Err: err}
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageError{Kind: ErrUnopenable, Path: path, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &ImageError{Kind: ErrUnopenable, Path: path, Err: fmt.Errorf("image has no pixels")}
	}
	return img, nil
}

func isSVG(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.TrimSpace(string(head))
	return strings.HasPrefix(s, "<svg") || (strings.HasPrefix(s, "<?xml") && strings.Contains(s, "<svg"))
}

// rasterizeSVG renders an SVG document at the largest size that fits inside
// maxW x maxH while keeping the viewBox aspect ratio.
func rasterizeSVG(data []byte, maxW, maxH int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		vw, vh = float64(maxW), float64(maxH)
	}
	w, h := fitWithin(int(math.Round(vw)), int(math.Round(vh)), maxW, maxH)

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	return rgba, nil
}

// fitWithin scales srcW x srcH by the largest factor that keeps it inside
// maxW x maxH. Neither result dimension drops below 1.
func fitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return maxW, maxH
	}
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > maxW {
		w = maxW
	}
	if h > maxH {
		h = maxH
	}
	return w, h
}
