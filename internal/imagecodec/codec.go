package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// Format tags the device-native encoding of an Artifact.
type Format string

const (
	FormatPNGIcon   Format = "png-icon"
	FormatSJPGStrip Format = "sjpg-strip"
)

const (
	// AspectTolerance is the relative aspect-ratio difference under which a
	// background is scaled straight to the target instead of matted.
	AspectTolerance = 0.01

	// matteSampleSize bounds the thumbnail whose border is averaged for the
	// matte colour.
	matteSampleSize = 64
)

// Artifact is one encoded image ready for upload.
type Artifact struct {
	Data   []byte
	Width  int
	Height int
	Format Format
}

// EncodeIcon converts the image at sourcePath into an RGBA PNG that fits
// within maxW x maxH. Raster sources are only ever shrunk; SVG sources are
// rendered directly at the fitted size.
func EncodeIcon(sourcePath string, maxW, maxH int) (*Artifact, error) {
	if maxW <= 0 || maxH <= 0 {
		return nil, &ImageError{Kind: ErrEncodeFailed, Path: sourcePath, Err: fmt.Errorf("invalid icon size %dx%d", maxW, maxH)}
	}

	src, err := loadImage(sourcePath, maxW, maxH)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxW || h > maxH {
		w, h = fitWithin(w, h, maxW, maxH)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, &ImageError{Kind: ErrEncodeFailed, Path: sourcePath, Err: err}
	}

	return &Artifact{Data: buf.Bytes(), Width: w, Height: h, Format: FormatPNGIcon}, nil
}

// EncodeSplitStream converts the image at sourcePath into an SJPG stream of
// exactly width x height pixels.
func EncodeSplitStream(sourcePath string, width, height int) (*Artifact, error) {
	if width <= 0 || height <= 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return nil, &ImageError{Kind: ErrEncodeFailed, Path: sourcePath, Err: fmt.Errorf("invalid target size %dx%d", width, height)}
	}

	src, err := loadImage(sourcePath, width, height)
	if err != nil {
		return nil, err
	}

	canvas := Compose(toOpaque(src), width, height)

	data, err := EncodeSJPG(canvas, DefaultQuality)
	if err != nil {
		return nil, &ImageError{Kind: ErrEncodeFailed, Path: sourcePath, Err: err}
	}

	return &Artifact{Data: data, Width: width, Height: height, Format: FormatSJPGStrip}, nil
}

// Compose produces a width x height opaque canvas from src. A source whose
// aspect ratio is within AspectTolerance of the target is scaled to fill
// it. Any other source is fitted inside and centred on a matte of its own
// average border colour.
func Compose(src image.Image, width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	b := src.Bounds()

	if AspectMatches(b.Dx(), b.Dy(), width, height) {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, b, draw.Src, nil)
		return canvas
	}

	matte := MatteColor(src)
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(matte), image.Point{}, draw.Src)

	fw, fh := fitWithin(b.Dx(), b.Dy(), width, height)
	x0 := (width - fw) / 2
	y0 := (height - fh) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+fw, y0+fh), src, b, draw.Src, nil)

	return canvas
}

// AspectMatches reports whether srcW:srcH is within AspectTolerance of
// dstW:dstH.
func AspectMatches(srcW, srcH, dstW, dstH int) bool {
	if srcH == 0 || dstH == 0 || dstW == 0 {
		return false
	}
	src := float64(srcW) / float64(srcH)
	dst := float64(dstW) / float64(dstH)
	return math.Abs(src-dst)/dst <= AspectTolerance
}

// MatteColor downsamples src to at most 64x64 and returns the mean of every
// pixel on the four edges of the downsample.
func MatteColor(src image.Image) color.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > matteSampleSize || h > matteSampleSize {
		w, h = fitWithin(w, h, matteSampleSize, matteSampleSize)
	}

	thumb := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), src, b, draw.Src, nil)

	var sumR, sumG, sumB, n uint64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x != 0 && y != 0 && x != w-1 && y != h-1 {
				continue
			}
			c := thumb.RGBAAt(x, y)
			sumR += uint64(c.R)
			sumG += uint64(c.G)
			sumB += uint64(c.B)
			n++
		}
	}

	return color.RGBA{
		R: uint8((sumR + n/2) / n),
		G: uint8((sumG + n/2) / n),
		B: uint8((sumB + n/2) / n),
		A: 0xFF,
	}
}

// toOpaque drops the alpha channel, keeping each pixel's straight colour.
func toOpaque(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
	return dst
}
