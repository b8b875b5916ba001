package imagecodec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

// writePNG writes a w x h image whose outermost ring is edge and whose
// interior is fill.
func writePNG(t *testing.T, w, h int, edge, fill color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fill
			if x < w/20+1 || y < h/20+1 || x >= w-w/20-1 || y >= h-h/20-1 {
				c = edge
			}
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return path
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	return img
}

var (
	red  = color.RGBA{R: 200, G: 20, B: 20, A: 255}
	blue = color.RGBA{R: 10, G: 20, B: 220, A: 255}
)

func TestEncodeIcon(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"shrink wide", 256, 128, 64, 64, 64, 32},
		{"shrink tall", 100, 400, 64, 64, 16, 64},
		{"already fits", 32, 24, 64, 64, 32, 24},
		{"exact box", 64, 64, 64, 64, 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePNG(t, tt.w, tt.h, red, blue)

			art, err := EncodeIcon(path, tt.maxW, tt.maxH)
			if err != nil {
				t.Fatalf("EncodeIcon() error = %v", err)
			}
			if art.Format != FormatPNGIcon {
				t.Errorf("Format = %v, want %v", art.Format, FormatPNGIcon)
			}
			if art.Width != tt.wantW || art.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", art.Width, art.Height, tt.wantW, tt.wantH)
			}

			img := decodePNG(t, art.Data)
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("decoded size = %v, want %dx%d", img.Bounds(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestEncodeIconBMP(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	path := filepath.Join(t.TempDir(), "icon.bmp")
	f, _ := os.Create(path)
	if err := bmp.Encode(f, img); err != nil {
		t.Fatalf("bmp.Encode() error = %v", err)
	}
	f.Close()

	art, err := EncodeIcon(path, 48, 48)
	if err != nil {
		t.Fatalf("EncodeIcon() error = %v", err)
	}
	if art.Width != 48 || art.Height != 48 {
		t.Errorf("size = %dx%d, want 48x48", art.Width, art.Height)
	}
}

func TestEncodeIconSVG(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50">
  <rect x="0" y="0" width="100" height="50" fill="#ff0000"/>
</svg>`
	path := filepath.Join(t.TempDir(), "logo.svg")
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		t.Fatal(err)
	}

	art, err := EncodeIcon(path, 64, 64)
	if err != nil {
		t.Fatalf("EncodeIcon() error = %v", err)
	}
	if art.Width != 64 || art.Height != 32 {
		t.Errorf("size = %dx%d, want 64x32", art.Width, art.Height)
	}

	img := decodePNG(t, art.Data)
	r, g, b, a := img.At(32, 16).RGBA()
	if r>>8 < 250 || g>>8 > 5 || b>>8 > 5 || a>>8 < 250 {
		t.Errorf("centre pixel = (%d,%d,%d,%d), want opaque red", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestEncodeIconErrors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "junk.png")
	os.WriteFile(garbage, []byte("not an image"), 0644)

	tests := []struct {
		name   string
		path   string
		w, h   int
		wantFn func(error) bool
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.png"), 64, 64, IsUnopenable},
		{"undecodable", garbage, 64, 64, IsUnopenable},
		{"zero box", garbage, 0, 64, IsEncodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeIcon(tt.path, tt.w, tt.h)
			if err == nil {
				t.Fatal("EncodeIcon() should fail")
			}
			if !tt.wantFn(err) {
				t.Errorf("EncodeIcon() error = %v, wrong kind", err)
			}
		})
	}
}

func TestAspectMatches(t *testing.T) {
	tests := []struct {
		sw, sh, dw, dh int
		want           bool
	}{
		{800, 480, 800, 480, true},
		{1600, 960, 800, 480, true},
		{1605, 960, 800, 480, true},
		{1920, 1080, 800, 480, false},
		{480, 800, 800, 480, false},
		{0, 0, 800, 480, false},
	}

	for _, tt := range tests {
		if got := AspectMatches(tt.sw, tt.sh, tt.dw, tt.dh); got != tt.want {
			t.Errorf("AspectMatches(%d,%d,%d,%d) = %v, want %v", tt.sw, tt.sh, tt.dw, tt.dh, got, tt.want)
		}
	}
}

func TestMatteColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 640))
	for y := 0; y < 640; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, blue)
		}
	}
	// solid frame wide enough to survive the 64x64 downsample
	for y := 0; y < 640; y++ {
		for x := 0; x < 640; x++ {
			if x < 40 || y < 40 || x >= 600 || y >= 600 {
				img.Set(x, y, red)
			}
		}
	}

	got := MatteColor(img)
	if got != red {
		t.Errorf("MatteColor() = %v, want %v", got, red)
	}
}

func TestComposeMatte(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			src.Set(x, y, red)
		}
	}

	canvas := Compose(src, 800, 480)
	if canvas.Bounds().Dx() != 800 || canvas.Bounds().Dy() != 480 {
		t.Fatalf("canvas = %v, want 800x480", canvas.Bounds())
	}

	// A uniform source yields a matte of the same colour, so the pillarbox
	// area matches the pasted image.
	if c := canvas.RGBAAt(10, 240); c != red {
		t.Errorf("matte pixel = %v, want %v", c, red)
	}
	if c := canvas.RGBAAt(400, 240); c != red {
		t.Errorf("centre pixel = %v, want %v", c, red)
	}
}

func TestComposeDirectScale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1600, 960))
	for y := 0; y < 960; y++ {
		for x := 0; x < 1600; x++ {
			c := blue
			if x < 800 {
				c = red
			}
			src.Set(x, y, c)
		}
	}

	canvas := Compose(src, 800, 480)
	if canvas.Bounds().Dx() != 800 || canvas.Bounds().Dy() != 480 {
		t.Fatalf("canvas = %v, want 800x480", canvas.Bounds())
	}
	if c := canvas.RGBAAt(5, 5); c != red {
		t.Errorf("left pixel = %v, want %v (no matte when aspect matches)", c, red)
	}
	if c := canvas.RGBAAt(795, 475); c != blue {
		t.Errorf("right pixel = %v, want %v", c, blue)
	}
}

func TestEncodeSplitStream(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		w, h       int
	}{
		{"mismatched aspect takes matte path", 1920, 1080, 800, 480},
		{"matched aspect", 1600, 960, 800, 480},
		{"short final strip", 100, 100, 50, 50},
		{"single strip", 64, 8, 64, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePNG(t, tt.srcW, tt.srcH, red, blue)

			art, err := EncodeSplitStream(path, tt.w, tt.h)
			if err != nil {
				t.Fatalf("EncodeSplitStream() error = %v", err)
			}
			if art.Format != FormatSJPGStrip || art.Width != tt.w || art.Height != tt.h {
				t.Errorf("artifact = %v %dx%d, want %v %dx%d", art.Format, art.Width, art.Height, FormatSJPGStrip, tt.w, tt.h)
			}

			s, err := ParseSJPG(art.Data)
			if err != nil {
				t.Fatalf("ParseSJPG() error = %v", err)
			}
			if err := s.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}

			wantFrames := (tt.h + 15) / 16
			if int(s.TotalFrames) != wantFrames {
				t.Errorf("TotalFrames = %d, want %d", s.TotalFrames, wantFrames)
			}
			if int(s.Width) != tt.w || int(s.Height) != tt.h || s.SplitHeight != 16 {
				t.Errorf("header = %v, want %dx%d split 16", s, tt.w, tt.h)
			}

			rows := 0
			for i, frame := range s.Frames {
				if len(frame) != int(s.FrameLengths[i]) {
					t.Errorf("frame %d length = %d, table says %d", i, len(frame), s.FrameLengths[i])
				}
				img, err := jpeg.Decode(bytes.NewReader(frame))
				if err != nil {
					t.Fatalf("frame %d does not decode: %v", i, err)
				}
				wantH := 16
				if i == len(s.Frames)-1 && tt.h%16 != 0 {
					wantH = tt.h % 16
				}
				if img.Bounds().Dx() != tt.w || img.Bounds().Dy() != wantH {
					t.Errorf("frame %d = %v, want %dx%d", i, img.Bounds(), tt.w, wantH)
				}
				rows += img.Bounds().Dy()
			}
			if rows != tt.h {
				t.Errorf("strips cover %d rows, want %d", rows, tt.h)
			}
		})
	}
}

func TestEncodeSplitStreamExampleFrameCount(t *testing.T) {
	path := writePNG(t, 1920, 1080, red, blue)

	art, err := EncodeSplitStream(path, 800, 480)
	if err != nil {
		t.Fatalf("EncodeSplitStream() error = %v", err)
	}
	s, err := ParseSJPG(art.Data)
	if err != nil {
		t.Fatalf("ParseSJPG() error = %v", err)
	}
	if s.TotalFrames != 30 {
		t.Errorf("TotalFrames = %d, want 30", s.TotalFrames)
	}
}

func TestEncodeSplitStreamInvalidSize(t *testing.T) {
	path := writePNG(t, 10, 10, red, blue)
	for _, size := range [][2]int{{0, 10}, {10, -1}, {70000, 10}} {
		if _, err := EncodeSplitStream(path, size[0], size[1]); !IsEncodeFailed(err) {
			t.Errorf("EncodeSplitStream(%v) error = %v, want encode failed", size, err)
		}
	}
}

func TestEncodeIconKeepsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	img.SetNRGBA(16, 16, color.NRGBA{R: 255, A: 255})

	path := filepath.Join(t.TempDir(), "sparse.png")
	f, _ := os.Create(path)
	png.Encode(f, img)
	f.Close()

	art, err := EncodeIcon(path, 64, 64)
	if err != nil {
		t.Fatalf("EncodeIcon() error = %v", err)
	}
	out := decodePNG(t, art.Data)
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	if _, _, _, a := out.At(16, 16).RGBA(); a != 0xFFFF {
		t.Errorf("centre alpha = %d, want opaque", a)
	}
}
