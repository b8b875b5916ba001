package imagecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
)

// SJPG container constants
const (
	SJPGMagic   = "_SJPG__\x00"
	SJPGVersion = "V1.00\x00"

	// SplitHeight is the pixel height of every strip but the last.
	SplitHeight = 16

	// DefaultQuality is the JPEG quality factor used for every strip.
	DefaultQuality = 90

	sjpgFixedHeaderSize = len(SJPGMagic) + len(SJPGVersion) + 4*2
)

var (
	ErrBadMagic     = errors.New("sjpg: bad magic")
	ErrBadVersion   = errors.New("sjpg: unsupported version")
	ErrTruncated    = errors.New("sjpg: truncated data")
	ErrFrameTooLong = errors.New("sjpg: frame exceeds 65535 bytes")
)

// SJPG is a parsed split-JPEG stream.
type SJPG struct {
	Width        uint16
	Height       uint16
	TotalFrames  uint16
	SplitHeight  uint16
	FrameLengths []uint16
	Frames       [][]byte
}

// FrameCount returns the number of strips needed for an image of the given
// height.
func FrameCount(height int) int {
	return (height + SplitHeight - 1) / SplitHeight
}

// EncodeSJPG cuts img into SplitHeight strips, encodes each as an
// independent baseline JPEG, and writes the SJPG container.
func EncodeSJPG(img image.Image, quality int) ([]byte, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return nil, fmt.Errorf("sjpg: invalid image size %dx%d", width, height)
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("sjpg: image type %T cannot be sliced", img)
	}

	total := FrameCount(height)
	frames := make([][]byte, 0, total)
	for y := b.Min.Y; y < b.Max.Y; y += SplitHeight {
		yEnd := y + SplitHeight
		if yEnd > b.Max.Y {
			yEnd = b.Max.Y
		}

		var buf bytes.Buffer
		strip := sub.SubImage(image.Rect(b.Min.X, y, b.Max.X, yEnd))
		if err := jpeg.Encode(&buf, strip, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("sjpg: encode strip at y=%d: %w", y-b.Min.Y, err)
		}
		if buf.Len() > math.MaxUint16 {
			return nil, ErrFrameTooLong
		}
		frames = append(frames, buf.Bytes())
	}

	return marshalSJPG(uint16(width), uint16(height), frames), nil
}

func marshalSJPG(width, height uint16, frames [][]byte) []byte {
	size := sjpgFixedHeaderSize + 2*len(frames)
	for _, f := range frames {
		size += len(f)
	}

	out := make([]byte, 0, size)
	out = append(out, SJPGMagic...)
	out = append(out, SJPGVersion...)
	out = binary.LittleEndian.AppendUint16(out, width)
	out = binary.LittleEndian.AppendUint16(out, height)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(frames)))
	out = binary.LittleEndian.AppendUint16(out, SplitHeight)
	for _, f := range frames {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(f)))
	}
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// ParseSJPG decodes an SJPG container. Frame slices alias data.
func ParseSJPG(data []byte) (*SJPG, error) {
	if len(data) < sjpgFixedHeaderSize {
		return nil, ErrTruncated
	}
	if string(data[:8]) != SJPGMagic {
		return nil, ErrBadMagic
	}
	if string(data[8:14]) != SJPGVersion {
		return nil, ErrBadVersion
	}

	s := &SJPG{
		Width:       binary.LittleEndian.Uint16(data[14:16]),
		Height:      binary.LittleEndian.Uint16(data[16:18]),
		TotalFrames: binary.LittleEndian.Uint16(data[18:20]),
		SplitHeight: binary.LittleEndian.Uint16(data[20:22]),
	}

	offset := sjpgFixedHeaderSize
	tableEnd := offset + 2*int(s.TotalFrames)
	if len(data) < tableEnd {
		return nil, ErrTruncated
	}

	s.FrameLengths = make([]uint16, s.TotalFrames)
	for i := range s.FrameLengths {
		s.FrameLengths[i] = binary.LittleEndian.Uint16(data[offset+2*i:])
	}

	offset = tableEnd
	s.Frames = make([][]byte, s.TotalFrames)
	for i, n := range s.FrameLengths {
		end := offset + int(n)
		if end > len(data) {
			return nil, fmt.Errorf("%w: frame %d needs %d bytes at offset %d, have %d", ErrTruncated, i, n, offset, len(data)-offset)
		}
		s.Frames[i] = data[offset:end]
		offset = end
	}

	if offset != len(data) {
		return nil, fmt.Errorf("sjpg: %d trailing bytes after last frame", len(data)-offset)
	}
	return s, nil
}

// Validate checks that the header geometry is self-consistent.
func (s *SJPG) Validate() error {
	if s.Width == 0 || s.Height == 0 {
		return fmt.Errorf("sjpg: zero dimension %dx%d", s.Width, s.Height)
	}
	if s.SplitHeight == 0 {
		return fmt.Errorf("sjpg: zero split height")
	}
	want := (int(s.Height) + int(s.SplitHeight) - 1) / int(s.SplitHeight)
	if int(s.TotalFrames) != want {
		return fmt.Errorf("sjpg: %d frames for height %d, want %d", s.TotalFrames, s.Height, want)
	}
	return nil
}

// String returns a debug representation of the header
func (s *SJPG) String() string {
	return fmt.Sprintf("SJPG{%dx%d, frames=%d, split=%d}", s.Width, s.Height, s.TotalFrames, s.SplitHeight)
}
