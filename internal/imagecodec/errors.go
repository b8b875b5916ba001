package imagecodec

import (
	"errors"
	"fmt"
)

// ImageErrorKind categorizes codec failures.
type ImageErrorKind int

const (
	// ErrUnopenable means the source could not be read or decoded.
	ErrUnopenable ImageErrorKind = iota
	// ErrEncodeFailed means the output could not be produced.
	ErrEncodeFailed
)

// String returns a human-readable error kind name
func (k ImageErrorKind) String() string {
	switch k {
	case ErrUnopenable:
		return "unopenable"
	case ErrEncodeFailed:
		return "encode failed"
	default:
		return "unknown"
	}
}

// ImageError reports a failure to convert one source image.
type ImageError struct {
	Kind ImageErrorKind
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("image: %s: %v", e.Kind, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// IsUnopenable reports whether err is an ImageError of kind ErrUnopenable.
func IsUnopenable(err error) bool {
	var ie *ImageError
	return errors.As(err, &ie) && ie.Kind == ErrUnopenable
}

// IsEncodeFailed reports whether err is an ImageError of kind ErrEncodeFailed.
func IsEncodeFailed(err error) bool {
	var ie *ImageError
	return errors.As(err, &ie) && ie.Kind == ErrEncodeFailed
}
