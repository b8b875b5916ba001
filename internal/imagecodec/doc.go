// Package imagecodec converts source images into the two formats the
// display firmware can decode.
//
// Icons are emitted as RGBA PNG, fitted inside a bounding box. Backgrounds
// are emitted as SJPG, a split-JPEG container whose image is cut into
// 16-pixel strips so the device can decode and discard one strip at a time:
//
//	offset  size  field
//	0       8     magic "_SJPG__\x00"
//	8       6     version "V1.00\x00"
//	14      2     width (uint16, little-endian)
//	16      2     height
//	18      2     total frames
//	20      2     split height
//	22      2*N   frame byte lengths
//	...           concatenated baseline JPEG frames
//
// Sources may be PNG, JPEG, GIF, BMP, WebP or SVG. SVG is rasterized at
// the target resolution before any other processing.
//
// When a background's aspect ratio differs from the display's by more than
// 1%, the image is fitted onto a matte whose colour is the average of the
// source's border pixels, instead of being stretched or cropped.
//
// Every function here is a pure transform over file contents and is safe to
// call concurrently.
package imagecodec
