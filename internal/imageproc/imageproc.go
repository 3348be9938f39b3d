// Package imageproc normalises uploaded team photos.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	MaxWidth    = 1920
	JPEGQuality = 90
)

// FitWidth scales img down to maxWidth keeping the aspect ratio. Narrower
// images are returned unchanged.
func FitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Flatten composites img over an opaque white background. JPEG has no alpha
// channel, so transparent pixels would otherwise encode as black.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// TeamPhoto decodes a jpeg, png or gif image, bounds its width by MaxWidth
// and re-encodes it as JPEG on a white background.
func TeamPhoto(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imageproc: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(FitWidth(img, MaxWidth)), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("imageproc: encode: %w", err)
	}

	return buf.Bytes(), nil
}
