package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	JPEGQuality = 82
	WebPQuality = 70
)

var (
	ErrEmptyImage       = errors.New("empty image")
	ErrImageTooLarge    = errors.New("image too large")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// ProcessedImage is a normalized listing image ready for upload.
type ProcessedImage struct {
	Hash   string
	JPEG   []byte
	WebP   []byte
	Width  int
	Height int
}

// ImageProcessor decodes uploads, bounds their size and re-encodes them.
type ImageProcessor struct {
	MaxBytes     int64
	MaxDimension int
	EncodeWebP   bool
}

// Process validates content and returns a JPEG (and optionally WebP) rendition
// no larger than MaxDimension on either side.
func (p ImageProcessor) Process(content []byte) (*ProcessedImage, error) {
	if len(content) == 0 {
		return nil, ErrEmptyImage
	}
	if p.MaxBytes > 0 && int64(len(content)) > p.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(content))
	}
	switch http.DetectContentType(content) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return nil, ErrUnsupportedImage
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	maxDim := p.MaxDimension
	if maxDim <= 0 {
		maxDim = 1600
	}
	img := resizeToFit(decoded, maxDim, maxDim)

	out := &ProcessedImage{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}
	if out.JPEG, err = encodeJPEG(img, JPEGQuality); err != nil {
		return nil, err
	}
	if p.EncodeWebP {
		if out.WebP, err = encodeWebP(img, WebPQuality); err != nil {
			return nil, err
		}
	}
	sum := sha256.Sum256(out.JPEG)
	out.Hash = hex.EncodeToString(sum[:])
	return out, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
