// Package source enumerates the images a batch consumes.
//
// A [Source] yields raw encoded images one at a time, in a stable order.
// Two implementations exist:
//
//   - [Dir] / [Files]: local files, filtered by extension and sorted by name
//   - [URLs]: remote images fetched with retry and caching, optionally
//     downloaded ahead of time with [Remote.Prefetch]
//
// Decoding is separate ([Decode]) so that callers can hash the raw bytes
// for result caching before paying for a decode.
package source

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/catbits/pkg/errors"
)

// DefaultExtension is used by Dir when no extensions are given.
const DefaultExtension = ".jpg"

// Item is one encoded source image.
type Item struct {
	Name string
	Data []byte
}

// Source yields items until it returns io.EOF.
//
// An error for a single item (unreadable file, failed download) is returned
// together with the item's name and does not end the sequence; the next
// call moves on to the following item.
type Source interface {
	Next(ctx context.Context) (Item, error)

	// Len returns the total number of items.
	Len() int

	Close() error
}

// Decode decodes an item into an image. With autoOrient the EXIF
// orientation tag of a JPEG is applied; otherwise pixels keep their stored
// order. Supported formats are JPEG, PNG, GIF, BMP, TIFF and WebP.
func Decode(item Item, autoOrient bool) (image.Image, error) {
	if len(item.Data) == 0 {
		return nil, errors.New(errors.ErrCodeImageLoad, "%s: empty image", item.Name)
	}
	img, err := imaging.Decode(bytes.NewReader(item.Data), imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageLoad, err, "decode %s", item.Name)
	}
	return img, nil
}
