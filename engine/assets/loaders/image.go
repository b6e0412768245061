package loaders

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type ImageLoader struct {
	FlipY bool
}

// DecodeImage decodes png, jpeg, bmp, tiff or webp into non-premultiplied RGBA.
func DecodeImage(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}
	if nrgba, ok := src.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba, nil
	}
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst, nil
}

// Load decodes the file at path into tightly packed RGBA8 pixels.
func (il *ImageLoader) Load(path string) (*metadata.ImageResourceData, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	return il.FromImage(img), nil
}

func (il *ImageLoader) FromImage(img *image.NRGBA) *metadata.ImageResourceData {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	rowBytes := w * 4
	pixels := make([]uint8, rowBytes*h)
	for y := 0; y < h; y++ {
		srcY := y
		if il.FlipY {
			srcY = h - 1 - y
		}
		copy(pixels[y*rowBytes:(y+1)*rowBytes], img.Pix[srcY*img.Stride:srcY*img.Stride+rowBytes])
	}
	return &metadata.ImageResourceData{
		ChannelCount: 4,
		Width:        uint32(w),
		Height:       uint32(h),
		Pixels:       pixels,
	}
}
