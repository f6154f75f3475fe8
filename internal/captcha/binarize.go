package captcha

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Binarize converts a captured challenge image to pure black and
// white. threshold selects the cutoff luminance in [1,255]; pass 0 to
// derive it from the image's own average brightness, which holds up
// better across the varying contrast of refreshed challenge images.
func Binarize(raw []byte, threshold int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode challenge image: %w", err)
	}

	gray := imaging.Grayscale(src)
	bounds := gray.Bounds()

	cutoff := uint32(threshold) << 8
	if threshold <= 0 {
		var sum uint64
		var n uint64
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, _, _, _ := gray.At(x, y).RGBA()
				sum += uint64(r)
				n++
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("challenge image has no pixels")
		}
		cutoff = uint32(sum / n)
	}

	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, _, _, _ := gray.At(x, y).RGBA()
			var v uint8
			if r >= cutoff {
				v = 255
			}
			dst.Pix[dst.PixOffset(x, y)] = v
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode binarized image: %w", err)
	}
	return buf.Bytes(), nil
}
