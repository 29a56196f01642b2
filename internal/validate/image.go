package validate

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const maxImageEdge = 512

// NormalizeImage decodes an uploaded image (JPEG, PNG, or WebP),
// downscales it so neither edge exceeds 512px, and re-encodes it as JPEG
// for the similarity index and the quality model. Undecodable data passes
// through untouched; the downstream models tolerate it better than losing
// the post.
func NormalizeImage(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxImageEdge || h > maxImageEdge {
		scale := float64(maxImageEdge) / float64(w)
		if h > w {
			scale = float64(maxImageEdge) / float64(h)
		}
		dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, src, &jpeg.Options{Quality: 85}); err != nil {
		return data
	}
	return out.Bytes()
}
