package capture

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
)

// PlaceholderProvider draws a deterministic image per URL and viewport instead of rendering
// the page. The same inputs always produce the same bytes.
type PlaceholderProvider struct{}

func NewPlaceholderProvider() *PlaceholderProvider { return &PlaceholderProvider{} }

func (p *PlaceholderProvider) Name() string { return "placeholder" }

func (p *PlaceholderProvider) Capture(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
	if err := ctx.Err(); err != nil {
		return Shot{}, err
	}
	// Downscaled so placeholders stay small; the reported size is the real viewport.
	w, h := spec.Width/4, spec.Height/4
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}

	h32 := fnv.New32a()
	_, _ = h32.Write([]byte(url))
	_, _ = h32.Write([]byte(spec.Name))
	sum := h32.Sum32()
	bg := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}
	bar := color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	header := h / 10
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y < header {
				img.Set(x, y, bar)
			} else {
				img.Set(x, y, bg)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Shot{}, err
	}
	return Shot{
		Image:       buf.Bytes(),
		ContentType: "image/png",
		Width:       spec.Width,
		Height:      spec.Height,
	}, nil
}
