package soft

import (
	"image"
	"image/color"
	"math"
)

// Target is a float RGBA color attachment holding premultiplied values.
type Target struct {
	Width  int
	Height int
	Pix    []float32
}

func NewTarget(width, height int) *Target {
	return &Target{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

func (t *Target) Clear(c [4]float32) {
	for i := 0; i < len(t.Pix); i += 4 {
		copy(t.Pix[i:i+4], c[:])
	}
}

func (t *Target) At(x, y int) [4]float32 {
	o := (y*t.Width + x) * 4
	return [4]float32{t.Pix[o], t.Pix[o+1], t.Pix[o+2], t.Pix[o+3]}
}

// blend applies One / OneMinusSrcAlpha to both color and alpha.
func (t *Target) blend(x, y int, src [4]float32) {
	o := (y*t.Width + x) * 4
	inv := 1 - src[3]
	for c := 0; c < 4; c++ {
		t.Pix[o+c] = src[c] + inv*t.Pix[o+c]
	}
}

// Image converts to 8-bit. image.RGBA is premultiplied too, so values map 1:1.
func (t *Target) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			p := t.At(x, y)
			a := to8(p[3])
			img.SetRGBA(x, y, color.RGBA{R: min(to8(p[0]), a), G: min(to8(p[1]), a), B: min(to8(p[2]), a), A: a})
		}
	}
	return img
}

func to8(v float32) uint8 {
	v = min(max(v, 0), 1)
	return uint8(math.Round(float64(v) * 255))
}
