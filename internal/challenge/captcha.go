package challenge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphWidth  = 7  // basicfont.Face7x13 advance
	glyphHeight = 13 // basicfont.Face7x13 height
	captchaPad  = 6
	renderScale = 3
	noiseLines  = 4
)

// RenderCode rasters a challenge code to a PNG: the code drawn with per-glyph
// vertical jitter, upscaled, with noise strokes and speckle on top.
func RenderCode(code string, rng *rand.Rand) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("empty code")
	}

	w := len(code)*glyphWidth + 2*captchaPad
	h := glyphHeight + 2*captchaPad

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.RGBA{245, 245, 245, 255}), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.RGBA{30, 30, 60, 255}),
		Face: basicfont.Face7x13,
	}
	for i, r := range code {
		jitter := rng.Intn(2*captchaPad) - captchaPad/2
		drawer.Dot = fixed.P(captchaPad+i*glyphWidth, captchaPad/2+glyphHeight+jitter/2)
		drawer.DrawString(string(r))
	}

	img := scaleNearest(small, renderScale)
	addNoise(img, rng)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode captcha png: %w", err)
	}
	return buf.Bytes(), nil
}

func scaleNearest(src *image.RGBA, scale int) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	for y := 0; y < dst.Bounds().Dy(); y++ {
		for x := 0; x < dst.Bounds().Dx(); x++ {
			dst.Set(x, y, src.At(bounds.Min.X+x/scale, bounds.Min.Y+y/scale))
		}
	}
	return dst
}

func addNoise(img *image.RGBA, rng *rand.Rand) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	for i := 0; i < noiseLines; i++ {
		shade := uint8(100 + rng.Intn(100))
		c := color.RGBA{shade, shade, shade, 255}
		x0, y0 := rng.Intn(w), rng.Intn(h)
		x1, y1 := rng.Intn(w), rng.Intn(h)
		drawLine(img, x0, y0, x1, y1, c)
	}

	speckles := w * h / 60
	for i := 0; i < speckles; i++ {
		shade := uint8(rng.Intn(256))
		img.Set(rng.Intn(w), rng.Intn(h), color.RGBA{shade, shade, shade, 255})
	}
}

// drawLine draws a line with the Bresenham algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
