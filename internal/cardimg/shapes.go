package cardimg

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/*.svg
var shapeFiles embed.FS

type shape string

const (
	shapeBlack shape = "black"
	shapeWhite shape = "white"
)

type shapeCacheKey struct {
	shape  shape
	width  int
	height int
}

var (
	shapeCache   = map[shapeCacheKey]image.Image{}
	shapeCacheMu sync.RWMutex
)

// renderShape rasterizes the card outline once per size; the result is shared and must not be mutated.
func renderShape(s shape, width, height int) (image.Image, error) {
	key := shapeCacheKey{shape: s, width: width, height: height}

	shapeCacheMu.RLock()
	if img, ok := shapeCache[key]; ok {
		shapeCacheMu.RUnlock()
		return img, nil
	}
	shapeCacheMu.RUnlock()

	name := fmt.Sprintf("assets/%s.svg", s)
	data, err := shapeFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read card asset %s: %w", name, err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse card svg: %w", err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(width)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(height)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)
	icon.Draw(raster, 1.0)

	shapeCacheMu.Lock()
	shapeCache[key] = img
	shapeCacheMu.Unlock()

	return img, nil
}
