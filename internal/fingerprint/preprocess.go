package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultInputSize is the square edge, in pixels, the embedding model expects.
const DefaultInputSize = 160

// rgbChannels is the channel count of every preprocessed tensor.
const rgbChannels = 3

// Tensor is a preprocessed image in height x width x channel order with
// values normalized to [0, 1].
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// At returns the value at row y, column x, channel c.
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

// Nested returns the tensor as [height][width][channels] slices, the layout
// model servers expect for a single batch instance.
func (t *Tensor) Nested() [][][]float32 {
	rows := make([][][]float32, t.Height)
	for y := range rows {
		row := make([][]float32, t.Width)
		for x := range row {
			offset := (y*t.Width + x) * t.Channels
			row[x] = t.Data[offset : offset+t.Channels : offset+t.Channels]
		}
		rows[y] = row
	}
	return rows
}

// Preprocess decodes imageData, resizes it to size x size ignoring the aspect
// ratio, drops any alpha channel and scales pixel values to [0, 1]. Colours of
// translucent pixels are kept as they are, not multiplied by their alpha.
func Preprocess(imageData []byte, size int) (*Tensor, error) {
	if size <= 0 {
		return nil, errors.New("input size must be positive")
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("image has no pixels")
	}

	resized := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Src, nil)

	t := &Tensor{
		Height:   size,
		Width:    size,
		Channels: rgbChannels,
		Data:     make([]float32, size*size*rgbChannels),
	}
	i := 0
	for y := range size {
		for x := range size {
			p := resized.Pix[resized.PixOffset(x, y):]
			t.Data[i] = float32(p[0]) / 255
			t.Data[i+1] = float32(p[1]) / 255
			t.Data[i+2] = float32(p[2]) / 255
			i += rgbChannels
		}
	}
	return t, nil
}
