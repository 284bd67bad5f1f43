// Package preprocess turns encoded image bytes into the normalized NCHW
// float32 tensor the breed model expects.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/SyedDaiam9101/breed-classifier/internal/inference"
)

const (
	// Size is the square input resolution of the model.
	Size = 160
	// Channels is the number of color planes, in RGB order.
	Channels = 3
)

var (
	// Mean and Std are the ImageNet per-channel statistics, RGB order.
	Mean = [Channels]float64{0.485, 0.456, 0.406}
	Std  = [Channels]float64{0.229, 0.224, 0.225}

	// Filter is the resampling filter used to reach Size x Size. CatmullRom is
	// the bicubic kernel with a = -0.5.
	Filter = imaging.CatmullRom
)

// MaxPixels caps the area an image header may declare. Decoders allocate the
// full pixel buffer from the header, so larger images are rejected unread.
const MaxPixels = 178956970

var (
	ErrDecode          = errors.New("cannot decode image")
	ErrUnsupportedMode = errors.New("unsupported color mode")
)

// Shape returns the tensor shape produced by Preprocess: (1, 3, Size, Size).
func Shape() []int64 {
	return []int64{1, Channels, Size, Size}
}

// Preprocess decodes raw and converts it to a (1, 3, 160, 160) tensor.
func Preprocess(raw []byte) (*inference.Tensor, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// Decode parses raw with every registered decoder, falling back to the
// libwebp decoder for WebP variants the pure Go decoder rejects.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if err := checkDimensions(raw); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err == nil {
		return img, nil
	}

	if webpImg, werr := webp.Decode(bytes.NewReader(raw)); werr == nil {
		return webpImg, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrDecode, err)
}

// checkDimensions reads only the image header and rejects images whose
// declared area exceeds MaxPixels.
func checkDimensions(raw []byte) error {
	var width, height int
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err == nil {
		width, height = cfg.Width, cfg.Height
	} else {
		w, h, _, werr := webp.GetInfo(raw)
		if werr != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		width, height = w, h
	}

	if pixels := int64(width) * int64(height); pixels > MaxPixels {
		return fmt.Errorf("%w: image declares %dx%d pixels, limit is %d", ErrDecode, width, height, MaxPixels)
	}
	return nil
}

// FromImage runs the color conversion, resize, scaling, standardization and
// layout steps on an already decoded image.
func FromImage(img image.Image) (*inference.Tensor, error) {
	rgb, err := ToRGB(img)
	if err != nil {
		return nil, err
	}
	resized := Resize(rgb)
	return inference.NewTensor(Shape(), Normalize(resized))
}

// ToRGB drops alpha and expands grayscale/paletted/CMYK images into opaque
// 8-bit RGB stored as NRGBA.
func ToRGB(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrUnsupportedMode)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnsupportedMode)
	}

	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst, nil
}

// Resize scales img to Size x Size, ignoring aspect ratio.
func Resize(img *image.NRGBA) *image.NRGBA {
	return imaging.Resize(img, Size, Size, Filter)
}

// Normalize scales pixels to [0,1], standardizes each channel and writes them
// in planar CHW order.
func Normalize(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, Channels*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			idx := y*w + x
			for c := 0; c < Channels; c++ {
				v := float64(px[c]) / 255.0
				out[c*plane+idx] = float32((v - Mean[c]) / Std[c])
			}
		}
	}
	return out
}
