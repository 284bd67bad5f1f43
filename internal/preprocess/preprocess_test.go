package preprocess

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	return buf.Bytes()
}

// gradient creates a non-square RGB image with varied pixel values
func gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func TestPreprocess_ShapeAndType(t *testing.T) {
	for _, size := range [][2]int{{500, 500}, {640, 480}, {32, 200}, {160, 160}, {1, 1}} {
		raw := encodePNG(t, gradient(size[0], size[1]))

		tensor, err := Preprocess(raw)
		if err != nil {
			t.Fatalf("Preprocess(%dx%d) failed: %v", size[0], size[1], err)
		}
		if !tensor.HasShape(1, 3, 160, 160) {
			t.Errorf("%dx%d: expected shape (1,3,160,160), got %v with %d values",
				size[0], size[1], tensor.Shape, len(tensor.Data))
		}
	}
}

func TestPreprocess_BlackImageNormalization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 500, 500))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	tensor, err := Preprocess(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	plane := Size * Size
	for c := 0; c < Channels; c++ {
		expected := float32((0 - Mean[c]) / Std[c])
		for i := 0; i < plane; i++ {
			if got := tensor.Data[c*plane+i]; got != expected {
				t.Fatalf("channel %d index %d: got %v, expected %v", c, i, got, expected)
			}
		}
	}
}

func TestPreprocess_PlanarChannelOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	tensor, err := Preprocess(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	plane := Size * Size
	expected := [Channels]float32{
		float32((1 - Mean[0]) / Std[0]),
		float32((0 - Mean[1]) / Std[1]),
		float32((0 - Mean[2]) / Std[2]),
	}
	for c := 0; c < Channels; c++ {
		if got := tensor.Data[c*plane+plane/2]; math.Abs(float64(got-expected[c])) > 1e-6 {
			t.Errorf("channel %d: got %v, expected %v", c, got, expected[c])
		}
	}
}

func TestPreprocess_Grayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 200
	}

	tensor, err := Preprocess(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	plane := Size * Size
	for c := 0; c < Channels; c++ {
		expected := float32((200.0/255.0 - Mean[c]) / Std[c])
		if got := tensor.Data[c*plane]; math.Abs(float64(got-expected)) > 1e-6 {
			t.Errorf("channel %d: got %v, expected %v", c, got, expected)
		}
	}
}

func TestToRGB_DropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 20, 30, 0x40
	}

	rgb, err := ToRGB(img)
	if err != nil {
		t.Fatalf("ToRGB failed: %v", err)
	}
	for i := 0; i < len(rgb.Pix); i += 4 {
		if rgb.Pix[i] != 10 || rgb.Pix[i+1] != 20 || rgb.Pix[i+2] != 30 || rgb.Pix[i+3] != 0xff {
			t.Fatalf("pixel %d: got %v, expected [10 20 30 255]", i/4, rgb.Pix[i:i+4])
		}
	}
	if img.Pix[3] != 0x40 {
		t.Error("ToRGB modified its input")
	}
}

func TestToRGB_EmptyImage(t *testing.T) {
	_, err := ToRGB(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("Expected ErrUnsupportedMode, got %v", err)
	}
}

func TestPreprocess_JPEG(t *testing.T) {
	tensor, err := Preprocess(encodeJPEG(t, gradient(300, 200)))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if !tensor.HasShape(Shape()...) {
		t.Errorf("Unexpected shape %v", tensor.Shape)
	}
}

func TestPreprocess_Deterministic(t *testing.T) {
	raw := encodeJPEG(t, gradient(333, 251))

	a, err := Preprocess(raw)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	b, err := Preprocess(raw)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	for i := range a.Data {
		if math.Float32bits(a.Data[i]) != math.Float32bits(b.Data[i]) {
			t.Fatalf("value %d differs between runs: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestPreprocess_DecodeError(t *testing.T) {
	inputs := map[string][]byte{
		"empty":     nil,
		"text":      []byte("definitely not an image"),
		"truncated": encodePNG(t, gradient(50, 50))[:40],
	}
	for name, raw := range inputs {
		tensor, err := Preprocess(raw)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
		if tensor != nil {
			t.Errorf("%s: expected nil tensor on error", name)
		}
	}
}

// headerOnlyPNG returns a PNG whose IHDR declares width x height RGBA pixels
// followed by an empty IDAT.
func headerOnlyPNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	writeChunk := func(typ string, data []byte) {
		var word [4]byte
		binary.BigEndian.PutUint32(word[:], uint32(len(data)))
		buf.Write(word[:])
		buf.WriteString(typ)
		buf.Write(data)
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		binary.BigEndian.PutUint32(word[:], crc.Sum32())
		buf.Write(word[:])
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	writeChunk("IHDR", ihdr)
	writeChunk("IDAT", nil)
	writeChunk("IEND", nil)
	return buf.Bytes()
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	raw := headerOnlyPNG(200000, 200000)
	if len(raw) > 100 {
		t.Fatalf("Expected a tiny payload, got %d bytes", len(raw))
	}

	img, err := Decode(raw)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode, got %v", err)
	}
	if img != nil {
		t.Error("Expected nil image for oversized header")
	}

	tensor, err := Preprocess(raw)
	if !errors.Is(err, ErrDecode) || tensor != nil {
		t.Errorf("Expected ErrDecode and nil tensor from Preprocess, got %v", err)
	}
}

func TestCheckDimensions_AtLimit(t *testing.T) {
	// 13377 x 13377 is just under MaxPixels.
	if err := checkDimensions(headerOnlyPNG(13377, 13377)); err != nil {
		t.Errorf("Expected header within limit to pass, got %v", err)
	}
	if err := checkDimensions(headerOnlyPNG(13378, 13378)); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode just over the limit, got %v", err)
	}
}
