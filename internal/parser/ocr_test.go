package parser

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

type fakeEngine struct {
	text  string
	err   error
	input []byte
}

func (e *fakeEngine) ImageToText(pngData []byte) (string, error) {
	e.input = pngData
	return e.text, e.err
}

// twoTonePNG renders a synthetic image with a dark region on a light
// background, the shape OCR preprocessing is supposed to separate.
func twoTonePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if x > 5 && x < 15 && y > 5 && y < 15 {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			} else {
				img.Set(x, y, color.RGBA{230, 230, 230, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	engine := &fakeEngine{text: "  Hello deck  \n"}
	ocr := NewOCR(engine, testLogger())

	got := ocr.ExtractText(twoTonePNG(t))
	if got != "Hello deck" {
		t.Errorf("ExtractText() = %q, want %q", got, "Hello deck")
	}
	if engine.input == nil {
		t.Fatal("engine never received the preprocessed image")
	}

	// The engine must receive a binarized image: only pure black and white.
	img, err := png.Decode(bytes.NewReader(engine.input))
	if err != nil {
		t.Fatalf("engine input is not a png: %v", err)
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y != 0 && g.Y != 255 {
				t.Fatalf("pixel (%d,%d) = %d, want 0 or 255", x, y, g.Y)
			}
		}
	}
}

func TestExtractTextNeverFails(t *testing.T) {
	cases := []struct {
		name string
		ocr  *OCR
		data []byte
	}{
		{"engine error", NewOCR(&fakeEngine{err: errors.New("tesseract crashed")}, testLogger()), nil},
		{"undecodable image", NewOCR(&fakeEngine{text: "unused"}, testLogger()), []byte("not an image")},
		{"nil engine", NewOCR(nil, testLogger()), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if data == nil {
				data = twoTonePNG(t)
			}
			if got := tc.ocr.ExtractText(data); got != "" {
				t.Errorf("ExtractText() = %q, want empty on failure", got)
			}
		})
	}
}

func TestOtsuBinarizeSeparatesTones(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		if i < 50 {
			gray.Pix[i] = 40
		} else {
			gray.Pix[i] = 200
		}
	}

	out := otsuBinarize(gray)
	for i, px := range out.Pix {
		want := uint8(0)
		if i >= 50 {
			want = 255
		}
		if px != want {
			t.Fatalf("pixel %d = %d, want %d", i, px, want)
		}
	}
}

func TestGrayscalePreservesBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	gray := grayscale(img)
	if gray.Bounds() != img.Bounds() {
		t.Errorf("bounds = %v, want %v", gray.Bounds(), img.Bounds())
	}
}
