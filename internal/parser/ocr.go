package parser

import (
	"bytes"
	"image"
	"image/png"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/otiai10/gosseract/v2"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// Engine 是底层 OCR 引擎的契约，输入为 PNG 编码的图像。
type Engine interface {
	ImageToText(pngData []byte) (string, error)
}

// TesseractEngine 通过 gosseract 调用本机 Tesseract。
// gosseract 的 Client 不是并发安全的，因此每次调用新建一个。
type TesseractEngine struct {
	Languages []string
}

// ImageToText 对 PNG 图像执行 OCR 并返回识别出的文本。
func (e *TesseractEngine) ImageToText(pngData []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(e.Languages) > 0 {
		if err := client.SetLanguage(e.Languages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", err
	}
	return client.Text()
}

// OCR 是解析器使用的文本回退提取器。
// 仅当幻灯片/页面的主文本层为空时才会被调用，不做无条件识别。
type OCR struct {
	engine Engine
	logger *logger.Logger
}

// NewOCR 创建一个 OCR 回退提取器。
func NewOCR(engine Engine, log *logger.Logger) *OCR {
	return &OCR{engine: engine, logger: log}
}

// ExtractText 对一张光栅图像执行 预处理 -> OCR 并返回纯文本。
// 任何内部失败（解码失败、引擎失败）都吞掉并返回空串，绝不向调用方抛错。
func (o *OCR) ExtractText(imageData []byte) string {
	if o == nil || o.engine == nil {
		return ""
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		o.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "ocr_decode"}).Warn("OCR: failed to decode image")
		return ""
	}

	// 预处理：灰度化 + Otsu 二值化，提高识别率。
	processed := otsuBinarize(grayscale(img))

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		o.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "ocr_encode"}).Warn("OCR: failed to encode preprocessed image")
		return ""
	}

	text, err := o.engine.ImageToText(buf.Bytes())
	if err != nil {
		o.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "ocr_engine"}).Warn("OCR: engine failed")
		return ""
	}
	return strings.TrimSpace(text)
}

// grayscale 把任意图像转换为 8 位灰度图。
func grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// otsuBinarize 用 Otsu 法选取全局阈值并把灰度图二值化为黑白两色。
func otsuBinarize(gray *image.Gray) *image.Gray {
	var hist [256]int
	for _, px := range gray.Pix {
		hist[px]++
	}
	total := len(gray.Pix)
	if total == 0 {
		return gray
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	// 在 0..255 上最大化类间方差。
	var sumB, wB float64
	var maxVariance float64
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		variance := wB * wF * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			threshold = t
		}
	}

	out := image.NewGray(gray.Bounds())
	for i, px := range gray.Pix {
		if int(px) > threshold {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}
