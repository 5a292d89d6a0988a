package parser

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/storage"
	"PitchAdvisor/pkg/logger"
)

// pdfRenderDPI 对应 2x 缩放的整页渲染（PDF 基准 72 DPI）。
const pdfRenderDPI = 144

// PDFParser 把 PDF 文档按页转换为规范化幻灯片。
// 每页独立产出两类图像工件：内嵌图片与整页渲染图；
// image_reference 规范化为整页渲染图，因为它对纯文本页也始终可产出。
type PDFParser struct {
	storage storage.Gateway
	ocr     *OCR
	logger  *logger.Logger
}

// NewPDFParser 创建一个 PDF 解析器。
func NewPDFParser(gw storage.Gateway, ocr *OCR, log *logger.Logger) *PDFParser {
	return &PDFParser{storage: gw, ocr: ocr, logger: log}
}

// Parse 解析 PDF 文件，每页产出一张幻灯片。
func (p *PDFParser) Parse(ctx context.Context, input ParseInput) (*ParseResult, error) {
	doc, err := fitz.NewFromMemory(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid pdf: %v", ErrUnsupportedFormat, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrCorruptInput)
	}

	// 内嵌图片一次性整体提取（pdfcpu），失败只影响该工件，不影响解析。
	embedded := p.extractEmbeddedImages(ctx, input.DeckID, input.Data)

	// 文本层回退 reader，只在 MuPDF 提取为空时使用。
	fallback := newTextLayerFallback(input.Data)

	metadata := DeckMetadata{SourceFormat: models.FormatPDF}
	if format, ok := doc.Metadata()["format"]; ok {
		metadata.PDFVersion = format
	}

	slides := make([]SlideData, 0, total)
	for n := 0; n < total; n++ {
		slide := p.extractPage(ctx, input.DeckID, doc, fallback, embedded[n+1], n)
		slides = append(slides, slide)
		if slide.ImageObjectKey != "" {
			metadata.HasImages = true
		}
	}

	metadata.TotalSlides = len(slides)
	return &ParseResult{Slides: slides, Metadata: metadata}, nil
}

// extractPage 提取单页。n 是 0 起始的页索引，幻灯片编号为 n+1。
func (p *PDFParser) extractPage(ctx context.Context, deckID string, doc *fitz.Document, fallback *textLayerFallback, pageEmbeds []ArtifactResult, n int) SlideData {
	slideNumber := n + 1
	slide := SlideData{SlideNumber: slideNumber, Notes: ""} // PDF 没有演讲者备注

	text, err := doc.Text(n)
	if err != nil || strings.TrimSpace(text) == "" {
		text = fallback.pageText(slideNumber)
	}

	// 整页渲染图：固定 2x 缩放，作为规范的 image_reference。
	renderKey, renderPNG, renderArtifact := p.renderPage(ctx, deckID, doc, n)

	slide.Images = append(slide.Images, renderArtifact)
	slide.Images = append(slide.Images, pageEmbeds...)

	// 规范引用优先整页渲染图；渲染失败时退回第一张内嵌图。
	slide.ImageObjectKey = renderKey
	if slide.ImageObjectKey == "" {
		for _, a := range pageEmbeds {
			if a.Status == ArtifactStored {
				slide.ImageObjectKey = a.Key
				break
			}
		}
	}

	// 无文本层的纯图像页走 OCR 回退。
	if strings.TrimSpace(text) == "" && renderPNG != nil {
		text = p.ocr.ExtractText(renderPNG)
	}

	slide.Title, slide.Content = splitPageText(text, slideNumber)

	hasEmbedded := false
	for _, a := range pageEmbeds {
		if a.Status == ArtifactStored {
			hasEmbedded = true
			break
		}
	}

	extras := PDFSlideExtras{
		TextBlocks:        countTextBlocks(text),
		HasEmbeddedImages: hasEmbedded,
	}
	if bounds, err := doc.Bound(n); err == nil {
		extras.PageWidth = float64(bounds.Dx())
		extras.PageHeight = float64(bounds.Dy())
	}
	slide.Extras = extras
	return slide
}

// renderPage 以固定 2x 缩放渲染整页并上传。任何失败都退化为空 key。
func (p *PDFParser) renderPage(ctx context.Context, deckID string, doc *fitz.Document, n int) (string, []byte, ArtifactResult) {
	slideNumber := n + 1

	img, err := doc.ImageDPI(n, pdfRenderDPI)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "pdf_render"}).
			WithPayload(map[string]interface{}{"slide_number": slideNumber}).Warn("Failed to render page image")
		return "", nil, ArtifactResult{Kind: "render", Status: ArtifactFailed, Reason: err.Error()}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, ArtifactResult{Kind: "render", Status: ArtifactFailed, Reason: err.Error()}
	}

	key := storage.SlideRenderKey(deckID, slideNumber)
	if _, err := p.storage.Upload(ctx, key, buf.Bytes(), "image/png"); err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "storage_error"}).
			WithPayload(map[string]interface{}{"slide_number": slideNumber}).Warn("Failed to upload page render")
		return "", buf.Bytes(), ArtifactResult{Kind: "render", Status: ArtifactFailed, Reason: err.Error()}
	}

	return key, buf.Bytes(), ArtifactResult{Kind: "render", Status: ArtifactStored, Key: key}
}

// extractEmbeddedImages 用 pdfcpu 提取全文档的内嵌图片并上传，
// 按页号归组返回每页的工件结果。整体失败时返回空映射并记一条警告。
func (p *PDFParser) extractEmbeddedImages(ctx context.Context, deckID string, data []byte) map[int][]ArtifactResult {
	result := make(map[int][]ArtifactResult)

	images, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, model.NewDefaultConfiguration())
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "pdf_images"}).Warn("Embedded image extraction failed")
		return result
	}

	perPageIndex := make(map[int]int)
	for _, pageImages := range images {
		for _, img := range pageImages {
			pageNr := img.PageNr
			raw, err := io.ReadAll(img)
			if err != nil {
				result[pageNr] = append(result[pageNr], ArtifactResult{Kind: "embedded", Status: ArtifactFailed, Reason: err.Error()})
				continue
			}

			key := storage.SlideImageKey(deckID, pageNr, perPageIndex[pageNr])
			contentType := "image/" + img.FileType
			if _, err := p.storage.Upload(ctx, key, raw, contentType); err != nil {
				p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "storage_error"}).
					WithPayload(map[string]interface{}{"slide_number": pageNr}).Warn("Failed to upload embedded image")
				result[pageNr] = append(result[pageNr], ArtifactResult{Kind: "embedded", Status: ArtifactFailed, Reason: err.Error()})
				continue
			}

			result[pageNr] = append(result[pageNr], ArtifactResult{Kind: "embedded", Status: ArtifactStored, Key: key})
			perPageIndex[pageNr]++
		}
	}
	return result
}

// splitPageText 把页面文本切为标题与正文：
// 标题取第一个非空行，没有任何文本时为 "Page N"；正文是其余行的换行拼接。
func splitPageText(text string, pageNumber int) (string, string) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Page %d", pageNumber), ""
	}
	return lines[0], strings.Join(lines[1:], "\n")
}

// countTextBlocks 统计文本块数量（以空行分隔的行组）。
func countTextBlocks(text string) int {
	blocks := 0
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			inBlock = false
			continue
		}
		if !inBlock {
			blocks++
			inBlock = true
		}
	}
	return blocks
}

// textLayerFallback 在 MuPDF 文本提取为空时用 ledongthuc/pdf 再试一次文本层。
type textLayerFallback struct {
	reader *ledongthuc.Reader
}

func newTextLayerFallback(data []byte) *textLayerFallback {
	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &textLayerFallback{}
	}
	return &textLayerFallback{reader: reader}
}

// pageText 返回指定页（1 起始）的纯文本，任何失败都退化为空串。
func (f *textLayerFallback) pageText(pageNumber int) (text string) {
	if f.reader == nil {
		return ""
	}
	// ledongthuc/pdf 在个别损坏页上会 panic，这里吞掉并退化为空文本。
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := f.reader.Page(pageNumber)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}
