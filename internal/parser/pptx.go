package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/storage"
	"PitchAdvisor/pkg/logger"
)

// PPTXParser 直接读取 OOXML 包（zip + XML）来提取幻灯片。
type PPTXParser struct {
	storage storage.Gateway
	ocr     *OCR
	logger  *logger.Logger
}

// NewPPTXParser 创建一个 PPTX 解析器。
func NewPPTXParser(gw storage.Gateway, ocr *OCR, log *logger.Logger) *PPTXParser {
	return &PPTXParser{storage: gw, ocr: ocr, logger: log}
}

// Parse 解析 PPTX 文件并提取所有幻灯片。
// 幻灯片按包内文件序号排序后重新连续编号（1 起始，无空洞）。
func (p *PPTXParser) Parse(ctx context.Context, input ParseInput) (*ParseResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(input.Data), int64(len(input.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid pptx package: %v", ErrUnsupportedFormat, err)
	}

	// 建立包内文件索引，便于按路径查找。
	fileIndex := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		fileIndex[f.Name] = f
	}

	// 收集幻灯片文件 (ppt/slides/slide1.xml, slide2.xml, ...)。
	slideFiles := make(map[int]*zip.File)
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			if num := slideFileNumber(f.Name); num > 0 {
				slideFiles[num] = f
			}
		}
	}
	if len(slideFiles) == 0 {
		return nil, fmt.Errorf("%w: pptx package contains no slides", ErrCorruptInput)
	}

	nums := make([]int, 0, len(slideFiles))
	for n := range slideFiles {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	metadata := DeckMetadata{SourceFormat: models.FormatPPTX}
	layoutsSeen := make(map[string]struct{})

	slides := make([]SlideData, 0, len(nums))
	for i, num := range nums {
		slide := p.extractSlide(ctx, input.DeckID, fileIndex, slideFiles[num], num, i+1)
		slides = append(slides, slide)

		if slide.Notes != "" {
			metadata.HasNotes = true
		}
		if slide.ImageObjectKey != "" {
			metadata.HasImages = true
		}
		if extras, ok := slide.Extras.(PPTXSlideExtras); ok && extras.Layout != "" {
			if _, seen := layoutsSeen[extras.Layout]; !seen {
				layoutsSeen[extras.Layout] = struct{}{}
				metadata.SlideLayouts = append(metadata.SlideLayouts, extras.Layout)
			}
		}
	}

	metadata.TotalSlides = len(slides)
	return &ParseResult{Slides: slides, Metadata: metadata}, nil
}

// extractSlide 提取单张幻灯片。fileNum 是包内文件序号，slideNumber 是重编号后的序号。
func (p *PPTXParser) extractSlide(ctx context.Context, deckID string, fileIndex map[string]*zip.File, zf *zip.File, fileNum, slideNumber int) SlideData {
	slide := SlideData{SlideNumber: slideNumber}

	data, err := readZipFile(zf)
	if err != nil {
		// 单张幻灯片的 XML 读不出来时字段全部退化为空，但记录仍然存在。
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "pptx_slide"}).
			WithPayload(map[string]interface{}{"slide_number": slideNumber}).Warn("Failed to read slide XML")
		slide.Extras = PPTXSlideExtras{}
		slide.Images = []ArtifactResult{{Kind: "embedded", Status: ArtifactAbsent}}
		return slide
	}

	shapes := parseSlideShapes(data)
	slide.Title, slide.Content = splitTitleContent(shapes)

	rels := parseOOXMLRels(fileIndex, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", fileNum))
	slide.Notes = p.extractNotes(fileIndex, rels)

	layout := p.extractLayoutName(fileIndex, rels)

	imageKey, firstImage, artifacts := p.extractImages(ctx, deckID, slideNumber, data, rels, fileIndex)
	slide.ImageObjectKey = imageKey
	slide.Images = artifacts

	// 主文本层为空且有图时走 OCR 回退。
	if slide.Title == "" && slide.Content == "" && firstImage != nil {
		slide.Content = p.ocr.ExtractText(firstImage)
	}

	slide.Extras = PPTXSlideExtras{
		Layout:     layout,
		ShapeCount: len(shapes),
		HasImages:  imageKey != "",
	}
	return slide
}

// extractNotes 通过幻灯片的关系文件定位备注页并提取文本。
func (p *PPTXParser) extractNotes(fileIndex map[string]*zip.File, rels map[string]string) string {
	for _, target := range rels {
		if !strings.Contains(target, "notesSlide") {
			continue
		}
		notesPath := resolveRelTarget("ppt/slides", target)
		zf := fileIndex[notesPath]
		if zf == nil {
			return ""
		}
		data, err := readZipFile(zf)
		if err != nil {
			return ""
		}
		var parts []string
		for _, shape := range parseSlideShapes(data) {
			if shape.text != "" {
				parts = append(parts, shape.text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// extractLayoutName 通过幻灯片的版式关系读取版式名称。
func (p *PPTXParser) extractLayoutName(fileIndex map[string]*zip.File, rels map[string]string) string {
	for _, target := range rels {
		if !strings.Contains(target, "slideLayout") {
			continue
		}
		layoutPath := resolveRelTarget("ppt/slides", target)
		zf := fileIndex[layoutPath]
		if zf == nil {
			return ""
		}
		data, err := readZipFile(zf)
		if err != nil {
			return ""
		}
		var layout struct {
			CSld struct {
				Name string `xml:"name,attr"`
			} `xml:"cSld"`
		}
		if err := xml.Unmarshal(data, &layout); err != nil {
			return ""
		}
		return layout.CSld.Name
	}
	return ""
}

// extractImages 提取幻灯片里所有图片形状并逐个上传。
// 返回第一张成功上传图片的 key（已知局限：一张幻灯片可能有多张图，
// 但只引用第一张）、其原始字节（供 OCR 回退）以及每个工件的结果。
func (p *PPTXParser) extractImages(ctx context.Context, deckID string, slideNumber int, slideXML []byte, rels map[string]string, fileIndex map[string]*zip.File) (string, []byte, []ArtifactResult) {
	embeds := findBlipEmbeds(slideXML)
	if len(embeds) == 0 {
		return "", nil, []ArtifactResult{{Kind: "embedded", Status: ArtifactAbsent}}
	}

	var firstKey string
	var firstData []byte
	var artifacts []ArtifactResult
	uploaded := 0

	for _, rID := range embeds {
		target, ok := rels[rID]
		if !ok {
			artifacts = append(artifacts, ArtifactResult{Kind: "embedded", Status: ArtifactFailed, Reason: "relationship not found: " + rID})
			continue
		}
		mediaPath := resolveRelTarget("ppt/slides", target)
		zf := fileIndex[mediaPath]
		if zf == nil {
			artifacts = append(artifacts, ArtifactResult{Kind: "embedded", Status: ArtifactFailed, Reason: "media not in package: " + mediaPath})
			continue
		}
		imgData, err := readZipFile(zf)
		if err != nil {
			artifacts = append(artifacts, ArtifactResult{Kind: "embedded", Status: ArtifactFailed, Reason: err.Error()})
			continue
		}

		key := storage.SlideImageKey(deckID, slideNumber, uploaded)
		contentType := mimetype.Detect(imgData).String()
		if _, err := p.storage.Upload(ctx, key, imgData, contentType); err != nil {
			// 单张图片上传失败不中止幻灯片，也不中止 deck。
			p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "storage_error"}).
				WithPayload(map[string]interface{}{"slide_number": slideNumber}).Warn("Failed to upload slide image")
			artifacts = append(artifacts, ArtifactResult{Kind: "embedded", Status: ArtifactFailed, Reason: err.Error()})
			continue
		}

		artifacts = append(artifacts, ArtifactResult{Kind: "embedded", Status: ArtifactStored, Key: key})
		if firstKey == "" {
			firstKey = key
			firstData = imgData
		}
		uploaded++
	}

	return firstKey, firstData, artifacts
}

// --- OOXML 解析辅助 ---

// pptxShape 是一个形状解析后的文本与占位符信息。
type pptxShape struct {
	phType string // 占位符类型，"title" / "ctrTitle" / "body" 等，非占位符为空
	text   string
}

type pptxSlideXML struct {
	CSld struct {
		SpTree struct {
			SPs []struct {
				NvSpPr struct {
					NvPr struct {
						Ph *struct {
							Type string `xml:"type,attr"`
						} `xml:"ph"`
					} `xml:"nvPr"`
				} `xml:"nvSpPr"`
				TxBody *struct {
					Paras []struct {
						Runs []struct {
							Text string `xml:"t"`
						} `xml:"r"`
					} `xml:"p"`
				} `xml:"txBody"`
			} `xml:"sp"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

// parseSlideShapes 把幻灯片 XML 解析为形状序列（保持文档顺序）。
func parseSlideShapes(data []byte) []pptxShape {
	var slide pptxSlideXML
	if err := xml.Unmarshal(data, &slide); err != nil {
		return nil
	}

	var shapes []pptxShape
	for _, sp := range slide.CSld.SpTree.SPs {
		shape := pptxShape{}
		if sp.NvSpPr.NvPr.Ph != nil {
			shape.phType = sp.NvSpPr.NvPr.Ph.Type
		}
		if sp.TxBody != nil {
			var lines []string
			for _, para := range sp.TxBody.Paras {
				var line strings.Builder
				for _, run := range para.Runs {
					line.WriteString(run.Text)
				}
				if t := strings.TrimSpace(line.String()); t != "" {
					lines = append(lines, t)
				}
			}
			shape.text = strings.Join(lines, "\n")
		}
		shapes = append(shapes, shape)
	}
	return shapes
}

// splitTitleContent 从形状序列中切出标题与正文。
// 标题优先取第一个 title/ctrTitle 占位符；没有时回退到第一个有文本的形状。
// 正文是除标题形状外全部文本的换行拼接。
func splitTitleContent(shapes []pptxShape) (string, string) {
	titleIdx := -1
	for i, shape := range shapes {
		if (shape.phType == "title" || shape.phType == "ctrTitle") && shape.text != "" {
			titleIdx = i
			break
		}
	}
	if titleIdx == -1 {
		for i, shape := range shapes {
			if shape.text != "" {
				titleIdx = i
				break
			}
		}
	}

	var title string
	var parts []string
	for i, shape := range shapes {
		if i == titleIdx {
			title = shape.text
			continue
		}
		if shape.text != "" {
			parts = append(parts, shape.text)
		}
	}
	return title, strings.Join(parts, "\n")
}

// findBlipEmbeds 用流式扫描找出幻灯片 XML 里所有 a:blip 的 r:embed 引用。
func findBlipEmbeds(slideXML []byte) []string {
	decoder := xml.NewDecoder(bytes.NewReader(slideXML))
	var embeds []string
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "blip" {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Local == "embed" && attr.Value != "" {
				embeds = append(embeds, attr.Value)
				break
			}
		}
	}
	return embeds
}

// ooxmlRelationships 是 OOXML .rels 文件的通用结构。
type ooxmlRelationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// parseOOXMLRels 读取一个 .rels 文件，返回 rId -> Target 的映射。
func parseOOXMLRels(fileIndex map[string]*zip.File, relsPath string) map[string]string {
	zf := fileIndex[relsPath]
	if zf == nil {
		return nil
	}
	data, err := readZipFile(zf)
	if err != nil {
		return nil
	}
	var rels ooxmlRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil
	}
	result := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		result[rel.ID] = rel.Target
	}
	return result
}

// resolveRelTarget 把关系目标（相对 baseDir）规范化为包内路径。
func resolveRelTarget(baseDir, target string) string {
	cleaned := path.Clean(path.Join(baseDir, strings.ReplaceAll(target, "\\", "/")))
	return strings.TrimPrefix(cleaned, "/")
}

// slideFileNumber 从 "ppt/slides/slide12.xml" 中提取 12。
func slideFileNumber(name string) int {
	name = strings.TrimPrefix(name, "ppt/slides/slide")
	name = strings.TrimSuffix(name, ".xml")
	var num int
	fmt.Sscanf(name, "%d", &num)
	return num
}

// readZipFile 读取 zip 包内单个文件的全部内容。
func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
