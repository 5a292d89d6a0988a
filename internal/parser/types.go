package parser

import (
	"context"

	"PitchAdvisor/internal/models"
)

// SlideData 是一张幻灯片/一页解析后的规范化表示。
// 所有字段都是尽力而为：提取失败只会使对应字段退化为空值，
// 记录本身始终存在（slide_number 从 1 开始连续编号）。
type SlideData struct {
	SlideNumber    int
	Title          string
	Content        string // 非标题文本，按文本块以换行分隔
	Notes          string // 演讲者备注，PDF 等无此概念的格式恒为空
	ImageObjectKey string // 幻灯片图像的对象存储 key，可为空

	// Extras 是本格式特有的事实，原样透传给下游，不参与任何决策。
	Extras FormatExtras

	// Images 记录每个图像工件的提取结果，用于区分
	// “本来没有图” 与 “有图但提取失败” 两种情况。
	Images []ArtifactResult
}

// FormatExtras 是按来源格式强类型化的元数据变体。
type FormatExtras interface {
	formatExtras()
}

// PPTXSlideExtras 是 PPTX 幻灯片特有的元数据。
type PPTXSlideExtras struct {
	Layout     string `json:"layout"`
	ShapeCount int    `json:"shapes_count"`
	HasImages  bool   `json:"has_images"`
}

// PDFSlideExtras 是 PDF 页面特有的元数据。
type PDFSlideExtras struct {
	PageWidth         float64 `json:"page_width"`
	PageHeight        float64 `json:"page_height"`
	TextBlocks        int     `json:"text_blocks"`
	HasEmbeddedImages bool    `json:"has_images"`
}

// GoogleSlidesExtras 是 Google Slides 幻灯片特有的元数据。
type GoogleSlidesExtras struct {
	Source         string `json:"source"`
	PresentationID string `json:"presentation_id,omitempty"`
}

func (PPTXSlideExtras) formatExtras()    {}
func (PDFSlideExtras) formatExtras()     {}
func (GoogleSlidesExtras) formatExtras() {}

// ArtifactStatus 描述单个图像工件的提取结局。
type ArtifactStatus string

const (
	ArtifactStored ArtifactStatus = "stored" // 已提取并上传
	ArtifactAbsent ArtifactStatus = "absent" // 来源中不存在该工件
	ArtifactFailed ArtifactStatus = "failed" // 存在但提取/上传失败，已跳过
)

// ArtifactResult 是单个图像工件的结果记录。失败不会中止幻灯片或 deck，
// 但结果被保留下来供可观测性使用。
type ArtifactResult struct {
	Kind   string         `json:"kind"` // "embedded" 或 "render"
	Status ArtifactStatus `json:"status"`
	Key    string         `json:"key,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// DeckMetadata 是解析完成后附加在 deck 上的汇总。
// TotalSlides 恒等于幻灯片序列的长度。
type DeckMetadata struct {
	TotalSlides  int                 `json:"total_slides"`
	HasNotes     bool                `json:"has_notes"`
	HasImages    bool                `json:"has_images"`
	SourceFormat models.SourceFormat `json:"source_format"`

	// 以下为各格式的非权威附加信息。
	SlideLayouts []string `json:"slide_layouts,omitempty"` // PPTX：出现过的版式名
	PDFVersion   string   `json:"pdf_version,omitempty"`   // PDF：文档版本
	Source       string   `json:"source,omitempty"`        // Google Slides：来源标记
}

// ParseResult 是一次解析调用的完整产物。
type ParseResult struct {
	Slides   []SlideData
	Metadata DeckMetadata
}

// ParseInput 是传给各格式解析器的输入。PPTX/PDF 使用 Data，
// Google Slides 使用 FileKey（演示文稿 URL 或 ID）。
type ParseInput struct {
	DeckID  string
	FileKey string
	Data    []byte
}

// FormatParser 把一种二进制来源格式转换为规范化的幻灯片序列。
type FormatParser interface {
	Parse(ctx context.Context, input ParseInput) (*ParseResult, error)
}
