package parser

import (
	"context"
	"regexp"
	"strings"

	"google.golang.org/api/option"
	slidesapi "google.golang.org/api/slides/v1"

	"PitchAdvisor/internal/config"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// GoogleSlidesParser 通过 Google Slides API 获取演示文稿。
// 未配置凭证或 API 调用失败时，降级为一个显式标记为未实现/不可用的
// 单页占位 deck —— 调用方必须把它当作合法（虽然退化）的结果处理。
type GoogleSlidesParser struct {
	service *slidesapi.Service
	logger  *logger.Logger
}

// presentationIDRe 从分享链接中提取演示文稿 ID。
var presentationIDRe = regexp.MustCompile(`/presentation/d/([a-zA-Z0-9_-]+)`)

// NewGoogleSlidesParser 创建一个 Google Slides 解析器。
// cfg.CredentialsFile 为空时不建立 API 客户端，解析器始终返回占位结果。
func NewGoogleSlidesParser(ctx context.Context, cfg *config.GoogleSlidesConfig, log *logger.Logger) *GoogleSlidesParser {
	p := &GoogleSlidesParser{logger: log}
	if cfg == nil || cfg.CredentialsFile == "" {
		return p
	}

	svc, err := slidesapi.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(slidesapi.PresentationsReadonlyScope),
	)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "google_slides"}).Warn("Failed to init Google Slides client, parser will return placeholder decks")
		return p
	}
	p.service = svc
	return p
}

// Parse 获取并规范化一个 Google Slides 演示文稿。
// input.FileKey 是分享链接或演示文稿 ID。
func (p *GoogleSlidesParser) Parse(ctx context.Context, input ParseInput) (*ParseResult, error) {
	if p.service == nil {
		return p.placeholderResult(""), nil
	}

	presentationID := extractPresentationID(input.FileKey)
	presentation, err := p.service.Presentations.Get(presentationID).Context(ctx).Do()
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "google_slides"}).
			WithPayload(map[string]interface{}{"presentation_id": presentationID}).Warn("Google Slides API call failed, returning placeholder deck")
		return p.placeholderResult(presentationID), nil
	}

	metadata := DeckMetadata{
		SourceFormat: models.FormatGoogleSlides,
		Source:       "google_slides",
	}

	slides := make([]SlideData, 0, len(presentation.Slides))
	for i, page := range presentation.Slides {
		slide := SlideData{
			SlideNumber: i + 1,
			Notes:       notesText(page),
			Images:      []ArtifactResult{{Kind: "embedded", Status: ArtifactAbsent}},
			Extras: GoogleSlidesExtras{
				Source:         "google_slides",
				PresentationID: presentation.PresentationId,
			},
		}
		slide.Title, slide.Content = pageTitleContent(page)
		if slide.Notes != "" {
			metadata.HasNotes = true
		}
		slides = append(slides, slide)
	}

	if len(slides) == 0 {
		return p.placeholderResult(presentationID), nil
	}

	metadata.TotalSlides = len(slides)
	return &ParseResult{Slides: slides, Metadata: metadata}, nil
}

// placeholderResult 构造单页占位 deck。
func (p *GoogleSlidesParser) placeholderResult(presentationID string) *ParseResult {
	return &ParseResult{
		Slides: []SlideData{{
			SlideNumber: 1,
			Title:       "Google Slides Import",
			Content:     "Google Slides parsing not available",
			Images:      []ArtifactResult{{Kind: "embedded", Status: ArtifactAbsent}},
			Extras: GoogleSlidesExtras{
				Source:         "google_slides",
				PresentationID: presentationID,
			},
		}},
		Metadata: DeckMetadata{
			TotalSlides:  1,
			SourceFormat: models.FormatGoogleSlides,
			Source:       "google_slides",
		},
	}
}

// extractPresentationID 从分享链接提取演示文稿 ID；输入不是链接时原样返回。
func extractPresentationID(fileKey string) string {
	if m := presentationIDRe.FindStringSubmatch(fileKey); len(m) == 2 {
		return m[1]
	}
	return fileKey
}

// pageTitleContent 切出页面的标题与正文。
// 标题优先取 TITLE/CENTERED_TITLE 占位符；没有时回退到第一个有文本的元素。
func pageTitleContent(page *slidesapi.Page) (string, string) {
	titleIdx := -1
	texts := make([]string, len(page.PageElements))
	for i, el := range page.PageElements {
		texts[i] = elementText(el)
		if titleIdx == -1 && texts[i] != "" && el.Shape != nil && el.Shape.Placeholder != nil {
			switch el.Shape.Placeholder.Type {
			case "TITLE", "CENTERED_TITLE":
				titleIdx = i
			}
		}
	}
	if titleIdx == -1 {
		for i, t := range texts {
			if t != "" {
				titleIdx = i
				break
			}
		}
	}

	var title string
	var parts []string
	for i, t := range texts {
		if i == titleIdx {
			title = t
			continue
		}
		if t != "" {
			parts = append(parts, t)
		}
	}
	return title, strings.Join(parts, "\n")
}

// notesText 提取演讲者备注页的全部文本。
func notesText(page *slidesapi.Page) string {
	if page.SlideProperties == nil || page.SlideProperties.NotesPage == nil {
		return ""
	}
	var parts []string
	for _, el := range page.SlideProperties.NotesPage.PageElements {
		if t := elementText(el); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// elementText 拼接一个页面元素内的全部文本 run。
func elementText(el *slidesapi.PageElement) string {
	if el == nil || el.Shape == nil || el.Shape.Text == nil {
		return ""
	}
	var sb strings.Builder
	for _, te := range el.Shape.Text.TextElements {
		if te.TextRun != nil {
			sb.WriteString(te.TextRun.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}
