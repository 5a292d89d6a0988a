package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/storage"
	"PitchAdvisor/pkg/logger"
)

// DeckStore 是摄取协调器需要的持久化契约（由 deckstore.Store 实现）。
type DeckStore interface {
	BeginParse(ctx context.Context, deckID string) error
	UpdateStatus(ctx context.Context, deckID string, status models.DeckStatus) error
	UpdateMetadata(ctx context.Context, deckID string, metadata interface{}) error
	ReplaceSlides(ctx context.Context, deckID string, slides []models.Slide) error
}

// Locker 是跨实例摄取互斥锁的契约（由 deckstore.ParseLock 实现）。
type Locker interface {
	Acquire(ctx context.Context, deckID string) (bool, error)
	Release(ctx context.Context, deckID string) error
}

// AnalyzePublisher 在解析成功后把 deck 推进到分析阶段。
type AnalyzePublisher interface {
	PublishAnalyzeTask(ctx context.Context, task models.AnalyzeTask) error
}

// ErrParseLocked 表示另一个 worker 实例正持有该 deck 的摄取锁。
var ErrParseLocked = errors.New("parser: deck is locked by another worker")

// Service 是摄取协调器：校验格式选择器、串联锁/清扫/下载/解析/入库，
// 并维护 deck 的生命周期状态（parsing -> parsed / error）。
type Service struct {
	store     DeckStore
	storage   storage.Gateway
	lock      Locker
	publisher AnalyzePublisher
	parsers   map[models.SourceFormat]FormatParser
	logger    *logger.Logger
}

// NewService 创建摄取协调器。publisher 可以为 nil（同步 API 场景下不触发分析）。
func NewService(store DeckStore, gw storage.Gateway, lock Locker, publisher AnalyzePublisher, parsers map[models.SourceFormat]FormatParser, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		storage:   gw,
		lock:      lock,
		publisher: publisher,
		parsers:   parsers,
		logger:    log,
	}
}

// ResolveFormat 校验文件类型选择器（大小写不敏感）。
// 选择器非法时立即返回 ErrUnsupportedFormat，不做任何嗅探或解析尝试。
func ResolveFormat(fileType string) (models.SourceFormat, error) {
	switch models.SourceFormat(strings.ToLower(strings.TrimSpace(fileType))) {
	case models.FormatPPTX:
		return models.FormatPPTX, nil
	case models.FormatPDF:
		return models.FormatPDF, nil
	case models.FormatGoogleSlides:
		return models.FormatGoogleSlides, nil
	default:
		return "", fmt.Errorf("%w: unknown file type %q", ErrUnsupportedFormat, fileType)
	}
}

// ParseDeck 执行一次完整的 deck 摄取，返回入库的幻灯片数量。
// 致命错误（格式非法、文件损坏、存储不可用）会把 deck 状态置为 error 并返回。
func (s *Service) ParseDeck(ctx context.Context, task models.ParseTask) (int, error) {
	log := s.logger.WithDeck(task.DeckID)

	format, err := ResolveFormat(task.FileType)
	if err != nil {
		// 选择器非法是提交方的错误，deck 状态同样收敛到 error。
		if stateErr := s.store.UpdateStatus(ctx, task.DeckID, models.DeckStatusError); stateErr != nil {
			log.WithError(models.ErrorInfo{Message: stateErr.Error(), Type: "state_error"}).Warn("Failed to mark deck as error")
		}
		return 0, err
	}

	fp, ok := s.parsers[format]
	if !ok {
		return 0, fmt.Errorf("%w: no parser registered for %s", ErrUnsupportedFormat, format)
	}

	// 跨实例互斥：拿不到锁说明另一个实例正在摄取同一 deck。
	acquired, err := s.lock.Acquire(ctx, task.DeckID)
	if err != nil {
		return 0, fmt.Errorf("获取摄取锁失败: %w", err)
	}
	if !acquired {
		return 0, ErrParseLocked
	}
	defer func() {
		if err := s.lock.Release(context.Background(), task.DeckID); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "lock_error"}).Warn("Failed to release parse lock")
		}
	}()

	// 数据库层状态守卫，同时确认 deck 存在。
	if err := s.store.BeginParse(ctx, task.DeckID); err != nil {
		return 0, err
	}

	count, err := s.parseLocked(ctx, log, task, format, fp)
	if err != nil {
		if stateErr := s.store.UpdateStatus(ctx, task.DeckID, models.DeckStatusError); stateErr != nil {
			log.WithError(models.ErrorInfo{Message: stateErr.Error(), Type: "state_error"}).Warn("Failed to mark deck as error")
		}
		return 0, err
	}
	return count, nil
}

// parseLocked 在锁与状态守卫都已就位后执行实际的解析与入库。
func (s *Service) parseLocked(ctx context.Context, log *logger.Logger, task models.ParseTask, format models.SourceFormat, fp FormatParser) (int, error) {
	// 先清扫上一次（可能中断的）摄取留下的孤儿工件，避免新旧图像混杂。
	removed, err := s.storage.RemoveDeckArtifacts(ctx, task.DeckID)
	if err != nil {
		return 0, fmt.Errorf("清理历史工件失败: %w", err)
	}
	if removed > 0 {
		log.WithPayload(map[string]interface{}{"removed": removed}).Info("Removed orphaned artifacts from previous ingestion")
	}

	input := ParseInput{DeckID: task.DeckID, FileKey: task.FileKey}

	// Google Slides 不经过对象存储，FileKey 即演示文稿链接/ID。
	if format != models.FormatGoogleSlides {
		data, err := s.storage.Download(ctx, task.FileKey)
		if err != nil {
			return 0, fmt.Errorf("下载源文件失败: %w", err)
		}
		input.Data = data
		s.sniffContentType(log, format, data)
	}

	result, err := fp.Parse(ctx, input)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "parse_error"}).Error("Deck parsing failed")
		return 0, err
	}

	slides, err := buildSlideRecords(task.DeckID, result.Slides)
	if err != nil {
		return 0, err
	}

	if err := s.store.ReplaceSlides(ctx, task.DeckID, slides); err != nil {
		return 0, fmt.Errorf("写入幻灯片记录失败: %w", err)
	}
	if err := s.store.UpdateMetadata(ctx, task.DeckID, result.Metadata); err != nil {
		return 0, fmt.Errorf("写入 deck 元数据失败: %w", err)
	}
	if err := s.store.UpdateStatus(ctx, task.DeckID, models.DeckStatusParsed); err != nil {
		return 0, err
	}

	log.WithPayload(map[string]interface{}{
		"file_type":    string(format),
		"total_slides": result.Metadata.TotalSlides,
		"has_images":   result.Metadata.HasImages,
	}).Info("Deck parsed successfully")

	// 推进到分析阶段。发布失败不回滚解析结果，分析可以单独重新触发。
	if s.publisher != nil {
		analyze := models.AnalyzeTask{
			DeckID:      task.DeckID,
			SlidesCount: len(slides),
			TraceID:     task.TraceID,
			SubmittedAt: time.Now(),
		}
		if err := s.publisher.PublishAnalyzeTask(ctx, analyze); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "publish_error"}).Warn("Failed to publish analyze task")
		}
	}

	return len(slides), nil
}

// sniffContentType 对下载的字节做一次 MIME 嗅探，与声明的格式不符时记警告。
// 嗅探只用于可观测性，真正的拒绝由各格式解析器在打开文件时做出。
func (s *Service) sniffContentType(log *logger.Logger, format models.SourceFormat, data []byte) {
	detected := mimetype.Detect(data)
	expected := map[models.SourceFormat][]string{
		models.FormatPPTX: {
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"application/zip",
		},
		models.FormatPDF: {"application/pdf"},
	}[format]

	for _, want := range expected {
		if detected.Is(want) {
			return
		}
	}
	log.WithPayload(map[string]interface{}{
		"declared": string(format),
		"detected": detected.String(),
	}).Warn("Declared file type does not match sniffed content type")
}

// slideMetadata 是写进 slide 行 JSON 列的结构。
type slideMetadata struct {
	Extras FormatExtras     `json:"extras,omitempty"`
	Images []ArtifactResult `json:"images,omitempty"`
}

// buildSlideRecords 把解析产物转换为持久化记录，逐张分配 UUID。
func buildSlideRecords(deckID string, parsed []SlideData) ([]models.Slide, error) {
	slides := make([]models.Slide, 0, len(parsed))
	for _, sd := range parsed {
		raw, err := json.Marshal(slideMetadata{Extras: sd.Extras, Images: sd.Images})
		if err != nil {
			return nil, fmt.Errorf("序列化幻灯片元数据失败: %w", err)
		}
		slides = append(slides, models.Slide{
			ID:             uuid.New().String(),
			DeckID:         deckID,
			SlideNumber:    sd.SlideNumber,
			Title:          sd.Title,
			Content:        sd.Content,
			Notes:          sd.Notes,
			ImageObjectKey: sd.ImageObjectKey,
			Metadata:       datatypes.JSON(raw),
		})
	}
	return slides, nil
}
