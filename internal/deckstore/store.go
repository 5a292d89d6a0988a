package deckstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"PitchAdvisor/internal/models"
)

// ErrDeckNotFound 表示目标 deck 在数据库中不存在。
var ErrDeckNotFound = errors.New("deckstore: deck not found")

// ErrParseInProgress 表示该 deck 已处于 parsing 状态，拒绝并发摄取。
var ErrParseInProgress = errors.New("deckstore: parse already in progress")

// Store 封装了 deck 与 slide 两张表的全部持久化操作。
type Store struct {
	db *gorm.DB
}

// NewStore 创建一个 Store 并自动迁移表结构。
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.Deck{}, &models.Slide{}); err != nil {
		return nil, fmt.Errorf("自动迁移 deck/slide 表失败: %w", err)
	}
	return &Store{db: db}, nil
}

// GetDeck 通过 ID 查找 deck。
func (s *Store) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	var deck models.Deck
	if err := s.db.WithContext(ctx).First(&deck, "id = ?", deckID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeckNotFound
		}
		return nil, err
	}
	return &deck, nil
}

// CreateDeck 注册一个待解析的 deck 记录。
func (s *Store) CreateDeck(ctx context.Context, deck *models.Deck) error {
	if deck.Status == "" {
		deck.Status = models.DeckStatusPending
	}
	return s.db.WithContext(ctx).Create(deck).Error
}

// BeginParse 将 deck 状态置为 parsing。
// 状态迁移带守卫条件：已处于 parsing 的 deck 不会被第二次抢占，
// 以此保证同一 deck 同时最多只有一次摄取（数据库层约束，与 Redis 锁互为兜底）。
func (s *Store) BeginParse(ctx context.Context, deckID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Deck{}).
		Where("id = ? AND status <> ?", deckID, models.DeckStatusParsing).
		Update("status", models.DeckStatusParsing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 要么 deck 不存在，要么已在解析中，查一次区分两种情况。
		if _, err := s.GetDeck(ctx, deckID); err != nil {
			return err
		}
		return ErrParseInProgress
	}
	return nil
}

// UpdateStatus 更新 deck 的生命周期状态。
func (s *Store) UpdateStatus(ctx context.Context, deckID string, status models.DeckStatus) error {
	result := s.db.WithContext(ctx).
		Model(&models.Deck{}).
		Where("id = ?", deckID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeckNotFound
	}
	return nil
}

// UpdateMetadata 将解析得到的 deck 级元数据以 JSON 文档形式写入。
func (s *Store) UpdateMetadata(ctx context.Context, deckID string, metadata interface{}) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("序列化 deck 元数据失败: %w", err)
	}
	result := s.db.WithContext(ctx).
		Model(&models.Deck{}).
		Where("id = ?", deckID).
		Update("metadata", datatypes.JSON(raw))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeckNotFound
	}
	return nil
}

// ReplaceSlides 在一个事务中整体覆盖某个 deck 的幻灯片记录。
// 解析结果是一次性全量写入的：重新摄取时先删除旧记录，避免重复行。
func (s *Store) ReplaceSlides(ctx context.Context, deckID string, slides []models.Slide) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deck_id = ?", deckID).Delete(&models.Slide{}).Error; err != nil {
			return err
		}
		if len(slides) == 0 {
			return nil
		}
		return tx.Create(&slides).Error
	})
}

// GetSlides 按 slide_number 升序返回某个 deck 的全部幻灯片。
func (s *Store) GetSlides(ctx context.Context, deckID string) ([]models.Slide, error) {
	var slides []models.Slide
	err := s.db.WithContext(ctx).
		Where("deck_id = ?", deckID).
		Order("slide_number ASC").
		Find(&slides).Error
	if err != nil {
		return nil, err
	}
	return slides, nil
}
