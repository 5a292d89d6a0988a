package models

import (
	"time"

	"gorm.io/datatypes"
)

// DeckStatus 定义了 deck 摄取流程的几种生命周期状态。
type DeckStatus string

const (
	DeckStatusPending DeckStatus = "pending" // 已上传，等待解析
	DeckStatusParsing DeckStatus = "parsing" // 正在解析，阻止并发摄取
	DeckStatusParsed  DeckStatus = "parsed"  // 解析完成，幻灯片已入库
	DeckStatusError   DeckStatus = "error"   // 解析失败（致命错误）
)

// SourceFormat 标识 deck 的来源文件格式。
type SourceFormat string

const (
	FormatPPTX         SourceFormat = "pptx"
	FormatPDF          SourceFormat = "pdf"
	FormatGoogleSlides SourceFormat = "google_slides"
)

// Deck 代表一次摄取的基本单位：一份由有序幻灯片组成的 pitch 演示文稿。
type Deck struct {
	ID        string       `gorm:"primaryKey;size:36"`
	FileKey   string       `gorm:"size:512;not null"` // 对象存储中原始文件的 key
	FileType  SourceFormat `gorm:"type:varchar(20);not null"`
	Status    DeckStatus   `gorm:"type:varchar(20);default:'pending';not null;index"`
	Metadata  datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slide 是解析后一张幻灯片/一页的持久化记录。
// (deck_id, slide_number) 唯一，slide_number 从 1 开始连续编号。
type Slide struct {
	ID             string `gorm:"primaryKey;size:36"`
	DeckID         string `gorm:"size:36;not null;index:idx_deck_slide,unique"`
	SlideNumber    int    `gorm:"not null;index:idx_deck_slide,unique"`
	Title          string `gorm:"size:1024"`
	Content        string `gorm:"type:text"`
	Notes          string `gorm:"type:text"`
	ImageObjectKey string `gorm:"size:512"` // 幻灯片图像在对象存储中的 key，可为空
	Metadata       datatypes.JSON
	CreatedAt      time.Time
}

func (Deck) TableName() string {
	return "decks"
}

func (Slide) TableName() string {
	return "slides"
}
