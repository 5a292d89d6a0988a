package models

import "time"

// Kafka 主题：解析请求与分析请求各占一个主题，parse worker 在解析成功后
// 向 deck.analyze 发布消息，驱动 nlp worker 进行结构分析。
const (
	TopicDeckParse   = "deck.parse"
	TopicDeckAnalyze = "deck.analyze"
)

// ParseTask 是投递到 deck.parse 主题的消息体。
type ParseTask struct {
	DeckID      string    `json:"deck_id"`
	FileKey     string    `json:"file_key"`  // 对象存储中的源文件 key
	FileType    string    `json:"file_type"` // pptx / pdf / google_slides（大小写不敏感）
	TraceID     string    `json:"trace_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AnalyzeTask 是投递到 deck.analyze 主题的消息体。
// nlp worker 收到后从数据库读取该 deck 的全部幻灯片。
type AnalyzeTask struct {
	DeckID      string    `json:"deck_id"`
	SlidesCount int       `json:"slides_count"`
	TraceID     string    `json:"trace_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
