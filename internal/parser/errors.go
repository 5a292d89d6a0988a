package parser

import "errors"

// 解析管线的致命错误分类。两者都不应重试，deck 状态将被置为 error。
var (
	// ErrUnsupportedFormat 表示文件类型选择器非法，或字节流无法按声明类型打开。
	ErrUnsupportedFormat = errors.New("parser: unsupported format")

	// ErrCorruptInput 表示文件能打开但结构非法（例如零页文档）。
	ErrCorruptInput = errors.New("parser: corrupt input")
)
