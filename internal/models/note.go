// internal/models/note.go
package models

import (
	"time"
)

// Note 表示保存的语音笔记（转写稿及其摘要）
type Note struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Transcript string       `json:"transcript"`
	Summary    string       `json:"summary,omitempty"`
	Style      SummaryStyle `json:"style,omitempty"`
	Language   string       `json:"language,omitempty"`
	Duration   float64      `json:"duration,omitempty"` // 原始音频时长（秒）
	Confidence float64      `json:"confidence,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NoteMetadata 用于笔记列表展示
type NoteMetadata struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	HasSummary bool      `json:"has_summary"`
}
