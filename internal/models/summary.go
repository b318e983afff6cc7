// internal/models/summary.go
package models

// SummaryStyle 摘要呈现风格
type SummaryStyle string

const (
	StyleBulletPoints SummaryStyle = "bullet_points" // 要点列表
	StyleParagraph    SummaryStyle = "paragraph"     // 段落
	StyleExecutive    SummaryStyle = "executive"     // 管理层摘要
	StyleTechnical    SummaryStyle = "technical"     // 技术摘要
)

// IsValidSummaryStyle 检查风格是否受支持
func IsValidSummaryStyle(style SummaryStyle) bool {
	switch style {
	case StyleBulletPoints, StyleParagraph, StyleExecutive, StyleTechnical:
		return true
	}
	return false
}

// FinalSummary 表示合并、格式化后的最终摘要
type FinalSummary struct {
	Text      string       `json:"text"`
	WordCount int          `json:"word_count"` // 基于格式化后文本的空白分词计数
	Style     SummaryStyle `json:"style"`
	ModelUsed string       `json:"model_used,omitempty"`
	Provider  string       `json:"provider,omitempty"`
}
