// internal/models/transcript.go
package models

// TranscriptSegment 转写后端返回的分段信息（只读消费）
type TranscriptSegment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek,omitempty"`
	Start            float64 `json:"start"` // 起始时间（秒）
	End              float64 `json:"end"`   // 结束时间（秒）
	Text             string  `json:"text"`
	Temperature      float64 `json:"temperature,omitempty"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	NoSpeechProb     float64 `json:"no_speech_prob,omitempty"`
}

// TranscriptionRaw 转写后端的原始返回结果
type TranscriptionRaw struct {
	Task     string              `json:"task,omitempty"`
	Language string              `json:"language"`
	Duration float64             `json:"duration,omitempty"`
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments,omitempty"` // 部分后端不返回分段数据
}

// TranscriptionResult 转写服务处理后的结果
type TranscriptionResult struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"` // 归一化置信度 [0.0, 1.0]
	Language   string  `json:"language"`
	Duration   float64 `json:"duration"` // 音频时长（秒）
}

// ConfidenceResult 由分段对数概率推导出的置信度结果
type ConfidenceResult struct {
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration"`
}
