// internal/services/confidence.go
package services

import (
	"github.com/Corphon/VoiceScribeMCP/internal/models"
)

// DefaultConfidence 后端不返回分段数据时使用的默认置信度
const DefaultConfidence = 0.8

// EstimateConfidence 由分段平均对数概率推导单一归一化置信度和总时长
//
// 映射公式 (mean_logprob + 1) / 2 是线性启发式，并非标定过的概率，
// 源于Whisper分段avg_logprob的经验范围，保留原样不做"修正"
// 时长取输入顺序中最后一个分段的结束时间；假设后端按时间顺序返回分段，
// 这里不重新排序（乱序输入会导致时长偏差，属已知限制）
func EstimateConfidence(segments []models.TranscriptSegment) models.ConfidenceResult {
	if len(segments) == 0 {
		return models.ConfidenceResult{
			Confidence: DefaultConfidence,
			Duration:   0.0,
		}
	}

	var sum float64
	for _, segment := range segments {
		sum += segment.AvgLogprob
	}
	mean := sum / float64(len(segments))

	// 对数概率空间线性映射到[0,1]，仅在最后一步截断
	confidence := clamp((mean+1)/2, 0.0, 1.0)

	return models.ConfidenceResult{
		Confidence: confidence,
		Duration:   segments[len(segments)-1].End,
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
