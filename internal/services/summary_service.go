// internal/services/summary_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Corphon/VoiceScribeMCP/internal/config"
	apperrors "github.com/Corphon/VoiceScribeMCP/internal/errors"
	"github.com/Corphon/VoiceScribeMCP/internal/llm"
	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/utils"
)

const (
	// MaxChunkChars 单个分块的最大字符数，作为摘要模型输入token上限的近似
	MaxChunkChars = 1024

	// MinSummaryLength 摘要长度下限（词数）
	MinSummaryLength = 10
	// MaxSummaryLength 摘要长度上限（词数）
	MaxSummaryLength = 500

	// 要点风格保留的句子片段最小长度（字符）
	minBulletFragmentLen = 10
)

// 句子终结符，一个或多个连续出现
var sentenceEndPattern = regexp.MustCompile(`[.!?]+`)

// SummaryService 提供分块摘要能力：将长文本切分为有界分块，
// 逐块调用摘要后端，再合并为单条限长摘要
type SummaryService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	isReady       bool
	readyState    string
}

// NewSummaryService 从当前配置创建摘要服务
// 配置缺失时返回未就绪服务而不是错误，后续可通过设置接口补齐
func NewSummaryService() *SummaryService {
	service := &SummaryService{}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.isReady = true
	service.readyState = "Ready"

	return service
}

// NewSummaryServiceWithProvider 使用指定提供者创建摘要服务
// 便于测试注入假后端，也用于多配置并存的场景
func NewSummaryServiceWithProvider(providerName string, provider llm.Provider) *SummaryService {
	return &SummaryService{
		provider:     provider,
		providerName: providerName,
		isReady:      provider != nil,
		readyState:   "Ready",
	}
}

// IsReady 返回服务是否就绪
func (s *SummaryService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// SetProvider 更新摘要提供者（配置变更后调用）
func (s *SummaryService) SetProvider(providerName string, provider llm.Provider) {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.isReady = provider != nil
	if s.isReady {
		s.readyState = "Ready"
	}
}

// GetStatus 返回服务状态信息（用于状态端点）
func (s *SummaryService) GetStatus() map[string]interface{} {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	status := map[string]interface{}{
		"provider":  s.providerName,
		"available": s.isReady,
	}

	if s.provider != nil {
		models := s.provider.GetSupportedModels()
		if len(models) > 0 {
			status["model"] = models[0]
		}
		status["supported_models"] = models
	}

	if !s.isReady {
		status["error"] = s.readyState
	}

	return status
}

// Summarize 对文本生成限长摘要
//
// 流程：切分为有界分块 -> 逐块调用后端 -> 按原始顺序合并 ->
// 超长时再压缩一次 -> 应用呈现风格
// 任何一个分块的后端调用失败都会丢弃已有的部分结果并整体失败
func (s *SummaryService) Summarize(ctx context.Context, text string, maxLengthWords int, style models.SummaryStyle) (*models.FinalSummary, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("文本不能为空", nil)
	}

	if maxLengthWords < MinSummaryLength || maxLengthWords > MaxSummaryLength {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("max_length必须在%d到%d之间", MinSummaryLength, MaxSummaryLength), nil)
	}

	if !models.IsValidSummaryStyle(style) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("不支持的摘要风格: %s", style), nil)
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	isReady := s.isReady
	s.providerMutex.RUnlock()

	if !isReady || provider == nil {
		return nil, apperrors.NewConfigurationError("摘要后端未配置", nil)
	}

	// 切分为有界分块
	chunks := SplitTextIntoChunks(trimmed, MaxChunkChars)

	logger := utils.GetLogger()
	logger.Infof("摘要任务开始: %d个分块, 目标长度%d词, 风格%s", len(chunks), maxLengthWords, style)

	// 逐块摘要，保持分块顺序
	partials := make([]string, 0, len(chunks))
	modelUsed := ""
	for i, chunk := range chunks {
		resp, err := provider.Summarize(ctx, llm.SummaryRequest{
			Text:      chunk,
			MaxLength: maxLengthWords,
			Style:     string(style),
		})
		if err != nil {
			// 不返回部分结果
			return nil, apperrors.NewBackendError(fmt.Sprintf("第%d个分块摘要失败", i+1), err)
		}
		partials = append(partials, resp.Text)
		modelUsed = resp.ModelName
	}

	// 合并部分摘要
	combined := partials[0]
	if len(partials) > 1 {
		combined = strings.Join(partials, " ")

		// 合并结果仍超长时，对合并文本再压缩一次
		if CountWords(combined) > maxLengthWords {
			resp, err := provider.Summarize(ctx, llm.SummaryRequest{
				Text:      combined,
				MaxLength: maxLengthWords,
				Style:     string(style),
			})
			if err != nil {
				return nil, apperrors.NewBackendError("合并摘要压缩失败", err)
			}
			combined = resp.Text
			modelUsed = resp.ModelName
		}
	}

	// 风格格式化只在合并完成后应用
	formatted := ApplyStyleFormatting(combined, style)

	result := &models.FinalSummary{
		Text:      formatted,
		WordCount: CountWords(formatted),
		Style:     style,
		ModelUsed: modelUsed,
		Provider:  providerName,
	}

	logger.Infof("摘要任务完成: %d词", result.WordCount)

	return result, nil
}

// SplitTextIntoChunks 将文本按空白分词后贪心切分为字符数有界的分块
//
// 不变式：所有分块的token按顺序拼接精确还原源文本的token序列；
// 除单个超长token独占分块的情况外，分块序列化长度不超过maxChunkChars
// 空文本产生零个分块
func SplitTextIntoChunks(text string, maxChunkChars int) []string {
	words := strings.Fields(text)

	var chunks []string
	var currentChunk []string
	currentLength := 0

	for _, word := range words {
		if currentLength+len(word)+1 <= maxChunkChars {
			currentChunk = append(currentChunk, word)
			currentLength += len(word) + 1
		} else {
			if len(currentChunk) > 0 {
				chunks = append(chunks, strings.Join(currentChunk, " "))
			}
			// 超长token不截断，独占一个分块
			currentChunk = []string{word}
			currentLength = len(word)
		}
	}

	if len(currentChunk) > 0 {
		chunks = append(chunks, strings.Join(currentChunk, " "))
	}

	return chunks
}

// ApplyStyleFormatting 对合并后的摘要应用呈现风格
func ApplyStyleFormatting(summary string, style models.SummaryStyle) string {
	switch style {
	case models.StyleBulletPoints:
		// 按句子终结符切分，丢弃过短片段
		sentences := sentenceEndPattern.Split(summary, -1)
		var bullets []string
		for _, sentence := range sentences {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) > minBulletFragmentLen {
				bullets = append(bullets, "• "+sentence)
			}
		}
		// 没有足够长的片段时结果为空列表
		return strings.Join(bullets, "\n")

	case models.StyleExecutive:
		return "EXECUTIVE SUMMARY:\n\n" + summary

	case models.StyleTechnical:
		return "TECHNICAL SUMMARY:\n\n" + summary

	default:
		// 默认段落风格，原样返回
		return summary
	}
}

// CountWords 按空白分词统计词数
func CountWords(text string) int {
	return len(strings.Fields(text))
}
