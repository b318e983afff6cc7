// internal/stt/providers/openai/openai.go
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/stt"
	openai "github.com/sashabaranov/go-openai"
)

func init() {
	stt.Register("openai", func() stt.Provider {
		return &Provider{}
	})
}

type Provider struct {
	apiKey string
	client *openai.Client
	model  string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("OpenAI API密钥未提供")
	}

	p.apiKey = apiKey

	if model, exists := config["model"]; exists && model != "" {
		p.model = model
	} else {
		p.model = "whisper-1"
	}

	// 支持自定义API地址（代理或兼容服务）
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		p.client = openai.NewClientWithConfig(cfg)
	} else {
		p.client = openai.NewClient(apiKey)
	}

	return nil
}

func (p *Provider) GetName() string {
	return "OpenAI"
}

func (p *Provider) GetModel() string {
	return p.model
}

// Transcribe 通过Whisper API转写音频文件
// 使用verbose_json格式以获取分段级别的时间戳和对数概率
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (*models.TranscriptionRaw, error) {
	if p.client == nil {
		return nil, errors.New("OpenAI提供者未初始化")
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("Whisper转写请求失败: %w", err)
	}

	// 转换为内部结构
	raw := &models.TranscriptionRaw{
		Task:     resp.Task,
		Language: resp.Language,
		Duration: resp.Duration,
		Text:     resp.Text,
	}

	for _, seg := range resp.Segments {
		raw.Segments = append(raw.Segments, models.TranscriptSegment{
			ID:               seg.ID,
			Seek:             seg.Seek,
			Start:            seg.Start,
			End:              seg.End,
			Text:             seg.Text,
			Temperature:      seg.Temperature,
			AvgLogprob:       seg.AvgLogprob,
			CompressionRatio: seg.CompressionRatio,
			NoSpeechProb:     seg.NoSpeechProb,
		})
	}

	return raw, nil
}
