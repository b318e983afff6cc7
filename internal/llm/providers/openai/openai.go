// internal/llm/providers/openai/openai.go
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Corphon/VoiceScribeMCP/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

func init() {
	llm.Register("openai", func() llm.Provider {
		return &Provider{
			supportedModels: []string{
				"gpt-4o",
				"gpt-4o-mini",
				"gpt-4.1",
				"gpt-4.1-mini",
				"gpt-3.5-turbo",
			},
		}
	})
}

type Provider struct {
	apiKey          string
	client          *openai.Client
	defaultModel    string
	supportedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("OpenAI API密钥未提供")
	}

	p.apiKey = apiKey

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "gpt-4o"
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

func (p *Provider) GetSupportedModels() []string {
	return p.supportedModels
}

// Summarize 调用Chat Completions接口对一段文本生成摘要
func (p *Provider) Summarize(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
	if p.client == nil {
		return nil, errors.New("OpenAI提供者未初始化")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an AI assistant specialized in creating clear and concise summaries.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req),
			},
		},
		MaxTokens:   req.MaxLength * 2, // 词数的近似token预算
		Temperature: 0.3,
		TopP:        0.9,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI摘要请求失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("OpenAI返回了空的候选列表")
	}

	return &llm.SummaryResponse{
		Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensUsed:   resp.Usage.TotalTokens,
		ModelName:    model,
		ProviderName: "openai",
	}, nil
}

// buildPrompt 根据摘要风格构造提示词
func buildPrompt(req llm.SummaryRequest) string {
	var sb strings.Builder
	sb.WriteString("Please summarize the following text clearly and concisely. ")

	switch req.Style {
	case "bullet_points":
		sb.WriteString("Use bullet points to highlight key information and action items. ")
	case "paragraph":
		sb.WriteString("Provide a coherent paragraph summary. ")
	case "executive":
		sb.WriteString("Create an executive summary suitable for business presentations. ")
	case "technical":
		sb.WriteString("Provide a technical summary with specific details and terminology. ")
	}

	sb.WriteString(fmt.Sprintf("Keep the summary under %d words. Here's the text to summarize:\n\n%s",
		req.MaxLength, req.Text))

	return sb.String()
}
