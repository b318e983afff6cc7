// internal/llm/providers/huggingface/huggingface.go
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/VoiceScribeMCP/internal/llm"
)

func init() {
	llm.Register("huggingface", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"facebook/bart-large-cnn",
				"google/pegasus-xsum",
				"sshleifer/distilbart-cnn-12-6",
				"philschmid/bart-large-cnn-samsum",
			},
			baseURL: "https://api-inference.huggingface.co/models",
		}
	})
}

type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
}

// summarizationRequest Inference API的请求体
type summarizationRequest struct {
	Inputs     string                 `json:"inputs"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Options    map[string]interface{} `json:"options,omitempty"`
}

// summarizationResult Inference API的响应条目
type summarizationResult struct {
	SummaryText string `json:"summary_text"`
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("Hugging Face API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{Timeout: 120 * time.Second}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "facebook/bart-large-cnn"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "HuggingFace"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

// Summarize 调用Hugging Face Inference API生成摘要
func (p *Provider) Summarize(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
	if p.client == nil {
		return nil, errors.New("Hugging Face提供者未初始化")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	// 构建请求体
	body := summarizationRequest{
		Inputs: req.Text,
		Parameters: map[string]interface{}{
			"max_length": req.MaxLength,
			"min_length": 30,
			"do_sample":  false,
			"truncation": true,
		},
		Options: map[string]interface{}{
			// 模型冷启动时等待加载完成，而不是返回503
			"wait_for_model": true,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	// 发送请求
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 检查响应
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Hugging Face摘要请求失败(%d): %s", resp.StatusCode, string(respBody))
	}

	// 解析响应
	var results []summarizationResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("解析Hugging Face响应失败: %w", err)
	}

	if len(results) == 0 || results[0].SummaryText == "" {
		return nil, errors.New("Hugging Face返回了空的摘要结果")
	}

	return &llm.SummaryResponse{
		Text:         strings.TrimSpace(results[0].SummaryText),
		ModelName:    model,
		ProviderName: "huggingface",
	}, nil
}
