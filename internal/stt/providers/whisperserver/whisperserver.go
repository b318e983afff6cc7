// internal/stt/providers/whisperserver/whisperserver.go
package whisperserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/stt"
)

func init() {
	stt.Register("whisperserver", func() stt.Provider {
		return &Provider{}
	})
}

// Provider 调用自托管的Whisper HTTP服务（whisper.cpp server、
// faster-whisper-server等兼容OpenAI转写接口的本地部署）
type Provider struct {
	baseURL string
	apiKey  string // 本地部署通常不需要，保留以兼容带鉴权的网关
	client  *http.Client
	model   string
}

func (p *Provider) Initialize(config map[string]string) error {
	baseURL, exists := config["base_url"]
	if !exists || baseURL == "" {
		return errors.New("Whisper服务地址未提供")
	}

	p.baseURL = baseURL
	p.apiKey = config["api_key"]
	p.client = &http.Client{Timeout: 10 * time.Minute}

	if model, exists := config["model"]; exists && model != "" {
		p.model = model
	} else {
		p.model = "base"
	}

	return nil
}

func (p *Provider) GetName() string {
	return "WhisperServer"
}

func (p *Provider) GetModel() string {
	return p.model
}

// Transcribe 以multipart形式上传音频并解析verbose JSON响应
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (*models.TranscriptionRaw, error) {
	if p.client == nil {
		return nil, errors.New("Whisper服务提供者未初始化")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer file.Close()

	// 构建multipart请求体
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}

	writer.WriteField("model", p.model)
	writer.WriteField("response_format", "verbose_json")

	if err := writer.Close(); err != nil {
		return nil, err
	}

	url := p.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	// 发送请求
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 检查响应
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Whisper服务转写失败(%d): %s", resp.StatusCode, string(respBody))
	}

	// 解析verbose JSON响应
	var raw models.TranscriptionRaw
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("解析Whisper服务响应失败: %w", err)
	}

	return &raw, nil
}
