// internal/services/transcription_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Corphon/VoiceScribeMCP/internal/config"
	apperrors "github.com/Corphon/VoiceScribeMCP/internal/errors"
	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/stt"
	"github.com/Corphon/VoiceScribeMCP/internal/utils"
)

// AudioUpload 表示一次上传的音频及其声明的元数据
// 字节流在本次请求内被独占消费，转写完成后临时存储即被删除
type AudioUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// TranscriptionService 提供音频转写能力：校验上传、落临时文件、
// 调用转写后端、从分段数据推导置信度
type TranscriptionService struct {
	providerMutex sync.RWMutex
	provider      stt.Provider
	providerName  string
	tempDir       string
	isReady       bool
	readyState    string
}

// NewTranscriptionService 从当前配置创建转写服务
// 配置缺失时返回未就绪服务而不是错误
func NewTranscriptionService() *TranscriptionService {
	service := &TranscriptionService{tempDir: "temp"}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service
	}

	service.tempDir = cfg.TempDir

	if cfg.STTProvider == "" {
		service.readyState = "STT provider not configured"
		return service
	}

	provider, err := stt.GetProvider(cfg.STTProvider, cfg.STTConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service
	}

	service.provider = provider
	service.providerName = cfg.STTProvider
	service.isReady = true
	service.readyState = "Ready"

	return service
}

// NewTranscriptionServiceWithProvider 使用指定提供者创建转写服务（测试注入用）
func NewTranscriptionServiceWithProvider(providerName string, provider stt.Provider, tempDir string) *TranscriptionService {
	return &TranscriptionService{
		provider:     provider,
		providerName: providerName,
		tempDir:      tempDir,
		isReady:      provider != nil,
		readyState:   "Ready",
	}
}

// IsReady 返回服务是否就绪
func (s *TranscriptionService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// SetProvider 更新转写提供者（配置变更后调用）
func (s *TranscriptionService) SetProvider(providerName string, provider stt.Provider) {
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
func (s *TranscriptionService) GetStatus() map[string]interface{} {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	status := map[string]interface{}{
		"provider":  s.providerName,
		"available": s.isReady,
	}

	if s.provider != nil {
		status["model"] = s.provider.GetModel()
	}

	if !s.isReady {
		status["error"] = s.readyState
	}

	return status
}

// Transcribe 转写一段上传的音频
//
// 上传内容先写入临时文件再交给后端，无论成功、后端失败还是
// 校验失败，临时文件都在返回前删除
func (s *TranscriptionService) Transcribe(ctx context.Context, upload *AudioUpload) (*models.TranscriptionResult, error) {
	// 校验上传元数据
	if !utils.ValidateAudioFile(upload.Filename, upload.ContentType, upload.Size) {
		reason := utils.AudioValidationReason(upload.Filename, upload.ContentType, upload.Size)
		return nil, apperrors.NewValidationError(reason, nil)
	}

	s.providerMutex.RLock()
	provider := s.provider
	isReady := s.isReady
	s.providerMutex.RUnlock()

	if !isReady || provider == nil {
		return nil, apperrors.NewConfigurationError("转写后端未配置", nil)
	}

	logger := utils.GetLogger()
	logger.Infof("转写任务开始: %s (%d字节)", upload.Filename, upload.Size)

	// 保存到临时文件
	tempPath, err := s.saveTempFile(upload)
	if err != nil {
		return nil, apperrors.NewProcessingError("保存上传文件失败", err)
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			logger.Warnf("清理临时文件失败 %s: %v", tempPath, err)
		}
	}()

	// 调用转写后端
	raw, err := provider.Transcribe(ctx, tempPath)
	if err != nil {
		return nil, apperrors.NewBackendError("音频转写失败", err)
	}

	// 从分段数据推导置信度和时长
	confidence := EstimateConfidence(raw.Segments)

	duration := confidence.Duration
	if len(raw.Segments) == 0 && raw.Duration > 0 {
		// 后端未返回分段但报告了时长时，直接采用后端时长
		duration = raw.Duration
	}

	language := raw.Language
	if language == "" {
		language = "en"
	}

	result := &models.TranscriptionResult{
		Transcript: strings.TrimSpace(raw.Text),
		Confidence: confidence.Confidence,
		Language:   language,
		Duration:   duration,
	}

	logger.Infof("转写任务完成: %s, 语言%s, 时长%.1fs", upload.Filename, result.Language, result.Duration)

	return result, nil
}

// saveTempFile 将上传内容写入临时文件并返回路径
func (s *TranscriptionService) saveTempFile(upload *AudioUpload) (string, error) {
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return "", fmt.Errorf("创建临时目录失败: %w", err)
	}

	ext := filepath.Ext(upload.Filename)
	tempFile, err := os.CreateTemp(s.tempDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}

	if _, err := io.Copy(tempFile, upload.Reader); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("写入临时文件失败: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("关闭临时文件失败: %w", err)
	}

	return tempFile.Name(), nil
}
