// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/VoiceScribeMCP/internal/config"
	"github.com/Corphon/VoiceScribeMCP/internal/di"
	"github.com/Corphon/VoiceScribeMCP/internal/services"
	"github.com/Corphon/VoiceScribeMCP/internal/utils"

	// 注册内置提供商
	_ "github.com/Corphon/VoiceScribeMCP/internal/llm/providers/huggingface"
	_ "github.com/Corphon/VoiceScribeMCP/internal/llm/providers/openai"
	_ "github.com/Corphon/VoiceScribeMCP/internal/stt/providers/openai"
	_ "github.com/Corphon/VoiceScribeMCP/internal/stt/providers/whisperserver"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 后端未配置时服务以未就绪状态注册，不阻止启动
func InitServices() error {
	container := di.GetContainer()
	logger := utils.GetLogger()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	// 1. 进度服务（无依赖）
	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	// 2. 摘要服务
	summaryService := services.NewSummaryService()
	container.Register("summary", summaryService)
	if !summaryService.IsReady() {
		logger.Warnf("摘要服务未就绪: %v", summaryService.GetStatus()["error"])
	}

	// 3. 转写服务
	transcriptionService := services.NewTranscriptionService()
	container.Register("transcription", transcriptionService)
	if !transcriptionService.IsReady() {
		logger.Warnf("转写服务未就绪: %v", transcriptionService.GetStatus()["error"])
	}

	// 4. 笔记服务（依赖文件存储）
	noteService, err := services.NewNoteService(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化笔记服务失败: %w", err)
	}
	container.Register("note", noteService)

	logger.Infof("服务初始化完成，已注册%d个服务", len(container.GetNames()))
	return nil
}
