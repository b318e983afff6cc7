// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/VoiceScribeMCP/internal/config"
	"github.com/Corphon/VoiceScribeMCP/internal/di"
	"github.com/Corphon/VoiceScribeMCP/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 确保临时目录存在
	if cfg != nil {
		os.MkdirAll(cfg.TempDir, 0755)
	}

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	summaryService, ok := container.Get("summary").(*services.SummaryService)
	if !ok {
		return nil, fmt.Errorf("摘要服务未正确初始化")
	}

	transcriptionService, ok := container.Get("transcription").(*services.TranscriptionService)
	if !ok {
		return nil, fmt.Errorf("转写服务未正确初始化")
	}

	noteService, ok := container.Get("note").(*services.NoteService)
	if !ok {
		return nil, fmt.Errorf("笔记服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	// 创建API处理器
	handler := NewHandler(
		summaryService,
		transcriptionService,
		noteService,
		progressService,
	)

	// 创建路由
	r := gin.Default()

	// 启用CORS和请求ID
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// ===============================
	// 根路由
	// ===============================
	r.GET("/", handler.Index)
	r.GET("/health", handler.HealthCheck)

	// WebSocket 支持
	r.GET("/ws/progress/:taskID", handler.ProgressWebSocket)

	// ===============================
	// API路由
	// ===============================
	api := r.Group("/api/v1")
	api.Use(DefaultRateLimit())
	{
		// 摘要
		api.POST("/summarize", SummarizeRateLimit(), handler.SummarizeText)
		api.POST("/summarize/batch", SummarizeRateLimit(), handler.SummarizeBatch)
		api.GET("/summarize/status", handler.SummarizeStatus)

		// 转写
		api.POST("/transcribe", TranscribeRateLimit(), handler.TranscribeAudio)
		api.POST("/transcribe/async", TranscribeRateLimit(), handler.TranscribeAsync)
		api.GET("/transcribe/status", handler.TranscribeStatus)

		// 任务进度
		api.GET("/progress/:taskID", handler.SubscribeProgress)
		api.GET("/tasks/:taskID", handler.GetTaskResult)

		// 笔记
		api.GET("/notes", handler.ListNotes)
		api.POST("/notes", handler.SaveNote)
		api.GET("/notes/:id", handler.GetNote)
		api.DELETE("/notes/:id", handler.DeleteNote)
	}

	// 定期清理已完成的任务跟踪器
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			progressService.CleanupCompletedTasks(1 * time.Hour)
		}
	}()

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
