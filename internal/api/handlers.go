// internal/api/handlers.go
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Corphon/VoiceScribeMCP/internal/errors"
	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/services"
	"github.com/Corphon/VoiceScribeMCP/internal/utils"
)

// 最小摘要输入长度（字符数）与单批最大条目数
const (
	MinSummarizeTextChars = 10
	MaxBatchItems         = 10
)

// APIResponse 统一API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError API错误详情
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Handler API处理器
type Handler struct {
	SummaryService       *services.SummaryService
	TranscriptionService *services.TranscriptionService
	NoteService          *services.NoteService
	ProgressService      *services.ProgressService
	Response             *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	summaryService *services.SummaryService,
	transcriptionService *services.TranscriptionService,
	noteService *services.NoteService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		SummaryService:       summaryService,
		TranscriptionService: transcriptionService,
		NoteService:          noteService,
		ProgressService:      progressService,
		Response:             NewResponseHelper(),
	}
}

// SummarizeRequest 摘要请求
type SummarizeRequest struct {
	Text      string `json:"text" binding:"required"`
	MaxLength int    `json:"max_length"`
	Style     string `json:"style"`
}

// SummarizeResponse 摘要响应
type SummarizeResponse struct {
	Summary        string `json:"summary"`
	WordCount      int    `json:"word_count"`
	OriginalLength int    `json:"original_length"`
	Style          string `json:"style"`
	ModelUsed      string `json:"model_used"`
	Provider       string `json:"provider"`
}

// BatchSummarizeRequest 批量摘要请求
type BatchSummarizeRequest struct {
	Items []SummarizeRequest `json:"items" binding:"required"`
}

// BatchSummarizeItem 批量摘要中单条结果，失败时Error非空
type BatchSummarizeItem struct {
	Index   int                `json:"index"`
	Result  *SummarizeResponse `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
	Success bool               `json:"success"`
}

// TranscribeResponse 转写响应
type TranscribeResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Duration   float64 `json:"duration"`
}

// normalizeSummarizeRequest 填充缺省参数
func normalizeSummarizeRequest(req *SummarizeRequest) {
	if req.MaxLength == 0 {
		req.MaxLength = 150
	}
	if req.Style == "" {
		req.Style = string(models.StyleParagraph)
	}
}

// summarizeOne 执行单条摘要，返回响应体或领域错误
func (h *Handler) summarizeOne(c *gin.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	normalizeSummarizeRequest(&req)

	trimmed := strings.TrimSpace(req.Text)
	if len(trimmed) < MinSummarizeTextChars {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("文本太短，至少需要%d个字符", MinSummarizeTextChars), nil)
	}

	result, err := h.SummaryService.Summarize(
		c.Request.Context(), req.Text, req.MaxLength, models.SummaryStyle(req.Style))
	if err != nil {
		return nil, err
	}

	return &SummarizeResponse{
		Summary:        result.Text,
		WordCount:      result.WordCount,
		OriginalLength: len(req.Text),
		Style:          string(result.Style),
		ModelUsed:      result.ModelUsed,
		Provider:       result.Provider,
	}, nil
}

// SummarizeText 处理文本摘要请求
// POST /api/v1/summarize
func (h *Handler) SummarizeText(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorTextEmpty, "无效的请求格式", err.Error())
		return
	}

	if len(strings.TrimSpace(req.Text)) < MinSummarizeTextChars {
		h.Response.Error(c, http.StatusBadRequest, ErrorTextTooShort,
			fmt.Sprintf("文本太短，至少需要%d个字符", MinSummarizeTextChars))
		return
	}

	resp, err := h.summarizeOne(c, req)
	if err != nil {
		h.respondDomainError(c, err, ErrorSummarizationFailed)
		return
	}

	h.Response.Success(c, resp)
}

// SummarizeBatch 处理批量摘要请求
// POST /api/v1/summarize/batch
// 单条失败不会中断整个批次，错误内联在对应条目中返回
func (h *Handler) SummarizeBatch(c *gin.Context) {
	var req BatchSummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidSummaryParams, "无效的请求格式", err.Error())
		return
	}

	if len(req.Items) == 0 {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidSummaryParams, "批量请求不能为空")
		return
	}

	if len(req.Items) > MaxBatchItems {
		h.Response.Error(c, http.StatusBadRequest, ErrorBatchTooLarge,
			fmt.Sprintf("单批最多%d条，收到%d条", MaxBatchItems, len(req.Items)))
		return
	}

	results := make([]BatchSummarizeItem, 0, len(req.Items))
	succeeded := 0
	for i, item := range req.Items {
		resp, err := h.summarizeOne(c, item)
		if err != nil {
			results = append(results, BatchSummarizeItem{
				Index:   i,
				Error:   err.Error(),
				Success: false,
			})
			continue
		}
		results = append(results, BatchSummarizeItem{
			Index:   i,
			Result:  resp,
			Success: true,
		})
		succeeded++
	}

	h.Response.Success(c, gin.H{
		"results":   results,
		"total":     len(req.Items),
		"succeeded": succeeded,
		"failed":    len(req.Items) - succeeded,
	})
}

// SummarizeStatus 获取摘要后端状态
// GET /api/v1/summarize/status
func (h *Handler) SummarizeStatus(c *gin.Context) {
	h.Response.Success(c, h.SummaryService.GetStatus())
}

// TranscribeAudio 处理音频转写请求
// POST /api/v1/transcribe
func (h *Handler) TranscribeAudio(c *gin.Context) {
	upload, closer, ok := h.readAudioUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	result, err := h.TranscriptionService.Transcribe(c.Request.Context(), upload)
	if err != nil {
		h.respondTranscribeError(c, err)
		return
	}

	h.Response.Success(c, &TranscribeResponse{
		Transcript: result.Transcript,
		Confidence: result.Confidence,
		Language:   result.Language,
		Duration:   result.Duration,
	})
}

// TranscribeAsync 创建异步转写任务
// POST /api/v1/transcribe/async
// 音频在请求内落盘，转写在后台执行，进度通过SSE或WebSocket推送
func (h *Handler) TranscribeAsync(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "缺少音频文件", err.Error())
		return
	}

	src, err := file.Open()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}

	// 请求结束后multipart的临时文件随之失效，必须在响应前读完内容
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}

	taskID := uuid.New().String()
	tracker := h.ProgressService.CreateTracker(taskID)

	// 异步任务持有独立的超时上下文，不随HTTP请求结束而取消
	upload := &services.AudioUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Reader:      bytes.NewReader(data),
	}

	go func() {
		logger := utils.GetLogger()
		tracker.UpdateProgress(10, "转写任务已开始")

		ctx, cancel := taskContext()
		defer cancel()

		result, err := h.TranscriptionService.Transcribe(ctx, upload)
		if err != nil {
			logger.Errorf("异步转写任务失败 %s: %v", taskID, err)
			tracker.Fail(err.Error())
			return
		}

		tracker.UpdateProgress(90, "转写完成，正在整理结果")
		tracker.Complete("转写任务完成", &TranscribeResponse{
			Transcript: result.Transcript,
			Confidence: result.Confidence,
			Language:   result.Language,
			Duration:   result.Duration,
		})
	}()

	h.Response.Accepted(c, gin.H{
		"task_id": taskID,
		"status":  "processing",
	}, "转写任务已创建")
}

// TranscribeStatus 获取转写后端状态
// GET /api/v1/transcribe/status
func (h *Handler) TranscribeStatus(c *gin.Context) {
	h.Response.Success(c, h.TranscriptionService.GetStatus())
}

// GetTaskResult 查询异步任务的当前状态与结果
// GET /api/v1/tasks/:taskID
func (h *Handler) GetTaskResult(c *gin.Context) {
	taskID := c.Param("taskID")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.Response.Error(c, http.StatusNotFound, ErrorTaskNotFound, "任务不存在")
		return
	}

	result, status := tracker.GetResult()
	h.Response.Success(c, gin.H{
		"task_id": taskID,
		"status":  status,
		"result":  result,
	})
}

// readAudioUpload 从multipart请求中提取音频上传
func (h *Handler) readAudioUpload(c *gin.Context) (*services.AudioUpload, io.Closer, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "缺少音频文件", err.Error())
		return nil, nil, false
	}

	src, err := file.Open()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return nil, nil, false
	}

	upload := &services.AudioUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Reader:      src,
	}
	return upload, src, true
}

// taskContext 异步任务使用的独立超时上下文
func taskContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Minute)
}

// respondTranscribeError 转写错误到HTTP响应的映射
func (h *Handler) respondTranscribeError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidationError(err):
		h.Response.Error(c, http.StatusBadRequest, ErrorAudioInvalid, err.Error())
	case apperrors.IsConfigurationError(err):
		h.Response.Error(c, http.StatusInternalServerError, ErrorBackendUnavailable, err.Error())
	default:
		h.Response.Error(c, http.StatusInternalServerError, ErrorTranscriptionFailed, err.Error())
	}
}

// respondDomainError 通用领域错误到HTTP响应的映射
func (h *Handler) respondDomainError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case apperrors.IsValidationError(err):
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidSummaryParams, err.Error())
	case apperrors.IsNotFoundError(err):
		h.Response.Error(c, http.StatusNotFound, ErrorNotFound, err.Error())
	case apperrors.IsConfigurationError(err):
		h.Response.Error(c, http.StatusInternalServerError, ErrorBackendUnavailable, err.Error())
	default:
		h.Response.Error(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

// SaveNoteRequest 保存笔记请求
type SaveNoteRequest struct {
	Title      string  `json:"title"`
	Transcript string  `json:"transcript" binding:"required"`
	Summary    string  `json:"summary"`
	Style      string  `json:"style"`
	Language   string  `json:"language"`
	Duration   float64 `json:"duration"`
	Confidence float64 `json:"confidence"`
}

// SaveNote 保存笔记
// POST /api/v1/notes
func (h *Handler) SaveNote(c *gin.Context) {
	var req SaveNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorNoteSaveFailed, "无效的请求格式", err.Error())
		return
	}

	note := &models.Note{
		Title:      req.Title,
		Transcript: req.Transcript,
		Summary:    req.Summary,
		Style:      models.SummaryStyle(req.Style),
		Language:   req.Language,
		Duration:   req.Duration,
		Confidence: req.Confidence,
	}

	saved, err := h.NoteService.SaveNote(note)
	if err != nil {
		h.respondDomainError(c, err, ErrorNoteSaveFailed)
		return
	}

	h.Response.Created(c, saved, "笔记保存成功")
}

// ListNotes 列出所有笔记元数据
// GET /api/v1/notes
func (h *Handler) ListNotes(c *gin.Context) {
	notes, err := h.NoteService.ListNotes()
	if err != nil {
		h.Response.InternalError(c, "获取笔记列表失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"notes": notes,
		"total": len(notes),
	})
}

// GetNote 获取单条笔记
// GET /api/v1/notes/:id
func (h *Handler) GetNote(c *gin.Context) {
	id := c.Param("id")

	note, err := h.NoteService.GetNote(id)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.Error(c, http.StatusNotFound, ErrorNoteNotFound, err.Error())
			return
		}
		h.Response.InternalError(c, "获取笔记失败", err.Error())
		return
	}

	h.Response.Success(c, note)
}

// DeleteNote 删除笔记
// DELETE /api/v1/notes/:id
func (h *Handler) DeleteNote(c *gin.Context) {
	id := c.Param("id")

	if err := h.NoteService.DeleteNote(id); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.Error(c, http.StatusNotFound, ErrorNoteNotFound, err.Error())
			return
		}
		h.Response.Error(c, http.StatusInternalServerError, ErrorNoteDeleteFailed, err.Error())
		return
	}

	h.Response.Success(c, gin.H{"id": id}, "笔记已删除")
}

// HealthCheck 健康检查
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	summaryReady := h.SummaryService.IsReady()
	transcribeReady := h.TranscriptionService.IsReady()

	status := "ok"
	if !summaryReady || !transcribeReady {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"services": gin.H{
			"summary":       summaryReady,
			"transcription": transcribeReady,
		},
	})
}

// Index API信息
// GET /
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "VoiceScribeMCP",
		"version": "1.0.0",
		"endpoints": gin.H{
			"summarize":  "/api/v1/summarize",
			"batch":      "/api/v1/summarize/batch",
			"transcribe": "/api/v1/transcribe",
			"async":      "/api/v1/transcribe/async",
			"progress":   "/api/v1/progress/:taskID",
			"notes":      "/api/v1/notes",
			"health":     "/health",
		},
	})
}
