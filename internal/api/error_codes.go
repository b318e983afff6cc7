// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 摘要相关错误
	ErrorSummarizationFailed  = "SUMMARIZATION_FAILED"
	ErrorTextEmpty            = "TEXT_EMPTY"
	ErrorTextTooShort         = "TEXT_TOO_SHORT"
	ErrorInvalidSummaryParams = "INVALID_SUMMARY_PARAMS"
	ErrorBatchTooLarge        = "BATCH_TOO_LARGE"

	// 转写相关错误
	ErrorTranscriptionFailed = "TRANSCRIPTION_FAILED"
	ErrorAudioInvalid        = "AUDIO_INVALID"
	ErrorFileUploadFailed    = "FILE_UPLOAD_FAILED"

	// 后端服务相关错误
	ErrorBackendUnavailable = "BACKEND_UNAVAILABLE"

	// 笔记相关错误
	ErrorNoteNotFound     = "NOTE_NOT_FOUND"
	ErrorNoteSaveFailed   = "NOTE_SAVE_FAILED"
	ErrorNoteDeleteFailed = "NOTE_DELETE_FAILED"

	// 任务进度相关错误
	ErrorTaskNotFound = "TASK_NOT_FOUND"
)
