package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/VoiceScribeMCP/internal/llm"
	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/services"
)

type stubLLMProvider struct {
	text string
	err  error
}

func (s *stubLLMProvider) Initialize(config map[string]string) error { return nil }
func (s *stubLLMProvider) GetName() string                           { return "stub" }
func (s *stubLLMProvider) GetSupportedModels() []string              { return []string{"stub-model"} }

func (s *stubLLMProvider) Summarize(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.SummaryResponse{Text: s.text, ModelName: "stub-model"}, nil
}

type stubSTTProvider struct {
	raw *models.TranscriptionRaw
	err error
}

func (s *stubSTTProvider) Initialize(config map[string]string) error { return nil }
func (s *stubSTTProvider) GetName() string                           { return "stub" }
func (s *stubSTTProvider) GetModel() string                          { return "stub-model" }

func (s *stubSTTProvider) Transcribe(ctx context.Context, audioPath string) (*models.TranscriptionRaw, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.raw, nil
}

func newTestRouter(t *testing.T, llmProvider llm.Provider, sttRaw *models.TranscriptionRaw) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	summarySvc := services.NewSummaryServiceWithProvider("stub", llmProvider)
	transcribeSvc := services.NewTranscriptionServiceWithProvider("stub", &stubSTTProvider{raw: sttRaw}, t.TempDir())
	noteSvc, err := services.NewNoteService(t.TempDir())
	if err != nil {
		t.Fatalf("NewNoteService failed: %v", err)
	}
	progressSvc := services.NewProgressService()

	handler := NewHandler(summarySvc, transcribeSvc, noteSvc, progressSvc)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/health", handler.HealthCheck)
	api := r.Group("/api/v1")
	{
		api.POST("/summarize", handler.SummarizeText)
		api.POST("/summarize/batch", handler.SummarizeBatch)
		api.GET("/summarize/status", handler.SummarizeStatus)
		api.POST("/transcribe", handler.TranscribeAudio)
		api.POST("/transcribe/async", handler.TranscribeAsync)
		api.GET("/tasks/:taskID", handler.GetTaskResult)
		api.GET("/notes", handler.ListNotes)
		api.POST("/notes", handler.SaveNote)
		api.GET("/notes/:id", handler.GetNote)
		api.DELETE("/notes/:id", handler.DeleteNote)
	}
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, w.Body.String())
	}
	return resp
}

func TestSummarizeEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "a short summary"}, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{
		"text":       "this is a long enough transcript for the endpoint to accept",
		"max_length": 100,
		"style":      "paragraph",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.RequestID == "" {
		t.Error("response missing request_id")
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %T", resp.Data)
	}
	if data["summary"] != "a short summary" {
		t.Errorf("summary = %v", data["summary"])
	}
	if data["model_used"] != "stub-model" {
		t.Errorf("model_used = %v", data["model_used"])
	}
}

func TestSummarizeEndpointValidation(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing text", gin.H{"max_length": 100}},
		{"too short text", gin.H{"text": "short"}},
		{"bad style", gin.H{"text": "this is a long enough transcript", "style": "haiku"}},
		{"bad max length", gin.H{"text": "this is a long enough transcript", "max_length": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/v1/summarize", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
			}
			resp := decodeResponse(t, w)
			if resp.Success || resp.Error == nil {
				t.Errorf("expected error envelope, got %+v", resp)
			}
		})
	}
}

func TestSummarizeEndpointTextTooShortCode(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{"text": "tiny"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorTextTooShort {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

func TestSummarizeEndpointBackendNotConfigured(t *testing.T) {
	// 无提供者的服务未就绪，统一映射为BACKEND_UNAVAILABLE
	r := newTestRouter(t, nil, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{
		"text": "this is a long enough transcript for the endpoint to accept",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (body: %s)", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorBackendUnavailable {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

func TestSummarizeEndpointBackendFailure(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{err: fmt.Errorf("model overloaded")}, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{
		"text": "this is a long enough transcript for the endpoint to accept",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorSummarizationFailed {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

func TestSummarizeBatchEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	items := []gin.H{
		{"text": "first transcript that is long enough to summarize"},
		{"text": "nope"}, // too short, fails inline
		{"text": "third transcript that is long enough to summarize"},
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/summarize/batch", gin.H{"items": items})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	if data["total"].(float64) != 3 {
		t.Errorf("total = %v", data["total"])
	}
	if data["succeeded"].(float64) != 2 {
		t.Errorf("succeeded = %v", data["succeeded"])
	}
	if data["failed"].(float64) != 1 {
		t.Errorf("failed = %v", data["failed"])
	}

	results := data["results"].([]interface{})
	second := results[1].(map[string]interface{})
	if second["success"].(bool) {
		t.Error("second item should have failed")
	}
	if second["error"] == "" {
		t.Error("failed item missing inline error")
	}
}

func TestSummarizeBatchTooLarge(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	items := make([]gin.H, 11)
	for i := range items {
		items[i] = gin.H{"text": "a transcript that is long enough to pass validation"}
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/summarize/batch", gin.H{"items": items})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorBatchTooLarge {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

// audioFormBody builds a multipart body whose file part declares a real
// audio content type instead of multipart's application/octet-stream default
func audioFormBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("creating form part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("writing form part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	return &body, writer.FormDataContentType()
}

func TestTranscribeEndpoint(t *testing.T) {
	raw := &models.TranscriptionRaw{
		Language: "en",
		Duration: 12.0,
		Text:     "hello from the audio",
		Segments: []models.TranscriptSegment{{AvgLogprob: -0.4, End: 12.0}},
	}
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, raw)

	body, formType := audioFormBody(t, "clip.mp3", "audio/mpeg", []byte("fake audio bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", formType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	if data["transcript"] != "hello from the audio" {
		t.Errorf("transcript = %v", data["transcript"])
	}
	if data["language"] != "en" {
		t.Errorf("language = %v", data["language"])
	}
	if data["duration"].(float64) != 12.0 {
		t.Errorf("duration = %v", data["duration"])
	}
}

func TestTranscribeEndpointAcceptsMissingContentType(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, &models.TranscriptionRaw{Text: "spoken words"})

	// A part without a declared content type is valid, absence is not a
	// rejection reason
	body, formType := audioFormBody(t, "clip.wav", "", []byte("fake audio bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", formType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestTranscribeEndpointRejectsBadUpload(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, &models.TranscriptionRaw{Text: "ok"})

	body, formType := audioFormBody(t, "notes.txt", "text/plain", []byte("not audio"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", formType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorAudioInvalid {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, ".txt") {
		t.Errorf("error message does not name the constraint: %q", resp.Error.Message)
	}
}

func TestTranscribeAsyncEndpoint(t *testing.T) {
	raw := &models.TranscriptionRaw{
		Language: "en",
		Duration: 9.0,
		Text:     "async spoken words",
		Segments: []models.TranscriptSegment{{AvgLogprob: -0.2, End: 9.0}},
	}
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, raw)

	body, formType := audioFormBody(t, "clip.mp3", "audio/mpeg", []byte("fake audio bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe/async", body)
	req.Header.Set("Content-Type", formType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body: %s)", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	taskID, _ := data["task_id"].(string)
	if taskID == "" {
		t.Fatal("accepted response missing task_id")
	}

	// 任务在后台运行，轮询结果端点直到完成
	var final map[string]interface{}
	for i := 0; i < 50; i++ {
		pw := doJSON(t, r, http.MethodGet, "/api/v1/tasks/"+taskID, nil)
		if pw.Code != http.StatusOK {
			t.Fatalf("poll status = %d, body = %s", pw.Code, pw.Body.String())
		}
		presp := decodeResponse(t, pw)
		pdata := presp.Data.(map[string]interface{})
		if pdata["status"] == "completed" {
			final = pdata
			break
		}
		if pdata["status"] == "failed" {
			t.Fatalf("task failed: %+v", pdata)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if final == nil {
		t.Fatal("task did not complete in time")
	}

	result, ok := final["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", final["result"])
	}
	if result["transcript"] != "async spoken words" {
		t.Errorf("transcript = %v", result["transcript"])
	}
	if result["duration"].(float64) != 9.0 {
		t.Errorf("duration = %v", result["duration"])
	}
}

func TestTranscribeEndpointMissingFile(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, &models.TranscriptionRaw{Text: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestNotesEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	// Create
	w := doJSON(t, r, http.MethodPost, "/api/v1/notes", gin.H{
		"transcript": "the transcript of a recorded meeting",
		"summary":    "meeting recap",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decodeResponse(t, w)
	noteData := created.Data.(map[string]interface{})
	noteID := noteData["id"].(string)
	if noteID == "" {
		t.Fatal("created note has no id")
	}

	// Read back
	w = doJSON(t, r, http.MethodGet, "/api/v1/notes/"+noteID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// List
	w = doJSON(t, r, http.MethodGet, "/api/v1/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	listResp := decodeResponse(t, w)
	listData := listResp.Data.(map[string]interface{})
	if listData["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", listData["total"])
	}

	// Delete
	w = doJSON(t, r, http.MethodDelete, "/api/v1/notes/"+noteID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	// Gone
	w = doJSON(t, r, http.MethodGet, "/api/v1/notes/"+noteID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestGetTaskResultNotFound(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tasks/no-such-task", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorTaskNotFound {
		t.Errorf("unexpected error payload: %+v", resp.Error)
	}
}

func TestHealthCheckEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubLLMProvider{text: "summary"}, nil)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}
