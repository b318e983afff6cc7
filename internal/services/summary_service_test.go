package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/Corphon/VoiceScribeMCP/internal/errors"
	"github.com/Corphon/VoiceScribeMCP/internal/llm"
	"github.com/Corphon/VoiceScribeMCP/internal/models"
)

// fakeLLMProvider returns canned summaries without touching a real backend
type fakeLLMProvider struct {
	summarize func(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error)
	calls     []llm.SummaryRequest
}

func (f *fakeLLMProvider) Initialize(config map[string]string) error { return nil }
func (f *fakeLLMProvider) GetName() string                           { return "fake" }
func (f *fakeLLMProvider) GetSupportedModels() []string              { return []string{"fake-model"} }

func (f *fakeLLMProvider) Summarize(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
	f.calls = append(f.calls, req)
	return f.summarize(ctx, req)
}

func newEchoProvider() *fakeLLMProvider {
	p := &fakeLLMProvider{}
	p.summarize = func(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
		return &llm.SummaryResponse{
			Text:      req.Text,
			ModelName: "fake-model",
		}, nil
	}
	return p
}

func TestSplitTextIntoChunks(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		maxChunkChars int
		wantChunks    int
	}{
		{
			name:          "empty text produces zero chunks",
			text:          "",
			maxChunkChars: 1024,
			wantChunks:    0,
		},
		{
			name:          "whitespace only produces zero chunks",
			text:          "   \n\t  ",
			maxChunkChars: 1024,
			wantChunks:    0,
		},
		{
			name:          "short text fits one chunk",
			text:          "hello world",
			maxChunkChars: 1024,
			wantChunks:    1,
		},
		{
			name:          "text splits at boundary",
			text:          "aaaa bbbb cccc dddd",
			maxChunkChars: 10,
			wantChunks:    2,
		},
		{
			name:          "oversized single word gets its own chunk",
			text:          "tiny " + strings.Repeat("x", 50) + " tiny",
			maxChunkChars: 10,
			wantChunks:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitTextIntoChunks(tt.text, tt.maxChunkChars)
			if len(chunks) != tt.wantChunks {
				t.Errorf("got %d chunks, want %d: %q", len(chunks), tt.wantChunks, chunks)
			}
		})
	}
}

func TestSplitTextIntoChunksPreservesTokens(t *testing.T) {
	var words []string
	for i := 0; i < 500; i++ {
		words = append(words, fmt.Sprintf("word%d", i))
	}
	text := strings.Join(words, " ")

	chunks := SplitTextIntoChunks(text, 100)

	// Concatenating chunk tokens in order must reproduce the source tokens
	var got []string
	for _, chunk := range chunks {
		got = append(got, strings.Fields(chunk)...)
	}

	if len(got) != len(words) {
		t.Fatalf("token count changed: got %d, want %d", len(got), len(words))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Fatalf("token %d changed: got %q, want %q", i, got[i], words[i])
		}
	}

	// No chunk may exceed the bound (single words here are all small)
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d exceeds bound: %d chars", i, len(chunk))
		}
	}
}

func TestSummarizeSingleChunk(t *testing.T) {
	provider := newEchoProvider()
	svc := NewSummaryServiceWithProvider("fake", provider)

	result, err := svc.Summarize(context.Background(), "a short transcript about testing", 100, models.StyleParagraph)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if result.Text != "a short transcript about testing" {
		t.Errorf("unexpected summary: %q", result.Text)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected 1 backend call, got %d", len(provider.calls))
	}
	if result.Provider != "fake" {
		t.Errorf("unexpected provider name: %q", result.Provider)
	}
	if result.ModelUsed != "fake-model" {
		t.Errorf("unexpected model name: %q", result.ModelUsed)
	}
}

func TestSummarizeMultiChunkJoinsInOrder(t *testing.T) {
	calls := 0
	provider := &fakeLLMProvider{}
	provider.summarize = func(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
		calls++
		return &llm.SummaryResponse{Text: fmt.Sprintf("s%d", calls), ModelName: "fake-model"}, nil
	}
	svc := NewSummaryServiceWithProvider("fake", provider)

	// Long enough to force multiple chunks at the 1024 char bound
	text := strings.Repeat("alpha beta gamma delta ", 120)

	result, err := svc.Summarize(context.Background(), text, 100, models.StyleParagraph)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	chunks := SplitTextIntoChunks(strings.TrimSpace(text), MaxChunkChars)
	if len(chunks) < 2 {
		t.Fatalf("test needs multiple chunks, got %d", len(chunks))
	}

	var want []string
	for i := range chunks {
		want = append(want, fmt.Sprintf("s%d", i+1))
	}
	if result.Text != strings.Join(want, " ") {
		t.Errorf("partials not joined in chunk order: got %q", result.Text)
	}
}

func TestSummarizeRecompressesLongCombined(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 120)
	chunks := SplitTextIntoChunks(strings.TrimSpace(text), MaxChunkChars)
	if len(chunks) < 2 {
		t.Fatalf("test needs multiple chunks, got %d", len(chunks))
	}

	longPartial := strings.Repeat("word ", 40) // 40 words per partial
	provider := &fakeLLMProvider{}
	provider.summarize = func(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
		// Only the compression pass sees the joined partials
		if strings.Contains(req.Text, "word") {
			return &llm.SummaryResponse{Text: "compressed", ModelName: "fake-model"}, nil
		}
		return &llm.SummaryResponse{Text: strings.TrimSpace(longPartial), ModelName: "fake-model"}, nil
	}
	svc := NewSummaryServiceWithProvider("fake", provider)

	result, err := svc.Summarize(context.Background(), text, 50, models.StyleParagraph)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if result.Text != "compressed" {
		t.Errorf("expected combined summary to be recompressed, got %q", result.Text)
	}
	if len(provider.calls) != len(chunks)+1 {
		t.Errorf("expected %d backend calls, got %d", len(chunks)+1, len(provider.calls))
	}
}

func TestSummarizeBackendFailureDropsPartials(t *testing.T) {
	calls := 0
	provider := &fakeLLMProvider{}
	provider.summarize = func(ctx context.Context, req llm.SummaryRequest) (*llm.SummaryResponse, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("backend down")
		}
		return &llm.SummaryResponse{Text: "partial", ModelName: "fake-model"}, nil
	}
	svc := NewSummaryServiceWithProvider("fake", provider)

	text := strings.Repeat("alpha beta gamma delta ", 120)
	result, err := svc.Summarize(context.Background(), text, 100, models.StyleParagraph)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if result != nil {
		t.Errorf("expected no partial result, got %+v", result)
	}
	if !apperrors.IsBackendError(err) {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestSummarizeValidation(t *testing.T) {
	svc := NewSummaryServiceWithProvider("fake", newEchoProvider())

	tests := []struct {
		name      string
		text      string
		maxLength int
		style     models.SummaryStyle
	}{
		{"empty text", "", 100, models.StyleParagraph},
		{"whitespace text", "   ", 100, models.StyleParagraph},
		{"max length too small", "some valid text here", 5, models.StyleParagraph},
		{"max length too large", "some valid text here", 1000, models.StyleParagraph},
		{"unknown style", "some valid text here", 100, models.SummaryStyle("haiku")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Summarize(context.Background(), tt.text, tt.maxLength, tt.style)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !apperrors.IsValidationError(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSummarizeNotReady(t *testing.T) {
	svc := &SummaryService{readyState: "not configured"}

	_, err := svc.Summarize(context.Background(), "some valid text here", 100, models.StyleParagraph)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperrors.IsConfigurationError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestApplyStyleFormatting(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		style   models.SummaryStyle
		want    string
	}{
		{
			name:    "paragraph unchanged",
			summary: "First sentence. Second sentence.",
			style:   models.StyleParagraph,
			want:    "First sentence. Second sentence.",
		},
		{
			name:    "bullet points drop short fragments",
			summary: "Alpha beta gamma. Short. Another full sentence here.",
			style:   models.StyleBulletPoints,
			want:    "• Alpha beta gamma\n• Another full sentence here",
		},
		{
			name:    "executive prefix",
			summary: "The quarter went well.",
			style:   models.StyleExecutive,
			want:    "EXECUTIVE SUMMARY:\n\nThe quarter went well.",
		},
		{
			name:    "technical prefix",
			summary: "The system uses a queue.",
			style:   models.StyleTechnical,
			want:    "TECHNICAL SUMMARY:\n\nThe system uses a queue.",
		},
		{
			name:    "bullet points split on exclamation and question marks",
			summary: "What a great result this was! Should we keep the approach?",
			style:   models.StyleBulletPoints,
			want:    "• What a great result this was\n• Should we keep the approach",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyStyleFormatting(tt.summary, tt.style)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two three", 3},
		{"  spaced   out\twords\nhere  ", 4},
	}

	for _, tt := range tests {
		if got := CountWords(tt.text); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
