// internal/services/note_service.go
package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Corphon/VoiceScribeMCP/internal/errors"
	"github.com/Corphon/VoiceScribeMCP/internal/models"
	"github.com/Corphon/VoiceScribeMCP/internal/storage"
	"github.com/google/uuid"
)

const notesDir = "notes"

// NoteService 管理语音笔记的持久化（转写稿及其摘要）
type NoteService struct {
	storage *storage.FileStorage
}

// NewNoteService 创建笔记服务
func NewNoteService(dataDir string) (*NoteService, error) {
	fs, err := storage.NewFileStorage(dataDir)
	if err != nil {
		return nil, fmt.Errorf("初始化笔记存储失败: %w", err)
	}

	return &NoteService{storage: fs}, nil
}

// SaveNote 保存笔记；ID为空时生成新笔记
func (s *NoteService) SaveNote(note *models.Note) (*models.Note, error) {
	if strings.TrimSpace(note.Transcript) == "" {
		return nil, apperrors.NewValidationError("笔记的转写内容不能为空", nil)
	}

	now := time.Now()
	if note.ID == "" {
		note.ID = uuid.New().String()
		note.CreatedAt = now
	} else if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	if note.Title == "" {
		note.Title = defaultNoteTitle(note.Transcript)
	}

	if err := s.storage.SaveJSONFile(notesDir, note.ID+".json", note); err != nil {
		return nil, apperrors.NewProcessingError("保存笔记失败", err)
	}

	return note, nil
}

// GetNote 按ID读取笔记
func (s *NoteService) GetNote(id string) (*models.Note, error) {
	if !s.storage.FileExists(notesDir, id+".json") {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("笔记不存在: %s", id), nil)
	}

	var note models.Note
	if err := s.storage.LoadJSONFile(notesDir, id+".json", &note); err != nil {
		return nil, apperrors.NewProcessingError("读取笔记失败", err)
	}

	return &note, nil
}

// ListNotes 返回所有笔记的元数据，按创建时间倒序
func (s *NoteService) ListNotes() ([]models.NoteMetadata, error) {
	files, err := s.storage.ListFiles(notesDir, ".json")
	if err != nil {
		return nil, apperrors.NewProcessingError("列出笔记失败", err)
	}

	metas := make([]models.NoteMetadata, 0, len(files))
	for _, filename := range files {
		var note models.Note
		if err := s.storage.LoadJSONFile(notesDir, filename, &note); err != nil {
			// 跳过损坏的条目，不让单个坏文件拖垮整个列表
			continue
		}
		metas = append(metas, models.NoteMetadata{
			ID:         note.ID,
			Title:      note.Title,
			CreatedAt:  note.CreatedAt,
			HasSummary: note.Summary != "",
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})

	return metas, nil
}

// DeleteNote 删除笔记
func (s *NoteService) DeleteNote(id string) error {
	if !s.storage.FileExists(notesDir, id+".json") {
		return apperrors.NewNotFoundError(fmt.Sprintf("笔记不存在: %s", id), nil)
	}

	if err := s.storage.DeleteFile(notesDir, id+".json"); err != nil {
		return apperrors.NewProcessingError("删除笔记失败", err)
	}

	return nil
}

// defaultNoteTitle 从转写内容的前几个词生成默认标题
func defaultNoteTitle(transcript string) string {
	words := strings.Fields(transcript)
	if len(words) > 8 {
		words = words[:8]
	}
	title := strings.Join(words, " ")
	if len(title) > 60 {
		title = title[:60]
	}
	return title
}
