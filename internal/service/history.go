package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"linguameet/internal/capability"
	"linguameet/internal/models"
	"linguameet/internal/repository"
	"linguameet/internal/storage"
	"linguameet/pkg/config"
)

// HistoryPage 是分頁後的對話紀錄
type HistoryPage struct {
	Items      []models.ConversationTurn `json:"items"`
	Page       int                       `json:"page"`
	PageSize   int                       `json:"page_size"`
	Total      int64                     `json:"total"`
	TotalPages int                       `json:"total_pages"`
}

type HistoryService struct {
	conversationRepo repository.ConversationRepository
	blobs            *storage.BlobStore
	pageSize         int
	maxPageSize      int
}

func NewHistoryService(conversationRepo repository.ConversationRepository, blobs *storage.BlobStore, cfg config.HistoryConfig) *HistoryService {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	return &HistoryService{
		conversationRepo: conversationRepo,
		blobs:            blobs,
		pageSize:         pageSize,
		maxPageSize:      maxPageSize,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// AudioPath 產生 conversations/YYYY/MM/DD/conversation_<id>_<說話者>_<聆聽者><ext>
func AudioPath(at time.Time, turnID, speakerName, listenerName, ext string) string {
	return fmt.Sprintf("conversations/%s/conversation_%s_%s_%s%s",
		at.Format("2006/01/02"), turnID,
		unsafeNameChars.ReplaceAllString(speakerName, "_"),
		unsafeNameChars.ReplaceAllString(listenerName, "_"),
		ext)
}

// Record 儲存一筆對話紀錄與其語音；資料列寫入失敗時會移除已寫入的檔案
func (s *HistoryService) Record(ctx context.Context, turn *models.ConversationTurn, speakerName, listenerName string, audio []byte) error {
	if turn.SpeakerID == turn.ListenerID {
		return fmt.Errorf("speaker %s cannot be its own listener", turn.SpeakerID)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	audio, format := capability.PrepareAudio(audio)
	turn.AudioDuration = format.Duration

	if len(audio) > 0 {
		path := AudioPath(turn.Timestamp, turn.ID, speakerName, listenerName, format.Ext)
		if err := s.blobs.Save(path, audio); err != nil {
			return err
		}
		turn.AudioPath = path
	}

	if err := s.conversationRepo.Create(ctx, turn); err != nil {
		if delErr := s.blobs.Delete(turn.AudioPath); delErr != nil {
			log.Error().Err(delErr).Str("turn", turn.ID).Msg("failed to remove audio of unsaved turn")
		}
		return err
	}
	return nil
}

func (s *HistoryService) ListHistory(ctx context.Context, roomID, participantID string, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	items, total, err := s.conversationRepo.FindForParticipant(ctx, roomID, participantID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ConversationTurn{}
	}

	return &HistoryPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// LatestTranscription 沒有任何紀錄時回傳 (nil, nil)
func (s *HistoryService) LatestTranscription(ctx context.Context, roomID, participantID string) (*models.ConversationTurn, error) {
	turn, err := s.conversationRepo.FindLatest(ctx, roomID, participantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return turn, err
}

// accessibleTurn 只有說話者或聆聽者可以存取
func (s *HistoryService) accessibleTurn(ctx context.Context, turnID, participantID string) (*models.ConversationTurn, error) {
	turn, err := s.conversationRepo.FindByID(ctx, turnID)
	if err != nil {
		return nil, notFound(err, ErrConversationNotFound)
	}
	if turn.SpeakerID != participantID && turn.ListenerID != participantID {
		return nil, ErrForbidden
	}
	return turn, nil
}

func (s *HistoryService) Audio(ctx context.Context, turnID, participantID string) (*models.ConversationTurn, []byte, error) {
	turn, err := s.accessibleTurn(ctx, turnID, participantID)
	if err != nil {
		return nil, nil, err
	}
	if turn.AudioPath == "" {
		return nil, nil, ErrAudioNotFound
	}

	data, err := s.blobs.Read(turn.AudioPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrAudioNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return turn, data, nil
}

// DeleteConversation 先刪除語音檔再刪除資料列，不留下孤兒檔案
func (s *HistoryService) DeleteConversation(ctx context.Context, turnID, participantID string) error {
	turn, err := s.accessibleTurn(ctx, turnID, participantID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(turn.AudioPath); err != nil {
		return err
	}
	return s.conversationRepo.Delete(ctx, turn.ID)
}
