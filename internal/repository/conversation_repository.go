package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"linguameet/internal/models"
	"linguameet/internal/storage"
)

type ConversationRepository interface {
	Create(ctx context.Context, turn *models.ConversationTurn) error
	FindByID(ctx context.Context, id string) (*models.ConversationTurn, error)
	Update(ctx context.Context, turn *models.ConversationTurn) error
	Delete(ctx context.Context, id string) error
	// FindForParticipant 依時間新到舊列出該與會者說過或聽過的紀錄
	FindForParticipant(ctx context.Context, roomID, participantID string, offset, limit int) ([]models.ConversationTurn, int64, error)
	// FindLatest 先找該與會者最近說過的，找不到再找最近聽過的
	FindLatest(ctx context.Context, roomID, participantID string) (*models.ConversationTurn, error)
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type conversationRepository struct {
	baseRepository[models.ConversationTurn]
}

func NewConversationRepository(db *storage.Database) ConversationRepository {
	return &conversationRepository{baseRepository: newBaseRepository[models.ConversationTurn](db)}
}

func (r *conversationRepository) FindForParticipant(ctx context.Context, roomID, participantID string, offset, limit int) ([]models.ConversationTurn, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ConversationTurn{}).
		Where("room_id = ?", roomID).
		Where("speaker_id = ? OR listener_id = ?", participantID, participantID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var turns []models.ConversationTurn
	err := query.
		Preload("Speaker").
		Preload("Listener").
		Order("recorded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&turns).Error
	return turns, total, err
}

func (r *conversationRepository) FindLatest(ctx context.Context, roomID, participantID string) (*models.ConversationTurn, error) {
	var turn models.ConversationTurn
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND speaker_id = ?", roomID, participantID).
		Order("recorded_at DESC").
		First(&turn).Error
	if err == nil {
		return &turn, nil
	}

	err = r.db.WithContext(ctx).
		Where("room_id = ? AND listener_id = ?", roomID, participantID).
		Order("recorded_at DESC").
		First(&turn).Error
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

func (r *conversationRepository) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ConversationTurn{}).
		Where("recorded_at < ? AND archived = ?", cutoff, false).
		Update("archived", true)
	return res.RowsAffected, res.Error
}
