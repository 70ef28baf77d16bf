package repository

import (
	"context"

	"linguameet/internal/models"
	"linguameet/internal/storage"
)

type ParticipantRepository interface {
	Create(ctx context.Context, participant *models.Participant) error
	FindByID(ctx context.Context, id string) (*models.Participant, error)
	FindActiveByRoom(ctx context.Context, roomID string) ([]models.Participant, error)
	CountActiveByRoom(ctx context.Context, roomID string) (int64, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// DeactivateIfBound 只有在與會者仍啟用且 token 是目前綁定的連線時才停用
	DeactivateIfBound(ctx context.Context, id, token string) (bool, error)
	// Deactivate 停用與會者，回傳是否由啟用變為停用
	Deactivate(ctx context.Context, id string) (bool, error)
}

type participantRepository struct {
	baseRepository[models.Participant]
}

func NewParticipantRepository(db *storage.Database) ParticipantRepository {
	return &participantRepository{baseRepository: newBaseRepository[models.Participant](db)}
}

func (r *participantRepository) FindActiveByRoom(ctx context.Context, roomID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND active = ?", roomID, true).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}

func (r *participantRepository) CountActiveByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("room_id = ? AND active = ?", roomID, true).
		Count(&count).Error
	return count, err
}

func (r *participantRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Participant{}).Where("id = ?", id).Updates(fields).Error
}

func (r *participantRepository) DeactivateIfBound(ctx context.Context, id, token string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ? AND channel_token = ? AND active = ?", id, token, true).
		Update("active", false)
	return res.RowsAffected > 0, res.Error
}

func (r *participantRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	return res.RowsAffected > 0, res.Error
}
