package repository

import (
	"context"

	"gorm.io/gorm"

	"linguameet/internal/models"
	"linguameet/internal/storage"
)

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Update(ctx context.Context, room *models.Room) error
	FindActive(ctx context.Context) ([]models.Room, error)
	// Deactivate 停用房間並一併停用其所有與會者
	Deactivate(ctx context.Context, id string) error
}

type roomRepository struct {
	baseRepository[models.Room]
}

func NewRoomRepository(db *storage.Database) RoomRepository {
	return &roomRepository{baseRepository: newBaseRepository[models.Room](db)}
}

// FindActive 查詢所有啟用中的房間
func (r *roomRepository) FindActive(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Room{}).Where("id = ?", id).Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Participant{}).Where("room_id = ?", id).Update("active", false).Error
	})
}
