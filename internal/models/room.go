package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room 表示一個會議室，停用後不再接受新的連線
type Room struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	DefaultLanguage string    `gorm:"size:10;not null" json:"default_language"`
	Active          bool      `gorm:"not null;index" json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// BeforeCreate 在寫入前產生 UUID
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
