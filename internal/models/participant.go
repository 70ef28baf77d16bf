package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultSpokenLanguage    = "fr"
	DefaultReceptionLanguage = "en"
)

// Participant 表示某人在單一會議室中的身份，與任何一條連線無關
type Participant struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID            string    `gorm:"size:36;not null;index" json:"room_id"`
	Name              string    `gorm:"size:100;not null" json:"name"`
	Language          string    `gorm:"size:10;not null" json:"language"`           // 說話語言
	ReceptionLanguage string    `gorm:"size:10;not null" json:"reception_language"` // 希望接收的語言
	MicrophoneOn      bool      `gorm:"not null" json:"microphone_active"`
	VideoOn           bool      `gorm:"not null" json:"video_active"`
	Active            bool      `gorm:"not null;index" json:"active"`
	ChannelToken      string    `gorm:"size:100" json:"-"` // 目前綁定的連線
	JoinedAt          time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Language == "" {
		p.Language = DefaultSpokenLanguage
	}
	if p.ReceptionLanguage == "" {
		p.ReceptionLanguage = DefaultReceptionLanguage
	}
	return nil
}

// ParticipantInfo 是廣播給其他與會者的精簡資料
type ParticipantInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Language          string `json:"language"`
	ReceptionLanguage string `json:"reception_language"`
	MicrophoneActive  bool   `json:"microphone_active"`
	VideoActive       bool   `json:"video_active"`
}

func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		ID:                p.ID,
		Name:              p.Name,
		Language:          p.Language,
		ReceptionLanguage: p.ReceptionLanguage,
		MicrophoneActive:  p.MicrophoneOn,
		VideoActive:       p.VideoOn,
	}
}
