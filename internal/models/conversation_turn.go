package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationTurn 是一次語音處理對 (說話者, 聆聽者) 產生的紀錄
// 建立後只有 Archived 會再變動
type ConversationTurn struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	RoomID           string       `gorm:"size:36;not null;index" json:"room_id"`
	SpeakerID        string       `gorm:"size:36;not null;index" json:"speaker_id"`
	ListenerID       string       `gorm:"size:36;not null;index" json:"listener_id"`
	Speaker          *Participant `gorm:"foreignKey:SpeakerID" json:"speaker,omitempty"`
	Listener         *Participant `gorm:"foreignKey:ListenerID" json:"listener,omitempty"`
	OriginalText     string       `gorm:"type:text" json:"original_text"`
	TranslatedText   string       `gorm:"type:text" json:"translated_text"`
	OriginalLanguage string       `gorm:"size:10" json:"original_language"`
	TargetLanguage   string       `gorm:"size:10" json:"target_language"`
	AudioPath        string       `gorm:"size:255" json:"-"`
	AudioDuration    float64      `json:"audio_duration"` // 秒
	Timestamp        time.Time    `gorm:"column:recorded_at;index" json:"timestamp"`
	Archived         bool         `gorm:"not null;index" json:"is_archived"`
}

func (t *ConversationTurn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	return nil
}
