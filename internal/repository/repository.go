package repository

import (
	"linguameet/internal/models"
	"linguameet/internal/storage"
)

type Repositories struct {
	Room         RoomRepository
	Participant  ParticipantRepository
	Conversation ConversationRepository
}

func NewRepositories(db *storage.Database) *Repositories {
	return &Repositories{
		Room:         NewRoomRepository(db),
		Participant:  NewParticipantRepository(db),
		Conversation: NewConversationRepository(db),
	}
}

// Migrate 建立或更新所有資料表
func Migrate(db *storage.Database) error {
	return db.AutoMigrate(&models.Room{}, &models.Participant{}, &models.ConversationTurn{})
}
