package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"linguameet/internal/capability"
	"linguameet/internal/hub"
	"linguameet/internal/repository"
	"linguameet/internal/storage"
	"linguameet/internal/utils"
	"linguameet/pkg/config"
)

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomInactive         = errors.New("room is inactive")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAudioNotFound        = errors.New("audio file not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
)

type Services struct {
	Room        *RoomService
	Participant *ParticipantService
	History     *HistoryService
	Conference  *ConferenceService
	Archiver    *Archiver
}

// Dependencies 是建立服務層所需的外部元件
type Dependencies struct {
	Repos       *repository.Repositories
	Capability  capability.Capability
	Registry    *hub.Registry
	Broadcaster hub.Broadcaster
	Blobs       *storage.BlobStore
	Tokens      *utils.TokenManager
}

func NewServices(deps Dependencies, cfg *config.Config) (*Services, error) {
	historyService := NewHistoryService(deps.Repos.Conversation, deps.Blobs, cfg.History)
	roomService := NewRoomService(deps.Repos.Room, deps.Repos.Participant)
	var joinTokens *utils.TokenManager
	if cfg.Auth.RequireJoinToken {
		joinTokens = deps.Tokens
	}
	conference := NewConferenceService(roomService, deps.Repos.Participant, historyService, deps.Capability, deps.Registry, deps.Broadcaster, joinTokens)
	participantService := NewParticipantService(deps.Repos.Participant, roomService, deps.Tokens, conference)

	archiver, err := NewArchiver(deps.Repos.Conversation, cfg.History.ArchiveAfter, cfg.History.ArchiveSchedule)
	if err != nil {
		return nil, err
	}

	return &Services{
		Room:        roomService,
		Participant: participantService,
		History:     historyService,
		Conference:  conference,
		Archiver:    archiver,
	}, nil
}

var validate = validator.New()

// notFound 把 gorm 的查無資料轉為服務層的錯誤
func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
