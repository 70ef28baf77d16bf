package service

import (
	"context"
	"fmt"
	"strings"

	"linguameet/internal/capability"
	"linguameet/internal/models"
	"linguameet/internal/repository"
	"linguameet/internal/utils"
)

type ParticipantService struct {
	participantRepo repository.ParticipantRepository
	rooms           *RoomService
	tokens          *utils.TokenManager
	conference      *ConferenceService
}

func NewParticipantService(participantRepo repository.ParticipantRepository, rooms *RoomService, tokens *utils.TokenManager, conference *ConferenceService) *ParticipantService {
	return &ParticipantService{participantRepo: participantRepo, rooms: rooms, tokens: tokens, conference: conference}
}

// ParticipantUpdate 只有非 nil 的欄位會被更新
type ParticipantUpdate struct {
	MicrophoneOn *bool
	Language     *string
}

// JoinRoom 在啟用中的房間建立與會者，回傳與會者與其存取 token
func (s *ParticipantService) JoinRoom(ctx context.Context, roomID, name, language, receptionLanguage string) (*models.Participant, string, error) {
	room, err := s.rooms.ActiveRoom(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	if language == "" {
		language = room.DefaultLanguage
	}
	for _, lang := range []string{language, receptionLanguage} {
		if lang != "" && !capability.IsSupported(lang) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
		}
	}

	participant := &models.Participant{
		RoomID:            room.ID,
		Name:              strings.TrimSpace(name),
		Language:          language,
		ReceptionLanguage: receptionLanguage,
		MicrophoneOn:      true,
		Active:            true,
	}
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(participant.ID, room.ID)
	if err != nil {
		return nil, "", err
	}
	return participant, token, nil
}

// GetParticipant 取得屬於該房間的與會者
func (s *ParticipantService) GetParticipant(ctx context.Context, roomID, participantID string) (*models.Participant, error) {
	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, notFound(err, ErrParticipantNotFound)
	}
	if participant.RoomID != roomID {
		return nil, ErrParticipantNotFound
	}
	return participant, nil
}

func (s *ParticipantService) ListActive(ctx context.Context, roomID string) ([]models.Participant, error) {
	if _, err := s.rooms.ActiveRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.participantRepo.FindActiveByRoom(ctx, roomID)
}

// UpdateParticipant 只寫入有變動的欄位，並通知房間內的連線
func (s *ParticipantService) UpdateParticipant(ctx context.Context, roomID, participantID string, update ParticipantUpdate) (*models.Participant, error) {
	participant, err := s.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	updates := make(map[string]interface{})
	if update.MicrophoneOn != nil {
		fields["microphone_on"] = *update.MicrophoneOn
		updates["microphone_active"] = *update.MicrophoneOn
	}
	if update.Language != nil {
		if !capability.IsSupported(*update.Language) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, *update.Language)
		}
		fields["language"] = *update.Language
		updates["language"] = *update.Language
	}
	if len(fields) == 0 {
		return participant, nil
	}

	if err := s.participantRepo.UpdateFields(ctx, participant.ID, fields); err != nil {
		return nil, err
	}
	s.conference.AnnounceUpdate(ctx, roomID, participant.ID, "", updates)
	return s.GetParticipant(ctx, roomID, participantID)
}

// LeaveRoom 將與會者標記為離開，紀錄不會被刪除
func (s *ParticipantService) LeaveRoom(ctx context.Context, roomID, participantID string) error {
	participant, err := s.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return err
	}
	return s.conference.Leave(ctx, participant)
}
