package service

import (
	"context"
	"fmt"
	"strings"

	"linguameet/internal/capability"
	"linguameet/internal/models"
	"linguameet/internal/repository"
)

// RoomSummary 是房間資料加上目前的與會人數
type RoomSummary struct {
	models.Room
	ParticipantsCount int64 `json:"participants_count"`
}

type RoomService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
}

func NewRoomService(roomRepo repository.RoomRepository, participantRepo repository.ParticipantRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo, participantRepo: participantRepo}
}

func (s *RoomService) CreateRoom(ctx context.Context, name, defaultLanguage string) (*models.Room, error) {
	if defaultLanguage == "" {
		defaultLanguage = models.DefaultSpokenLanguage
	}
	if !capability.IsSupported(defaultLanguage) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, defaultLanguage)
	}

	room := &models.Room{
		Name:            strings.TrimSpace(name),
		DefaultLanguage: defaultLanguage,
		Active:          true,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ActiveRoom 取得啟用中的房間，不存在或已停用時回傳對應錯誤
func (s *RoomService) ActiveRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, notFound(err, ErrRoomNotFound)
	}
	if !room.Active {
		return nil, ErrRoomInactive
	}
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*RoomSummary, error) {
	room, err := s.ActiveRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	count, err := s.participantRepo.CountActiveByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return &RoomSummary{Room: *room, ParticipantsCount: count}, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.roomRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		count, err := s.participantRepo.CountActiveByRoom(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, RoomSummary{Room: room, ParticipantsCount: count})
	}
	return summaries, nil
}

// DeactivateRoom 停用房間，其與會者一併停用
func (s *RoomService) DeactivateRoom(ctx context.Context, roomID string) error {
	return notFound(s.roomRepo.Deactivate(ctx, roomID), ErrRoomNotFound)
}
