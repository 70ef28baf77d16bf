package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"linguameet/internal/capability"
	"linguameet/internal/hub"
	"linguameet/internal/models"
	"linguameet/internal/repository"
	"linguameet/internal/utils"
)

type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnected
	StateJoined
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// ConferenceService 處理會議室的即時連線與語音翻譯流程
type ConferenceService struct {
	rooms           *RoomService
	participantRepo repository.ParticipantRepository
	history         *HistoryService
	capability      capability.Capability
	registry        *hub.Registry
	broadcaster     hub.Broadcaster
	// joinTokens 為 nil 時 join 不驗證 token
	joinTokens *utils.TokenManager
}

func NewConferenceService(
	rooms *RoomService,
	participantRepo repository.ParticipantRepository,
	history *HistoryService,
	capability capability.Capability,
	registry *hub.Registry,
	broadcaster hub.Broadcaster,
	joinTokens *utils.TokenManager,
) *ConferenceService {
	return &ConferenceService{
		rooms:           rooms,
		participantRepo: participantRepo,
		history:         history,
		capability:      capability,
		registry:        registry,
		broadcaster:     broadcaster,
		joinTokens:      joinTokens,
	}
}

// Session 是單一連線在會議室中的狀態
type Session struct {
	conference *ConferenceService
	roomID     string
	member     hub.Member
	logger     zerolog.Logger

	mu              sync.Mutex
	state           SessionState
	participantID   string
	participantName string
}

// Connect 確認房間存在且啟用後，將連線註冊到房間的廣播群組
func (c *ConferenceService) Connect(ctx context.Context, roomID string, member hub.Member) (*Session, error) {
	if _, err := c.rooms.ActiveRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room", roomID).Str("conn", member.ID()).Msg("refusing connection")
		return nil, err
	}

	c.registry.Register(roomID, member)
	s := &Session{
		conference: c,
		roomID:     roomID,
		member:     member,
		state:      StateConnected,
		logger:     log.With().Str("room", roomID).Str("conn", member.ID()).Logger(),
	}
	s.logger.Info().Msg("websocket connected")
	return s, nil
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncBinding()
	return s.state
}

// joined 回傳目前綁定的與會者，未 join 時回傳 false
func (s *Session) joined() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncBinding()
	return s.participantID, s.state == StateJoined
}

// syncBinding 在綁定已被新連線取代或被解除時退回 connected，呼叫者需持有 s.mu
func (s *Session) syncBinding() {
	if s.state != StateJoined {
		return
	}
	if pid, ok := s.conference.registry.BoundTo(s.roomID, s.member.ID()); ok && pid == s.participantID {
		return
	}
	s.logger.Info().Str("participant", s.participantID).Msg("participant no longer bound to this connection")
	s.state = StateConnected
	s.participantID, s.participantName = "", ""
}

// HandleMessage 處理一則入站訊息；同一連線的訊息需依序呼叫
func (s *Session) HandleMessage(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("message handler panicked")
		}
	}()

	if s.State() == StateDisconnected {
		return
	}

	var envelope models.Envelope
	if err := jsoniter.Unmarshal(raw, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable message")
		return
	}

	switch envelope.Type {
	case models.TypeJoin:
		var msg models.JoinMessage
		if s.decode(raw, envelope.Type, &msg) {
			s.handleJoin(ctx, msg)
		}
	case models.TypeAudioData:
		var msg models.AudioDataMessage
		if s.decode(raw, envelope.Type, &msg) {
			s.handleAudio(ctx, msg)
		}
	case models.TypeMicrophoneToggle, models.TypeVideoToggle:
		var msg models.ToggleMessage
		if s.decode(raw, envelope.Type, &msg) {
			s.handleToggle(ctx, envelope.Type, *msg.Active)
		}
	case models.TypeWebRTCOffer, models.TypeWebRTCAnswer, models.TypeWebRTCIceCandidate:
		var msg models.SignalMessage
		if s.decode(raw, envelope.Type, &msg) {
			s.handleSignal(ctx, envelope.Type, msg)
		}
	default:
		s.logger.Warn().Str("type", envelope.Type).Msg("unknown message type")
	}
}

func (s *Session) decode(raw []byte, kind string, out any) bool {
	if err := jsoniter.Unmarshal(raw, out); err != nil {
		s.logger.Warn().Err(err).Str("type", kind).Msg("dropping malformed message")
		return false
	}
	if err := validate.Struct(out); err != nil {
		s.logger.Warn().Err(err).Str("type", kind).Msg("dropping invalid message")
		return false
	}
	return true
}

func (s *Session) handleJoin(ctx context.Context, msg models.JoinMessage) {
	c := s.conference
	token := s.member.ID()

	if _, err := c.rooms.ActiveRoom(ctx, s.roomID); err != nil {
		s.logger.Warn().Err(err).Msg("room is no longer available, closing connection")
		s.Disconnect(ctx)
		s.member.Close()
		return
	}

	participant, err := c.participantRepo.FindByID(ctx, msg.ParticipantID)
	if err != nil {
		s.logger.Warn().Err(err).Str("participant", msg.ParticipantID).Msg("join for unknown participant ignored")
		return
	}
	if participant.RoomID != s.roomID {
		s.logger.Warn().Str("participant", participant.ID).Msg("join for participant of another room ignored")
		return
	}
	if err := c.authorizeJoin(msg.Token, participant); err != nil {
		s.logger.Warn().Err(err).Str("participant", participant.ID).Msg("join with invalid token ignored")
		return
	}

	fields := map[string]interface{}{"channel_token": token, "active": true}
	if msg.Name != "" {
		participant.Name = msg.Name
		fields["name"] = msg.Name
	}
	if msg.Language != "" {
		participant.Language = msg.Language
		fields["language"] = msg.Language
	}
	if msg.ReceptionLanguage != "" {
		participant.ReceptionLanguage = msg.ReceptionLanguage
		fields["reception_language"] = msg.ReceptionLanguage
	}
	if err := c.participantRepo.UpdateFields(ctx, participant.ID, fields); err != nil {
		s.logger.Error().Err(err).Str("participant", participant.ID).Msg("failed to bind participant")
		return
	}

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		// 連線在更新期間已關閉，撤銷剛才的綁定
		if _, err := c.participantRepo.DeactivateIfBound(ctx, participant.ID, token); err != nil {
			s.logger.Error().Err(err).Str("participant", participant.ID).Msg("failed to release participant")
		}
		return
	}
	previous := s.participantID
	s.participantID = participant.ID
	s.participantName = participant.Name
	s.state = StateJoined
	replaced := c.registry.Bind(s.roomID, token, participant.ID)
	s.mu.Unlock()

	if previous != "" && previous != participant.ID {
		if _, err := c.participantRepo.DeactivateIfBound(ctx, previous, token); err != nil {
			s.logger.Error().Err(err).Str("participant", previous).Msg("failed to release previous participant")
		}
	}
	if replaced != "" {
		s.logger.Info().Str("participant", participant.ID).Str("replaced", replaced).Msg("participant rebound to new connection")
	}
	// 其他程序上仍綁定此與會者的舊連線一併解除
	c.control(ctx, hub.Envelope{
		RoomID:            s.roomID,
		Action:            hub.ActionRelease,
		TargetParticipant: participant.ID,
		ExceptConn:        token,
	})
	s.logger.Info().Str("participant", participant.ID).Str("language", participant.Language).Str("reception_language", participant.ReceptionLanguage).Msg("participant joined")

	c.publish(ctx, hub.Envelope{RoomID: s.roomID, ExceptConn: token}, models.ParticipantJoinedMessage{
		Type:              models.TypeParticipantJoined,
		ParticipantID:     participant.ID,
		Name:              participant.Name,
		Language:          participant.Language,
		ReceptionLanguage: participant.ReceptionLanguage,
	})

	active, err := c.participantRepo.FindActiveByRoom(ctx, s.roomID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load participants list")
		return
	}
	roster := lo.FilterMap(active, func(p models.Participant, _ int) (models.ParticipantInfo, bool) {
		return p.Info(), p.ID != participant.ID
	})
	s.send(models.ParticipantsListMessage{Type: models.TypeParticipantsList, Participants: roster})
}

// authorizeJoin 確認 token 是發給這位與會者與其房間的
func (c *ConferenceService) authorizeJoin(token string, participant *models.Participant) error {
	if c.joinTokens == nil {
		return nil
	}
	if token == "" {
		return fmt.Errorf("%w: missing join token", ErrForbidden)
	}
	claims, err := c.joinTokens.ParseToken(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	if claims.ParticipantID != participant.ID || claims.RoomID != participant.RoomID {
		return fmt.Errorf("%w: token issued to another participant", ErrForbidden)
	}
	return nil
}

func (s *Session) handleToggle(ctx context.Context, kind string, active bool) {
	participantID, ok := s.joined()
	if !ok {
		return
	}

	column, key := "microphone_on", "microphone_active"
	if kind == models.TypeVideoToggle {
		column, key = "video_on", "video_active"
	}

	if err := s.conference.participantRepo.UpdateFields(ctx, participantID, map[string]interface{}{column: active}); err != nil {
		s.logger.Error().Err(err).Str("type", kind).Msg("failed to persist participant flag")
		return
	}

	s.conference.AnnounceUpdate(ctx, s.roomID, participantID, s.member.ID(), map[string]interface{}{key: active})
}

// handleSignal 原封不動轉發 WebRTC 信令給目標與會者，找不到目標時直接丟棄
func (s *Session) handleSignal(ctx context.Context, kind string, msg models.SignalMessage) {
	participantID, ok := s.joined()
	if !ok {
		return
	}

	payload := msg.Payload(kind)
	if len(payload) == 0 || string(payload) == "null" {
		s.logger.Warn().Str("type", kind).Msg("dropping signaling message without payload")
		return
	}

	forward := models.SignalForwardMessage{Type: kind, FromID: participantID}
	switch kind {
	case models.TypeWebRTCOffer:
		forward.Offer = payload
	case models.TypeWebRTCAnswer:
		forward.Answer = payload
	case models.TypeWebRTCIceCandidate:
		forward.Candidate = payload
	}

	s.conference.publish(ctx, hub.Envelope{
		RoomID:            s.roomID,
		TargetParticipant: msg.TargetID,
		JoinedOnly:        true,
	}, forward)
}

// Disconnect 移出廣播群組，若已 join 則將與會者標記為離線；可重複呼叫
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	wasJoined := s.state == StateJoined
	participantID, name := s.participantID, s.participantName
	s.state = StateDisconnected
	s.mu.Unlock()

	c := s.conference
	token := s.member.ID()
	c.registry.Deregister(s.roomID, token)

	if wasJoined {
		// 只有仍綁定在這條連線上時才停用，重新連線的新綁定不受影響
		deactivated, err := c.participantRepo.DeactivateIfBound(ctx, participantID, token)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to mark participant inactive")
		}
		if deactivated {
			c.publish(ctx, hub.Envelope{RoomID: s.roomID}, models.ParticipantLeftMessage{
				Type:          models.TypeParticipantLeft,
				ParticipantID: participantID,
				Name:          name,
			})
		}
	}
	s.logger.Info().Msg("websocket disconnected")
}

// send 直接回覆這條連線
func (s *Session) send(message any) {
	raw, err := jsoniter.Marshal(message)
	if err != nil {
		s.logger.Error().Err(err).Msg("message encoding error")
		return
	}
	if !s.member.Send(raw) {
		s.logger.Debug().Msg("reply dropped, connection is closing")
	}
}

// AnnounceUpdate 通知房間與會者的狀態變更，exceptConn 不為空時略過該連線
func (c *ConferenceService) AnnounceUpdate(ctx context.Context, roomID, participantID, exceptConn string, updates map[string]interface{}) {
	c.publish(ctx, hub.Envelope{RoomID: roomID, ExceptConn: exceptConn}, models.ParticipantUpdateMessage{
		Type:          models.TypeParticipantUpdate,
		ParticipantID: participantID,
		Updates:       updates,
	})
}

// Leave 將與會者標記為離開並解除其連線綁定，連線本身保持開啟
func (c *ConferenceService) Leave(ctx context.Context, participant *models.Participant) error {
	deactivated, err := c.participantRepo.Deactivate(ctx, participant.ID)
	if err != nil {
		return err
	}
	c.control(ctx, hub.Envelope{RoomID: participant.RoomID, Action: hub.ActionRelease, TargetParticipant: participant.ID})
	if deactivated {
		c.publish(ctx, hub.Envelope{RoomID: participant.RoomID}, models.ParticipantLeftMessage{
			Type:          models.TypeParticipantLeft,
			ParticipantID: participant.ID,
			Name:          participant.Name,
		})
	}
	log.Info().Str("room", participant.RoomID).Str("participant", participant.ID).Msg("participant left")
	return nil
}

// CloseRoom 停用房間並關閉房間內的所有連線
func (c *ConferenceService) CloseRoom(ctx context.Context, roomID string) error {
	if err := c.rooms.DeactivateRoom(ctx, roomID); err != nil {
		return err
	}
	c.control(ctx, hub.Envelope{RoomID: roomID, Action: hub.ActionClose})
	log.Info().Str("room", roomID).Msg("room closed")
	return nil
}

func (c *ConferenceService) control(ctx context.Context, env hub.Envelope) {
	if err := c.broadcaster.Broadcast(ctx, env); err != nil {
		log.Error().Err(err).Str("room", env.RoomID).Str("action", env.Action).Msg("broadcast failed")
	}
}

func (c *ConferenceService) publish(ctx context.Context, env hub.Envelope, message any) {
	encoded, err := hub.NewEnvelope(env.RoomID, message)
	if err != nil {
		log.Error().Err(err).Str("room", env.RoomID).Msg("message encoding error")
		return
	}
	env.Payload = encoded.Payload
	if err := c.broadcaster.Broadcast(ctx, env); err != nil {
		log.Error().Err(err).Str("room", env.RoomID).Str("message", fmt.Sprintf("%T", message)).Msg("broadcast failed")
	}
}
