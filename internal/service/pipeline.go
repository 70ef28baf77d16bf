package service

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog"

	"linguameet/internal/hub"
	"linguameet/internal/models"
)

// utterance 是一段語音經過轉寫、翻譯、合成後的結果
type utterance struct {
	speaker        *models.Participant
	originalText   string
	translatedText string
	audio          []byte
}

func (s *Session) handleAudio(ctx context.Context, msg models.AudioDataMessage) {
	speakerID, ok := s.joined()
	if !ok {
		return
	}

	audio, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable audio chunk")
		return
	}

	s.conference.runPipeline(ctx, s, speakerID, audio)
}

// runPipeline 對單一語音片段依序執行轉寫、翻譯、合成、發送與保存。
// 翻譯與合成只做一次，目標為說話者自己設定的接收語言。
func (c *ConferenceService) runPipeline(ctx context.Context, s *Session, speakerID string, audio []byte) {
	started := time.Now()
	logger := s.logger.With().Str("participant", speakerID).Logger()

	speaker, err := c.participantRepo.FindByID(ctx, speakerID)
	if err != nil || !speaker.Active || speaker.RoomID != s.roomID {
		logger.Warn().Err(err).Msg("speaker not found or inactive, dropping audio chunk")
		return
	}

	text, ok := c.capability.Transcribe(ctx, audio, speaker.Language)
	if !ok {
		logger.Debug().Int("bytes", len(audio)).Msg("no speech detected")
		return
	}

	translated := c.capability.Translate(ctx, text, speaker.Language, speaker.ReceptionLanguage)
	u := utterance{
		speaker:        speaker,
		originalText:   text,
		translatedText: translated,
		audio:          c.capability.Synthesize(ctx, translated, speaker.ReceptionLanguage),
	}

	s.send(models.LastTranscriptionMessage{
		Type:             models.TypeLastTranscription,
		Who:              models.WhoMe,
		OriginalText:     u.originalText,
		TranslatedText:   u.translatedText,
		OriginalLanguage: speaker.Language,
		TargetLanguage:   speaker.ReceptionLanguage,
	})

	c.fanOut(ctx, s.roomID, u)

	saved := c.persistTurns(ctx, s.roomID, u, logger)

	logger.Info().
		Str("backend", c.capability.Name()).
		Int("turns", saved).
		Dur("elapsed", time.Since(started)).
		Msg("audio chunk processed")
}

// fanOut 將同一份翻譯語音送給其他已 join 的連線
func (c *ConferenceService) fanOut(ctx context.Context, roomID string, u utterance) {
	others := hub.Envelope{RoomID: roomID, ExceptParticipant: u.speaker.ID, JoinedOnly: true}

	c.publish(ctx, others, models.AudioTranslatedMessage{
		Type:            models.TypeAudioTranslated,
		ParticipantID:   u.speaker.ID,
		ParticipantName: u.speaker.Name,
		OriginalText:    u.originalText,
		TranslatedText:  u.translatedText,
		AudioData:       base64.StdEncoding.EncodeToString(u.audio),
		TargetLanguage:  u.speaker.ReceptionLanguage,
	})

	c.publish(ctx, others, models.LastTranscriptionMessage{
		Type:             models.TypeLastTranscription,
		Who:              models.WhoOther,
		ParticipantID:    u.speaker.ID,
		OriginalText:     u.originalText,
		TranslatedText:   u.translatedText,
		OriginalLanguage: u.speaker.Language,
		TargetLanguage:   u.speaker.ReceptionLanguage,
	})
}

// persistTurns 為每位其他啟用中的與會者建立一筆紀錄，目標語言記錄為聆聽者自己的接收語言。
// 單一聆聽者寫入失敗只記錄日誌，不影響其他人。
func (c *ConferenceService) persistTurns(ctx context.Context, roomID string, u utterance, logger zerolog.Logger) int {
	listeners, err := c.participantRepo.FindActiveByRoom(ctx, roomID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load listeners, history not saved")
		return 0
	}

	saved := 0
	for _, listener := range listeners {
		if listener.ID == u.speaker.ID {
			continue
		}

		turn := &models.ConversationTurn{
			RoomID:           roomID,
			SpeakerID:        u.speaker.ID,
			ListenerID:       listener.ID,
			OriginalText:     u.originalText,
			TranslatedText:   u.translatedText,
			OriginalLanguage: u.speaker.Language,
			TargetLanguage:   listener.ReceptionLanguage,
		}
		if err := c.history.Record(ctx, turn, u.speaker.Name, listener.Name, u.audio); err != nil {
			logger.Error().Err(err).Str("listener", listener.ID).Msg("failed to save conversation turn")
			continue
		}
		saved++
	}
	return saved
}
