package models

import "encoding/json"

// WebSocket 訊息類型
const (
	TypeJoin               = "join"
	TypeAudioData          = "audio_data"
	TypeMicrophoneToggle   = "microphone_toggle"
	TypeVideoToggle        = "video_toggle"
	TypeWebRTCOffer        = "webrtc_offer"
	TypeWebRTCAnswer       = "webrtc_answer"
	TypeWebRTCIceCandidate = "webrtc_ice_candidate"

	TypeParticipantsList  = "participants_list"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeParticipantUpdate = "participant_update"
	TypeAudioTranslated   = "audio_translated"
	TypeLastTranscription = "last_transcription"
)

const (
	WhoMe    = "me"
	WhoOther = "other"
)

// Envelope 只用來讀取訊息類型，其餘欄位依類型再解析
type Envelope struct {
	Type string `json:"type" validate:"required"`
}

type JoinMessage struct {
	ParticipantID     string `json:"participant_id" validate:"required"`
	Name              string `json:"name" validate:"max=100"`
	Language          string `json:"language" validate:"omitempty,max=10"`
	ReceptionLanguage string `json:"reception_language" validate:"omitempty,max=10"`
	// Token 是 POST /rooms/:id/participants 回傳的存取 token
	Token             string `json:"token"`
}

type AudioDataMessage struct {
	AudioData string `json:"audio_data" validate:"required,base64"`
}

type ToggleMessage struct {
	Active *bool `json:"active" validate:"required"`
}

// SignalMessage 涵蓋 offer/answer/ice candidate，payload 原封不動轉發
type SignalMessage struct {
	TargetID  string          `json:"target_id" validate:"required"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Payload 依訊息類型取出對應的內容
func (m *SignalMessage) Payload(kind string) json.RawMessage {
	switch kind {
	case TypeWebRTCOffer:
		return m.Offer
	case TypeWebRTCAnswer:
		return m.Answer
	case TypeWebRTCIceCandidate:
		return m.Candidate
	}
	return nil
}

type ParticipantsListMessage struct {
	Type         string            `json:"type"`
	Participants []ParticipantInfo `json:"participants"`
}

type ParticipantJoinedMessage struct {
	Type              string `json:"type"`
	ParticipantID     string `json:"participant_id"`
	Name              string `json:"name"`
	Language          string `json:"language"`
	ReceptionLanguage string `json:"reception_language"`
}

type ParticipantLeftMessage struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

type ParticipantUpdateMessage struct {
	Type          string                 `json:"type"`
	ParticipantID string                 `json:"participant_id"`
	Updates       map[string]interface{} `json:"updates"`
}

type AudioTranslatedMessage struct {
	Type            string `json:"type"`
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
	OriginalText    string `json:"original_text"`
	TranslatedText  string `json:"translated_text"`
	AudioData       string `json:"audio_data"`
	TargetLanguage  string `json:"target_language"`
}

type LastTranscriptionMessage struct {
	Type             string `json:"type"`
	Who              string `json:"who"`
	ParticipantID    string `json:"participant_id,omitempty"`
	OriginalText     string `json:"original_text"`
	TranslatedText   string `json:"translated_text"`
	OriginalLanguage string `json:"original_language"`
	TargetLanguage   string `json:"target_language"`
}

// SignalForwardMessage 是轉發給目標與會者的 WebRTC 信令
type SignalForwardMessage struct {
	Type      string          `json:"type"`
	FromID    string          `json:"from_id"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
