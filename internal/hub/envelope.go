package hub

import (
	"context"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// 信封的動作，未設定時送出 Payload
const (
	// ActionRelease 解除符合條件的連線與會者綁定，連線保持開啟
	ActionRelease = "release"
	// ActionClose 將符合條件的連線移出房間並關閉
	ActionClose = "close"
)

// Envelope 是一則要送到房間的訊息與其收件條件
type Envelope struct {
	RoomID            string          `json:"room_id"`
	Action            string          `json:"action,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	ExceptConn        string          `json:"except_conn,omitempty"`
	ExceptParticipant string          `json:"except_participant,omitempty"`
	TargetParticipant string          `json:"target_participant,omitempty"`
	JoinedOnly        bool            `json:"joined_only,omitempty"`
}

// NewEnvelope 將訊息編碼為 JSON
func NewEnvelope(roomID string, message any) (Envelope, error) {
	payload, err := jsoniter.Marshal(message)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{RoomID: roomID, Payload: payload}, nil
}

func (e Envelope) accepts(entry Entry) bool {
	if e.ExceptConn != "" && entry.Member.ID() == e.ExceptConn {
		return false
	}
	if e.JoinedOnly && entry.ParticipantID == "" {
		return false
	}
	if e.ExceptParticipant != "" && entry.ParticipantID == e.ExceptParticipant {
		return false
	}
	if e.TargetParticipant != "" && entry.ParticipantID != e.TargetParticipant {
		return false
	}
	return true
}

// Broadcaster 將信封送到房間內所有符合條件的連線
type Broadcaster interface {
	Broadcast(ctx context.Context, env Envelope) error
	Close() error
}

// LocalBroadcaster 只送到本程序內的連線
type LocalBroadcaster struct {
	registry *Registry
}

func NewLocalBroadcaster(registry *Registry) *LocalBroadcaster {
	return &LocalBroadcaster{registry: registry}
}

func (b *LocalBroadcaster) Broadcast(ctx context.Context, env Envelope) error {
	b.registry.Deliver(env)
	return nil
}

func (b *LocalBroadcaster) Close() error { return nil }
