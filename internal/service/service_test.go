package service

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"linguameet/internal/capability"
	"linguameet/internal/hub"
	"linguameet/internal/models"
	"linguameet/internal/repository"
	"linguameet/internal/storage"
	"linguameet/internal/utils"
	"linguameet/pkg/config"
)

// fakeCapability 依音訊內容回傳預先設定的轉寫結果，gate 不為 nil 時會卡在 Transcribe
type fakeCapability struct {
	mu          sync.Mutex
	transcripts map[string]string
	calls       []string
	gate        chan struct{}
	entered     chan string
}

func newFakeCapability(transcripts map[string]string) *fakeCapability {
	return &fakeCapability{transcripts: transcripts}
}

func (f *fakeCapability) Transcribe(ctx context.Context, audio []byte, language string) (string, bool) {
	f.mu.Lock()
	f.calls = append(f.calls, string(audio))
	gate, entered := f.gate, f.entered
	text := f.transcripts[string(audio)]
	f.mu.Unlock()

	if entered != nil {
		entered <- string(audio)
	}
	if gate != nil {
		<-gate
	}
	return text, text != ""
}

func (f *fakeCapability) Translate(ctx context.Context, text, source, target string) string {
	if source == target {
		return text
	}
	return "[" + target + "] " + text
}

func (f *fakeCapability) Synthesize(ctx context.Context, text, language string) []byte {
	return []byte("RIFF" + text)
}

func (f *fakeCapability) Name() string { return "fake" }

func (f *fakeCapability) transcribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeMember 記錄所有送出的訊息
type fakeMember struct {
	id string

	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func newFakeMember(id string) *fakeMember { return &fakeMember{id: id} }

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Send(message []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.messages = append(m.messages, message)
	return true
}

func (m *fakeMember) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *fakeMember) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

func (m *fakeMember) all() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(m.messages))
	for _, raw := range m.messages {
		var decoded map[string]interface{}
		if err := jsoniter.Unmarshal(raw, &decoded); err == nil {
			out = append(out, decoded)
		}
	}
	return out
}

func (m *fakeMember) ofType(kind string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, msg := range m.all() {
		if msg["type"] == kind {
			out = append(out, msg)
		}
	}
	return out
}

// flakyConversations 讓指定聆聽者的寫入失敗
type flakyConversations struct {
	repository.ConversationRepository
	failFor string
}

func (f *flakyConversations) Create(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.ListenerID == f.failFor {
		return context.DeadlineExceeded
	}
	return f.ConversationRepository.Create(ctx, turn)
}

type harness struct {
	t          *testing.T
	repos      *repository.Repositories
	services   *Services
	registry   *hub.Registry
	capability *fakeCapability
	fs         afero.Fs
	blobs      *storage.BlobStore
	tokens     *utils.TokenManager
	issued     map[string]string // participantID -> token
}

func testConfig() *config.Config {
	return &config.Config{
		History: config.HistoryConfig{
			PageSize:        20,
			MaxPageSize:     50,
			ArchiveAfter:    24 * time.Hour,
			ArchiveSchedule: "@every 1h",
		},
		Auth: config.AuthConfig{RequireJoinToken: true},
	}
}

func newHarness(t *testing.T, transcripts map[string]string) *harness {
	t.Helper()

	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(db))

	fs := afero.NewMemMapFs()
	h := &harness{
		t:          t,
		repos:      repository.NewRepositories(db),
		registry:   hub.NewRegistry(),
		capability: newFakeCapability(transcripts),
		fs:         fs,
		blobs:      storage.NewBlobStore(fs, "/media"),
		tokens:     utils.NewTokenManager("test-secret", time.Hour),
		issued:     make(map[string]string),
	}

	h.services, err = NewServices(Dependencies{
		Repos:       h.repos,
		Capability:  h.capability,
		Registry:    h.registry,
		Broadcaster: hub.NewLocalBroadcaster(h.registry),
		Blobs:       h.blobs,
		Tokens:      h.tokens,
	}, testConfig())
	require.NoError(t, err)
	return h
}

func (h *harness) room() *models.Room {
	h.t.Helper()
	room, err := h.services.Room.CreateRoom(context.Background(), "Salle de réunion", "fr")
	require.NoError(h.t, err)
	return room
}

func (h *harness) participant(roomID, name, language, reception string) *models.Participant {
	h.t.Helper()
	p, token, err := h.services.Participant.JoinRoom(context.Background(), roomID, name, language, reception)
	require.NoError(h.t, err)
	h.issued[p.ID] = token
	return p
}

// joinMessage 產生附上該與會者 token 的 join 訊息，extra 會覆蓋預設欄位
func (h *harness) joinMessage(p *models.Participant, extra map[string]interface{}) []byte {
	h.t.Helper()
	msg := map[string]interface{}{
		"type":           models.TypeJoin,
		"participant_id": p.ID,
		"token":          h.issued[p.ID],
	}
	for k, v := range extra {
		msg[k] = v
	}
	return rawMessage(h.t, msg)
}

func (h *harness) connect(roomID, connID string) (*Session, *fakeMember) {
	h.t.Helper()
	member := newFakeMember(connID)
	session, err := h.services.Conference.Connect(context.Background(), roomID, member)
	require.NoError(h.t, err)
	return session, member
}

// joined 建立連線並送出 join
func (h *harness) joined(roomID string, p *models.Participant) (*Session, *fakeMember) {
	h.t.Helper()
	session, member := h.connect(roomID, "conn-"+p.Name)
	session.HandleMessage(context.Background(), h.joinMessage(p, nil))
	require.Equal(h.t, StateJoined, session.State())
	return session, member
}

func (h *harness) turns(roomID, participantID string) []models.ConversationTurn {
	h.t.Helper()
	page, err := h.services.History.ListHistory(context.Background(), roomID, participantID, 1, 50)
	require.NoError(h.t, err)
	return page.Items
}

func rawMessage(t *testing.T, msg map[string]interface{}) []byte {
	t.Helper()
	raw, err := jsoniter.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func audioMessage(t *testing.T, chunk string) []byte {
	return rawMessage(t, map[string]interface{}{
		"type":       models.TypeAudioData,
		"audio_data": base64.StdEncoding.EncodeToString([]byte(chunk)),
	})
}

var _ capability.Capability = (*fakeCapability)(nil)
