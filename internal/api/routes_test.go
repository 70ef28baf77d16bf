package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linguameet/internal/capability"
	"linguameet/internal/hub"
	"linguameet/internal/models"
	"linguameet/internal/repository"
	"linguameet/internal/service"
	"linguameet/internal/storage"
	"linguameet/internal/utils"
	"linguameet/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	services *service.Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(db))

	registry := hub.NewRegistry()
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	cfg := &config.Config{
		Server:  config.ServerConfig{ReadLimit: 1 << 20},
		History: config.HistoryConfig{PageSize: 20, MaxPageSize: 100, ArchiveAfter: time.Hour, ArchiveSchedule: "@every 1h"},
		Auth:    config.AuthConfig{RequireJoinToken: true},
	}

	services, err := service.NewServices(service.Dependencies{
		Repos:       repository.NewRepositories(db),
		Capability:  capability.NewDegrading(capability.NewStubBackend(), time.Second),
		Registry:    registry,
		Broadcaster: hub.NewLocalBroadcaster(registry),
		Blobs:       storage.NewBlobStore(afero.NewMemMapFs(), "/media"),
		Tokens:      tokens,
	}, cfg)
	require.NoError(t, err)

	r := gin.New()
	SetupRoutes(r, services, tokens, cfg.Server)
	return &testServer{router: r, services: services}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := jsoniter.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = jsoniter.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func (s *testServer) createRoom(t *testing.T) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/rooms", "", gin.H{"name": "Salle A", "default_language": "fr"})
	require.Equal(t, http.StatusCreated, w.Code)
	return body["id"].(string)
}

func (s *testServer) join(t *testing.T, roomID, name, language, reception string) (string, string) {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/rooms/"+roomID+"/participants", "", gin.H{
		"name": name, "language": language, "reception_language": reception,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	participant := body["participant"].(map[string]interface{})
	return participant["id"].(string), body["token"].(string)
}

func TestHealthLanguagesAndNoRoute(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = s.do(t, http.MethodGet, "/api/languages", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var languages []capability.Language
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &languages))
	assert.Len(t, languages, 10)

	w, body = s.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "找不到該路徑", body["error"])
}

func TestRoomEndpoints(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/rooms", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/rooms", "", gin.H{"name": "X", "default_language": "tlh"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	roomID := s.createRoom(t)
	s.join(t, roomID, "Alice", "fr", "en")

	w, body := s.do(t, http.MethodGet, "/api/rooms/"+roomID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["participants_count"])

	w, _ = s.do(t, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rooms []map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &rooms))
	assert.Len(t, rooms, 1)

	w, _ = s.do(t, http.MethodGet, "/api/rooms/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/rooms/"+roomID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/rooms/"+roomID, "", nil)
	assert.Equal(t, http.StatusGone, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/rooms/"+roomID+"/participants", "", gin.H{"name": "Bob"})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestParticipantEndpoints(t *testing.T) {
	s := newTestServer(t)
	roomID := s.createRoom(t)
	otherRoom := s.createRoom(t)
	aliceID, aliceToken := s.join(t, roomID, "Alice", "fr", "en")
	_, strangerToken := s.join(t, otherRoom, "Mallory", "en", "fr")

	w, _ := s.do(t, http.MethodGet, "/api/rooms/"+roomID+"/participants", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roster []models.ParticipantInfo
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, aliceID, roster[0].ID)

	w, _ = s.do(t, http.MethodPatch, "/api/rooms/"+roomID+"/participants/me", "", gin.H{"language": "de"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/rooms/"+roomID+"/participants/me", "not-a-token", gin.H{"language": "de"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/rooms/"+roomID+"/participants/me", strangerToken, gin.H{"language": "de"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := s.do(t, http.MethodPatch, "/api/rooms/"+roomID+"/participants/me", aliceToken, gin.H{"language": "de", "microphone_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "de", body["language"])
	assert.Equal(t, false, body["microphone_active"])

	w, _ = s.do(t, http.MethodPost, "/api/rooms/"+roomID+"/leave", aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/rooms/"+roomID+"/participants", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	roomID := s.createRoom(t)
	aliceID, aliceToken := s.join(t, roomID, "Alice", "fr", "en")
	bobID, bobToken := s.join(t, roomID, "Bob", "en", "fr")
	_, carolToken := s.join(t, roomID, "Carol", "es", "es")

	w, body := s.do(t, http.MethodGet, "/api/rooms/"+roomID+"/history/latest", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["transcription"])

	turn := &models.ConversationTurn{
		RoomID: roomID, SpeakerID: aliceID, ListenerID: bobID,
		OriginalText: "Bonjour", TranslatedText: "Hello", OriginalLanguage: "fr", TargetLanguage: "fr",
	}
	audio := capability.SilentWAV(capability.DefaultSampleRate, time.Second)
	require.NoError(t, s.services.History.Record(ctx, turn, "Alice", "Bob", audio))

	w, body = s.do(t, http.MethodGet, "/api/rooms/"+roomID+"/history?page=1&page_size=5", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 5, body["page_size"])
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Bonjour", items[0].(map[string]interface{})["original_text"])

	w, _ = s.do(t, http.MethodGet, "/api/rooms/"+roomID+"/history?page=abc", bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/rooms/"+roomID+"/history/latest", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, turn.ID, body["transcription"].(map[string]interface{})["id"])

	w, _ = s.do(t, http.MethodGet, "/api/conversations/"+turn.ID+"/audio", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conversation_"+turn.ID+"_Alice_Bob.wav")
	assert.Equal(t, audio, w.Body.Bytes())

	w, _ = s.do(t, http.MethodGet, "/api/conversations/"+turn.ID+"/audio", carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/conversations/"+turn.ID, carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/conversations/"+turn.ID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/conversations/"+turn.ID+"/audio", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func wsURL(server *httptest.Server, roomID string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/rooms/" + roomID + "/ws"
}

func dial(t *testing.T, server *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, roomID), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	raw, err := jsoniter.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

// readUntil 讀取訊息直到出現指定類型
func readUntil(t *testing.T, conn *websocket.Conn, kind string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, jsoniter.Unmarshal(raw, &msg))
		if msg["type"] == kind {
			return msg
		}
	}
}

func TestWebSocketConference(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	roomID := s.createRoom(t)
	aliceID, aliceToken := s.join(t, roomID, "Alice", "fr", "en")
	bobID, bobToken := s.join(t, roomID, "Bob", "en", "fr")

	alice := dial(t, server, roomID)
	send(t, alice, gin.H{"type": models.TypeJoin, "participant_id": aliceID, "token": aliceToken})
	readUntil(t, alice, models.TypeParticipantsList)

	bob := dial(t, server, roomID)
	send(t, bob, gin.H{"type": models.TypeJoin, "participant_id": bobID, "token": bobToken})
	list := readUntil(t, bob, models.TypeParticipantsList)
	assert.Len(t, list["participants"], 1)

	joined := readUntil(t, alice, models.TypeParticipantJoined)
	assert.Equal(t, bobID, joined["participant_id"])

	send(t, alice, gin.H{
		"type":       models.TypeAudioData,
		"audio_data": base64.StdEncoding.EncodeToString(make([]byte, 512)),
	})

	echo := readUntil(t, alice, models.TypeLastTranscription)
	assert.Equal(t, models.WhoMe, echo["who"])
	assert.Equal(t, "Bonjour", echo["original_text"])
	assert.Equal(t, "en", echo["target_language"])

	broadcast := readUntil(t, bob, models.TypeAudioTranslated)
	assert.Equal(t, aliceID, broadcast["participant_id"])
	assert.Equal(t, "Bonjour", broadcast["original_text"])
	assert.NotEmpty(t, broadcast["audio_data"])

	assert.Eventually(t, func() bool {
		page, err := s.services.History.ListHistory(context.Background(), roomID, bobID, 1, 10)
		return err == nil && page.Total == 1
	}, 2*time.Second, 20*time.Millisecond)

	send(t, alice, gin.H{
		"type":      models.TypeWebRTCOffer,
		"target_id": bobID,
		"offer":     gin.H{"type": "offer", "sdp": "v=0"},
	})
	offer := readUntil(t, bob, models.TypeWebRTCOffer)
	assert.Equal(t, aliceID, offer["from_id"])

	require.NoError(t, alice.Close())
	left := readUntil(t, bob, models.TypeParticipantLeft)
	assert.Equal(t, aliceID, left["participant_id"])
}

func TestWebSocketJoinRequiresToken(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	roomID := s.createRoom(t)
	aliceID, aliceToken := s.join(t, roomID, "Alice", "fr", "en")
	bobID, _ := s.join(t, roomID, "Bob", "en", "fr")
	carolID, carolToken := s.join(t, roomID, "Carol", "es", "es")

	alice := dial(t, server, roomID)
	send(t, alice, gin.H{"type": models.TypeJoin, "participant_id": aliceID, "token": aliceToken})
	readUntil(t, alice, models.TypeParticipantsList)

	intruder := dial(t, server, roomID)
	send(t, intruder, gin.H{"type": models.TypeJoin, "participant_id": bobID})
	send(t, intruder, gin.H{"type": models.TypeJoin, "participant_id": bobID, "token": aliceToken})
	send(t, intruder, gin.H{"type": models.TypeJoin, "participant_id": carolID, "token": carolToken})

	// 前兩次 join 被忽略，第一則加入通知就是 Carol
	joined := readUntil(t, alice, models.TypeParticipantJoined)
	assert.Equal(t, carolID, joined["participant_id"])

	stored, err := s.services.Participant.GetParticipant(context.Background(), roomID, bobID)
	require.NoError(t, err)
	assert.Empty(t, stored.ChannelToken)
}

func TestWebSocketClosedWhenRoomDeactivated(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	roomID := s.createRoom(t)
	aliceID, aliceToken := s.join(t, roomID, "Alice", "fr", "en")
	alice := dial(t, server, roomID)
	send(t, alice, gin.H{"type": models.TypeJoin, "participant_id": aliceID, "token": aliceToken})
	readUntil(t, alice, models.TypeParticipantsList)

	w, _ := s.do(t, http.MethodDelete, "/api/rooms/"+roomID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(5*time.Second)))
	var err error
	for err == nil {
		_, _, err = alice.ReadMessage()
	}
	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection should be closed by the server")

	assert.Eventually(t, func() bool {
		p, err := s.services.Participant.GetParticipant(context.Background(), roomID, aliceID)
		return err == nil && !p.Active
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketRefusedForUnavailableRoom(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "missing"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	roomID := s.createRoom(t)
	require.NoError(t, s.services.Room.DeactivateRoom(context.Background(), roomID))

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(server, roomID), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	resp.Body.Close()
}
