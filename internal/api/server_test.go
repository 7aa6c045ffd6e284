package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morentube/internal/blobstore"
	"morentube/internal/catalog"
	"morentube/internal/config"
	"morentube/internal/leaderboard"
	"morentube/internal/registry"
	"morentube/internal/security"
	"morentube/internal/telegram"
	"morentube/internal/tgbot"
	"morentube/internal/youtube"
)

const testBotToken = "123:abc"

// fakeTelegram answers getMe, sendMessage and getChatMember.
type fakeTelegram struct {
	mu   sync.Mutex
	srv  *httptest.Server
	sent []string
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	f := &fakeTelegram{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"b","username":"bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if r.PostForm.Get("chat_id") == "13" {
				_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
				return
			}
			f.mu.Lock()
			f.sent = append(f.sent, r.PostForm.Get("chat_id"))
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
		case strings.HasSuffix(r.URL.Path, "/getChatMember"):
			status := "left"
			if r.PostForm.Get("chat_id") == "@public" {
				status = "member"
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"status":"` + status + `","user":{"id":5,"is_bot":false,"first_name":"u"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

type harness struct {
	t       *testing.T
	srv     *Server
	handler http.Handler
	blobs   *blobstore.MemoryStore
	reg     *registry.Registry
	tg      *fakeTelegram
}

func testConfig() config.Config {
	return config.Config{
		GinMode:             gin.TestMode,
		BotToken:            testBotToken,
		PublicChannelID:     "@public",
		PrivateGroupID:      "-100",
		InviteLink:          "https://t.me/+invite",
		BroadcastBatchSize:  20,
		BroadcastBatchPause: time.Millisecond,
		LeaderboardMaxSize:  100,
		LeaderboardTop:      10,
		CORSOrigins:         []string{"*"},
	}
}

func newHarness(t *testing.T, cfg config.Config, withBot bool) *harness {
	t.Helper()
	h := &harness{t: t, blobs: blobstore.NewMemory()}
	h.reg = registry.New(h.blobs)

	var bot *tgbot.Bot
	if withBot {
		h.tg = newFakeTelegram(t)
		var err error
		bot, err = tgbot.New(testBotToken, h.tg.srv.URL+"/bot%s/%s", nil)
		require.NoError(t, err)
	}

	h.srv = New(Deps{
		Config:      cfg,
		Registry:    h.reg,
		Leaderboard: leaderboard.NewService(h.blobs, cfg.LeaderboardMaxSize),
		Hub:         leaderboard.NewHub(cfg.LeaderboardTop),
		Catalog:     catalog.NewMemory(),
		YouTube:     youtube.New(""),
		Bot:         bot,
	})
	h.handler = h.srv.Handler()
	return h
}

func (h *harness) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func startUpdate(chatID int64, chatType, text string) map[string]any {
	return map[string]any{
		"update_id": 1,
		"message": map[string]any{
			"message_id": 1,
			"date":       0,
			"text":       text,
			"chat":       map[string]any{"id": chatID, "type": chatType},
		},
	}
}

func TestWebhook(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	ctx := context.Background()

	w := h.do(http.MethodGet, "/api/webhook", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook is running.", decode(t, w)["status"])

	for _, body := range []any{
		startUpdate(10, "private", "/start"),
		startUpdate(10, "private", "/start"),
		startUpdate(-5, "supergroup", "/start"),
		startUpdate(11, "private", "hello"),
		map[string]any{"update_id": 2},
		"{not json",
	} {
		w = h.do(http.MethodPost, "/api/webhook", body)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	}

	ids, err := h.reg.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)
	assert.Equal(t, []string{"10", "10"}, h.tg.sent)
}

type failingBlobs struct {
	blobstore.Store
}

func (failingBlobs) Put(context.Context, string, []byte, blobstore.PutOptions) (blobstore.Blob, error) {
	return blobstore.Blob{}, errors.New("blob store unavailable")
}

func TestWebhookRegistryFailure(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	bot, err := tgbot.New(testBotToken, h.tg.srv.URL+"/bot%s/%s", nil)
	require.NoError(t, err)

	srv := New(Deps{
		Config:   testConfig(),
		Registry: registry.New(failingBlobs{Store: h.blobs}),
		Bot:      bot,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"update_id":1,"message":{"message_id":1,"date":0,"text":"/start","chat":{"id":10,"type":"private"}}}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Empty(t, h.tg.sent)
	ids, err := h.reg.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWebhookSecret(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookSecret = "hook-secret"
	h := newHarness(t, cfg, false)

	w := h.do(http.MethodPost, "/api/webhook", startUpdate(1, "private", "/start"), webhookSecretHeader, "wrong")
	assert.Equal(t, http.StatusOK, w.Code)
	ids, _ := h.reg.All(context.Background())
	assert.Empty(t, ids)

	h.do(http.MethodPost, "/api/webhook", startUpdate(1, "private", "/start"), webhookSecretHeader, "hook-secret")
	ids, _ = h.reg.All(context.Background())
	assert.Equal(t, []int64{1}, ids)
}

func TestBroadcast(t *testing.T) {
	cfg := testConfig()
	cfg.BroadcastSecret = "operator-secret"
	h := newHarness(t, cfg, true)
	ctx := context.Background()

	w := h.do(http.MethodGet, "/api/broadcast", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = h.do(http.MethodPost, "/api/broadcast", map[string]string{"message": "  ", "secret": "operator-secret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Повідомлення не може бути пустим.", decode(t, w)["error"])

	w = h.do(http.MethodPost, "/api/broadcast", map[string]string{"message": "hi", "secret": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/broadcast", map[string]string{"message": "hi", "secret": "operator-secret"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "База користувачів порожня. Нікому надсилати.", decode(t, w)["error"])

	for _, id := range []int64{11, 12, 13} {
		_, err := h.reg.Add(ctx, id)
		require.NoError(t, err)
	}
	w = h.do(http.MethodPost, "/api/broadcast", map[string]string{"message": "<b>news</b>", "secret": "operator-secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Розсилку завершено! Вдало: 2. Помилок: 1.", out["message"])
	assert.Equal(t, 3.0, out["total"])
}

func TestBroadcastOutlivesServerTimeouts(t *testing.T) {
	cfg := testConfig()
	cfg.BroadcastBatchPause = 100 * time.Millisecond
	h := newHarness(t, cfg, true)

	const chats = 140
	for i := int64(0); i < chats; i++ {
		_, err := h.reg.Add(context.Background(), 1000+i)
		require.NoError(t, err)
	}

	srv := httptest.NewUnstartedServer(h.handler)
	srv.Config.ReadTimeout = 300 * time.Millisecond
	srv.Config.WriteTimeout = 300 * time.Millisecond
	srv.Start()
	defer srv.Close()

	start := time.Now()
	resp, err := http.Post(srv.URL+"/api/broadcast", "application/json", strings.NewReader(`{"message":"long list"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, time.Since(start), 300*time.Millisecond)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, float64(chats), out["sent"])
	assert.Equal(t, 0.0, out["failed"])

	h.tg.mu.Lock()
	defer h.tg.mu.Unlock()
	assert.Len(t, h.tg.sent, chats)
}

func TestCheckSubscription(t *testing.T) {
	h := newHarness(t, testConfig(), true)

	w := h.do(http.MethodGet, "/api/check-subscription", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing userId parameter", decode(t, w)["error"])

	w = h.do(http.MethodGet, "/api/check-subscription?userId=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["isPublicSubscribed"])
	assert.Equal(t, false, out["isPrivateSubscribed"])
	assert.Equal(t, "https://t.me/+invite", out["inviteLink"])
	debug := out["debug"].(map[string]any)
	assert.Nil(t, debug["public"])
	assert.Equal(t, `User status: "left"`, debug["private"])

	noBot := newHarness(t, testConfig(), false)
	w = noBot.do(http.MethodGet, "/api/check-subscription?userId=5", nil)
	out = decode(t, w)
	assert.Equal(t, true, out["bypassed"])
	assert.Equal(t, true, out["isPrivateSubscribed"])
}

func TestCatalogAdminID(t *testing.T) {
	cfg := testConfig()
	cfg.AdminID = 42
	h := newHarness(t, cfg, false)

	w := h.do(http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":null,"items":null}`, w.Body.String())

	payload := map[string]any{
		"categories": []map[string]any{{"id": "c1", "title": "Music", "description": "", "coverImage": ""}},
		"items":      []map[string]any{{"id": "i1", "categoryId": "c1", "type": "youtube", "title": "Clip", "content": "dQw4w9WgXcQ"}},
		"adminId":    7,
	}
	w = h.do(http.MethodPost, "/api/data", payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	payload["adminId"] = "42"
	w = h.do(http.MethodPost, "/api/data", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Data saved globally.", decode(t, w)["message"])

	w = h.do(http.MethodGet, "/api/data", nil)
	out := decode(t, w)
	assert.Len(t, out["categories"], 1)
	assert.Len(t, out["items"], 1)

	payload["items"] = []map[string]any{{"id": "i2", "categoryId": "c1", "type": "video"}}
	w = h.do(http.MethodPost, "/api/data", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodDelete, "/api/data", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCatalogAdminSession(t *testing.T) {
	cfg := testConfig()
	cfg.AdminID = 42
	cfg.JWTSecret = "jwt-secret"
	h := newHarness(t, cfg, false)

	payload := map[string]any{"categories": []any{}, "items": []any{}, "adminId": 42}
	w := h.do(http.MethodPost, "/api/data", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	stranger := telegram.SignInitData(telegram.AuthUser{ID: 7, FirstName: "S"}, time.Now(), testBotToken)
	w = h.do(http.MethodPost, "/api/auth/admin", map[string]string{"initData": stranger})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/auth/admin", map[string]string{"initData": "hash=bad&user=%7B%7D"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin := telegram.SignInitData(telegram.AuthUser{ID: 42, FirstName: "A"}, time.Now(), testBotToken)
	w = h.do(http.MethodPost, "/api/auth/admin", nil, telegram.InitDataHeader, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode(t, w)["token"].(string)

	w = h.do(http.MethodPost, "/api/data", payload, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestGameSyncAndLeaderboard(t *testing.T) {
	h := newHarness(t, testConfig(), false)

	w := h.do(http.MethodGet, "/api/game-sync", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method Not Allowed", decode(t, w)["error"])

	w = h.do(http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"firstName": "x", "score": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing userId or score", decode(t, w)["error"])

	for _, id := range []any{0, "0", ""} {
		w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": id, "score": 5})
		assert.Equal(t, http.StatusBadRequest, w.Code, "userId %v", id)
	}

	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": 1, "score": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": 1, "firstName": "Ann", "score": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1.0, decode(t, w)["rank"])

	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": "2", "score": 80})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, 1.0, out["rank"])
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["url"])

	// Same user as a string id; a lower score does not replace the stored one.
	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": "1", "score": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["rank"])

	w = h.do(http.MethodGet, "/api/leaderboard", nil)
	var board []leaderboard.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 2)
	assert.Equal(t, leaderboard.UserID("2"), board[0].UserID)
	assert.Equal(t, leaderboard.DefaultFirstName, board[0].FirstName)
	assert.Equal(t, int64(50), board[1].Score)
	assert.Equal(t, "Ann", board[1].FirstName)

	w = h.do(http.MethodPost, "/api/leaderboard", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGameSyncInitData(t *testing.T) {
	cfg := testConfig()
	cfg.RequireInitData = true
	h := newHarness(t, cfg, false)

	w := h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": 9, "score": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	signed := telegram.SignInitData(telegram.AuthUser{ID: 9, FirstName: "N"}, time.Now(), testBotToken)
	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": 10, "score": 1}, telegram.InitDataHeader, signed)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/game-sync", map[string]any{"userId": 9, "score": 1}, telegram.InitDataHeader, signed)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestYouTubeRoutes(t *testing.T) {
	h := newHarness(t, testConfig(), false)

	w := h.do(http.MethodPost, "/api/youtube-trends", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", decode(t, w)["error"])

	w = h.do(http.MethodGet, "/api/youtube-tracker?q=@x", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := decode(t, w)
	assert.Equal(t, "YouTube API Key is missing on the server and no custom key was provided", out["error"])
	assert.Equal(t, string(ErrCodeConfigMissing), out["code"])
	assert.NotEmpty(t, out["requestId"])

	w = h.do(http.MethodGet, "/api/youtube-spy", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/youtube-super-search?key=k", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Введіть ключове слово для пошуку", decode(t, w)["error"])
}

func TestYouTubeProxyWithKeyOverride(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "client-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"items":[{"id":"t1","snippet":{"title":"T","channelTitle":"C","thumbnails":{"high":{"url":"h"}}},"statistics":{"viewCount":"7"},"contentDetails":{"duration":"PT30S"}}]}`))
	}))
	defer upstream.Close()

	h := newHarness(t, testConfig(), false)
	h.srv.youtube.BaseURL = upstream.URL

	w := h.do(http.MethodGet, "/api/youtube-trends?key=client-key", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"trends":[{"id":"t1","title":"T","channelTitle":"C","thumbnailUrl":"h","viewCount":"7","publishedAt":"","duration":"PT30S"}],"scannedTotal":1}`, w.Body.String())
}

func TestHealthMetricsAndCORS(t *testing.T) {
	h := newHarness(t, testConfig(), false)

	w := h.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "morentube_requests_total")

	req := httptest.NewRequest(http.MethodOptions, "/api/data", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	w = h.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaderboardLive(t *testing.T) {
	h := newHarness(t, testConfig(), false)
	srv := httptest.NewServer(h.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/leaderboard/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg leaderboard.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "leaderboard", msg.Type)
	assert.Empty(t, msg.Entries)

	resp, err := http.Post(srv.URL+"/api/game-sync", "application/json", strings.NewReader(`{"userId":5,"score":99}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Entries, 1)
	assert.Equal(t, int64(99), msg.Entries[0].Score)
}

func TestRateLimitIgnoresSpoofedForwarding(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		want    []int
	}{
		{"no trusted proxies", nil, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}},
		{"trusted proxy", []string{"192.0.2.1"}, []int{http.StatusOK, http.StatusOK, http.StatusOK}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.TrustedProxies = tt.trusted
			handler := New(Deps{Config: cfg, Limiter: security.NewLimiter(0.001, 1)}).Handler()

			var got []int
			for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
				req := httptest.NewRequest(http.MethodGet, "/health", nil)
				req.Header.Set("X-Forwarded-For", ip)
				req.Header.Set("X-Real-IP", ip)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				got = append(got, w.Code)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
