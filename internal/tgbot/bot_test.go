package tgbot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBotAPI answers the handful of Bot API methods the service calls.
type fakeBotAPI struct {
	mu      sync.Mutex
	srv     *httptest.Server
	sent    []map[string]string
	members map[string]string // chat_id + ":" + user_id -> status
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	f := &fakeBotAPI{members: map[string]string{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) endpoint() string { return f.srv.URL + "/bot%s/%s" }

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	method := parts[len(parts)-1]

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"b","username":"morentube_bot"}}`))
	case "sendMessage":
		if r.PostForm.Get("chat_id") == "666" {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
			return
		}
		f.sent = append(f.sent, map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		})
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	case "getChatMember":
		status, ok := f.members[r.PostForm.Get("chat_id")+":"+r.PostForm.Get("user_id")]
		if !ok {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		out, _ := json.Marshal(map[string]any{"ok": true, "result": map[string]any{
			"status": status,
			"user":   map[string]any{"id": 5, "is_bot": false, "first_name": "u"},
		}})
		_, _ = w.Write(out)
	case "setWebhook", "deleteWebhook":
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func TestBotAgainstFakeAPI(t *testing.T) {
	api := newFakeBotAPI(t)
	api.members["@chan:5"] = "member"
	api.members["-100:5"] = "left"

	bot, err := New("123:abc", api.endpoint(), nil)
	require.NoError(t, err)
	assert.Equal(t, "morentube_bot", bot.Username())

	require.NoError(t, bot.SendHTML(42, "<b>hi</b>"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "42", api.sent[0]["chat_id"])
	assert.Equal(t, "HTML", api.sent[0]["parse_mode"])

	err = bot.SendHTML(666, "x")
	require.Error(t, err)
	desc, ok := apiErrorMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Forbidden: bot was blocked by the user", desc)

	status, err := bot.ChatMemberStatus("@chan", "5")
	require.NoError(t, err)
	assert.Equal(t, "member", status)

	require.NoError(t, bot.SetWebhook("https://example.com/api/webhook", "s3cret"))
	require.NoError(t, bot.DeleteWebhook())
}

func TestSubscriptionAgainstFakeAPI(t *testing.T) {
	api := newFakeBotAPI(t)
	api.members["@chan:5"] = "creator"
	api.members["-100:5"] = "left"

	bot, err := New("123:abc", api.endpoint(), nil)
	require.NoError(t, err)

	checker := &SubscriptionChecker{Members: bot, PublicChannelID: "@chan", PrivateGroupID: "-100", InviteLink: "https://t.me/+x"}
	res := checker.Check("5")
	assert.True(t, res.IsPublicSubscribed)
	assert.False(t, res.IsPrivateSubscribed)
	require.NotNil(t, res.Debug)
	assert.Nil(t, res.Debug.Public)
	require.NotNil(t, res.Debug.Private)
	assert.Equal(t, `User status: "left"`, *res.Debug.Private)

	res = checker.Check("6")
	assert.False(t, res.IsPublicSubscribed)
	require.NotNil(t, res.Debug.Public)
	assert.Equal(t, "Telegram API Error: Bad Request: chat not found", *res.Debug.Public)
}
