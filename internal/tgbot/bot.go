package tgbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers one HTML formatted message.
type Sender interface {
	SendHTML(chatID int64, text string) error
}

// MemberChecker reports a user's membership status in a chat.
type MemberChecker interface {
	ChatMemberStatus(chatID, userID string) (string, error)
}

type Bot struct {
	Bot *tgbotapi.BotAPI
}

// New connects to the Bot API. endpoint may be empty for the public API; it
// uses tgbotapi's "%s/%s" format (token, method).
func New(token, endpoint string, client *http.Client) (*Bot, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return &Bot{Bot: bot}, nil
}

func (b *Bot) Username() string {
	return b.Bot.Self.UserName
}

func (b *Bot) SendHTML(chatID int64, text string) error {
	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"text":       text,
		"parse_mode": tgbotapi.ModeHTML,
	}
	_, err := b.Bot.MakeRequest("sendMessage", params)
	return err
}

func (b *Bot) ChatMemberStatus(chatID, userID string) (string, error) {
	params := tgbotapi.Params{
		"chat_id": chatID,
		"user_id": userID,
	}
	resp, err := b.Bot.MakeRequest("getChatMember", params)
	if err != nil {
		return "", err
	}
	var member tgbotapi.ChatMember
	if err := json.Unmarshal(resp.Result, &member); err != nil {
		return "", fmt.Errorf("decode chat member: %w", err)
	}
	return member.Status, nil
}

// SetWebhook points Telegram at url. secret, when set, is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (b *Bot) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{
		"url":             url,
		"allowed_updates": `["message"]`,
	}
	params.AddNonEmpty("secret_token", secret)
	_, err := b.Bot.MakeRequest("setWebhook", params)
	return err
}

func (b *Bot) DeleteWebhook() error {
	_, err := b.Bot.MakeRequest("deleteWebhook", tgbotapi.Params{})
	return err
}

// apiErrorMessage extracts the Bot API description from err, if any.
func apiErrorMessage(err error) (string, bool) {
	var pe *tgbotapi.Error
	if errors.As(err, &pe) {
		return pe.Message, true
	}
	var ve tgbotapi.Error
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}
