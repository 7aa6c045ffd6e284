package tgbot

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const WelcomeMessage = "👋 <b>Привіт!</b>\n\n" +
	"Я офіційний бот додатку. Дякуємо, що приєднались! \n\n" +
	"Тут ми будемо повідомляти вас про важливі оновлення, анонси та події проекта. Залишайтесь на зв'язку!"

// ChatRegistry records chats that opted in to broadcasts.
type ChatRegistry interface {
	Add(ctx context.Context, chatID int64) (bool, error)
}

// Webhook handles updates pushed by Telegram. It only reacts to /start in
// private chats; everything else is acknowledged and dropped.
type Webhook struct {
	Sender   Sender
	Registry ChatRegistry

	// OnRegister is called for chats that were not registered before.
	OnRegister func(chatID int64)
}

// HandleUpdate returns an error for logging only. Callers must still answer
// Telegram with 200 so the update is not redelivered. A chat that could not
// be registered gets no welcome.
func (w *Webhook) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID == 0 {
		return nil
	}
	if msg.Chat.Type != "private" {
		return nil
	}
	if !isStart(msg) {
		return nil
	}

	chatID := msg.Chat.ID
	added, err := w.Registry.Add(ctx, chatID)
	if err != nil {
		return fmt.Errorf("register chat %d: %w", chatID, err)
	}
	if added {
		log.Printf("webhook: added new user chatId: %d", chatID)
		if w.OnRegister != nil {
			w.OnRegister(chatID)
		}
	}

	if w.Sender != nil {
		if err := w.Sender.SendHTML(chatID, WelcomeMessage); err != nil {
			return fmt.Errorf("welcome %d: %w", chatID, err)
		}
	}
	return nil
}

func isStart(msg *tgbotapi.Message) bool {
	if msg.IsCommand() {
		return msg.Command() == "start"
	}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd == "/start"
}
