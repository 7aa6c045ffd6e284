package tgbot

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poll feeds long-polled updates into h until ctx is done. Used when no public
// webhook URL is available, e.g. local development. Telegram refuses
// getUpdates while a webhook is set, so the webhook is removed first.
func (b *Bot) Poll(ctx context.Context, h *Webhook) error {
	if err := b.DeleteWebhook(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.Bot.GetUpdatesChan(u)
	defer b.Bot.StopReceivingUpdates()

	log.Printf("tgbot: polling as @%s", b.Username())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := h.HandleUpdate(ctx, upd); err != nil {
				log.Printf("tgbot: update %d: %v", upd.UpdateID, err)
			}
		}
	}
}
