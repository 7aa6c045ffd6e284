package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrNoRecipients = errors.New("no recipients")

type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Summary is the operator facing report.
func (r BroadcastResult) Summary() string {
	return fmt.Sprintf("Розсилку завершено! Вдало: %d. Помилок: %d.", r.Sent, r.Failed)
}

// Broadcaster sends one text to many chats in rate limited batches. Chats in
// a batch are sent concurrently; batches are separated by Pause. Failed sends
// are counted, never retried.
type Broadcaster struct {
	Sender    Sender
	BatchSize int
	Pause     time.Duration

	// Sleep waits between batches. Defaults to a context aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnSend observes every attempt.
	OnSend func(chatID int64, err error)
}

func (b *Broadcaster) Send(ctx context.Context, chatIDs []int64, text string) (BroadcastResult, error) {
	res := BroadcastResult{Total: len(chatIDs)}
	if len(chatIDs) == 0 {
		return res, ErrNoRecipients
	}

	size := b.BatchSize
	if size <= 0 {
		size = 20
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var sent, failed int64
	for start := 0; start < len(chatIDs); start += size {
		end := start + size
		if end > len(chatIDs) {
			end = len(chatIDs)
		}

		var g errgroup.Group
		for _, id := range chatIDs[start:end] {
			id := id
			g.Go(func() error {
				err := b.sendOne(id, text)
				if b.OnSend != nil {
					b.OnSend(id, err)
				}
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Printf("broadcast: to %d failed: %v", id, err)
				} else {
					atomic.AddInt64(&sent, 1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if end < len(chatIDs) {
			if err := sleep(ctx, b.Pause); err != nil {
				// Remaining chats were never attempted.
				res.Sent = int(sent)
				res.Failed = int(failed) + len(chatIDs) - end
				return res, err
			}
		}
	}

	res.Sent = int(sent)
	res.Failed = int(failed)
	return res, nil
}

func (b *Broadcaster) sendOne(chatID int64, text string) error {
	if b.Sender == nil {
		return errors.New("bot is not configured")
	}
	return b.Sender.SendHTML(chatID, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
