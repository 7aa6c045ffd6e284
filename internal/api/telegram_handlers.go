package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"morentube/internal/tgbot"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleWebhook always answers 200 so Telegram does not redeliver.
func (s *Server) handleWebhook(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusOK, gin.H{"status": "Webhook is running."})
		return
	}

	if s.cfg.WebhookSecret != "" && c.GetHeader(webhookSecretHeader) != s.cfg.WebhookSecret {
		log.Printf("webhook: rejected update with bad secret token from %s", c.ClientIP())
		c.String(http.StatusOK, "OK")
		return
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&upd); err != nil {
		log.Printf("webhook: decode update: %v", err)
		c.String(http.StatusOK, "OK")
		return
	}

	if err := s.webhook.HandleUpdate(c.Request.Context(), upd); err != nil {
		log.Printf("webhook: runtime error: %v", err)
	}
	c.String(http.StatusOK, "OK")
}

type broadcastRequest struct {
	Message string `json:"message"`
	Secret  string `json:"secret"`
}

func (s *Server) handleBroadcast(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		writeError(c, methodNotAllowed("Method not allowed"))
		return
	}

	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("broadcast: bad body: %v", err)
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(c, badRequest("Повідомлення не може бути пустим."))
		return
	}
	if !s.secret.Verify(req.Secret) {
		writeError(c, newError(http.StatusForbidden, ErrCodeForbidden, "Невірний секретний ключ."))
		return
	}

	ids, err := s.registry.All(c.Request.Context())
	if err != nil {
		writeError(c, newError(http.StatusInternalServerError, ErrCodeUpstream, "Помилка розсилки").withDetails(err))
		return
	}
	if len(ids) == 0 {
		writeError(c, newError(http.StatusNotFound, ErrCodeNotFound, "База користувачів порожня. Нікому надсилати."))
		return
	}

	// Long lists outlive the server's read and write timeouts.
	clearDeadlines(c.Writer)

	res, err := s.broadcaster.Send(c.Request.Context(), ids, req.Message)
	s.metrics.RecordBroadcast(res.Sent, res.Failed)
	if err != nil && !errors.Is(err, tgbot.ErrNoRecipients) {
		writeError(c, newError(http.StatusInternalServerError, ErrCodeInternal, "Помилка розсилки").withDetails(err))
		return
	}
	log.Printf("broadcast: done, sent=%d failed=%d total=%d", res.Sent, res.Failed, res.Total)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": res.Summary(),
		"sent":    res.Sent,
		"failed":  res.Failed,
		"total":   res.Total,
	})
}

func clearDeadlines(w http.ResponseWriter) {
	rc := http.NewResponseController(w)
	for _, err := range []error{rc.SetReadDeadline(time.Time{}), rc.SetWriteDeadline(time.Time{})} {
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.Printf("broadcast: failed to clear deadline: %v", err)
		}
	}
}

func (s *Server) handleCheckSubscription(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusOK)
		return
	}

	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		writeError(c, badRequest("Missing userId parameter"))
		return
	}

	res := s.subscriptions.Check(userID)
	if res.Bypassed {
		log.Printf("check-subscription: BOT_TOKEN is not set, bypassing subscription check")
	} else {
		s.metrics.RecordSubscription("public", res.IsPublicSubscribed)
		s.metrics.RecordSubscription("private", res.IsPrivateSubscribed)
	}
	c.JSON(http.StatusOK, res)
}
