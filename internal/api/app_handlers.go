package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"morentube/internal/catalog"
	"morentube/internal/leaderboard"
	"morentube/internal/telegram"
)

// initDataMaxAge bounds how old a Mini App launch may be when it signs
// requests.
const initDataMaxAge = 24 * time.Hour

func (s *Server) handleData(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
	case http.MethodGet:
		s.readCatalog(c)
	case http.MethodPost:
		s.saveCatalog(c)
	default:
		writeError(c, methodNotAllowed("Method not allowed"))
	}
}

func (s *Server) readCatalog(c *gin.Context) {
	snap, err := s.catalog.Load(c.Request.Context())
	if err != nil {
		log.Printf("data: error reading catalog: %v", err)
		writeError(c, newError(http.StatusInternalServerError, ErrCodeUpstream, "Failed to read data"))
		return
	}
	c.JSON(http.StatusOK, snap)
}

type saveCatalogRequest struct {
	Categories []catalog.Category `json:"categories"`
	Items      []catalog.Item     `json:"items"`
	AdminID    leaderboard.UserID `json:"adminId"`
}

func (s *Server) saveCatalog(c *gin.Context) {
	var req saveCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("Invalid JSON body").withDetails(err))
		return
	}
	if apiErr := s.authorizeAdmin(c, req.AdminID); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	snap := catalog.Snapshot{Categories: req.Categories, Items: req.Items}
	if err := snap.Validate(); err != nil {
		writeError(c, badRequest(err.Error()))
		return
	}

	err := s.catalog.Save(c.Request.Context(), snap)
	var upErr *catalog.UpstreamError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Data saved globally."})
	case errors.Is(err, catalog.ErrNotConfigured):
		writeError(c, newError(http.StatusInternalServerError, ErrCodeConfigMissing, "Missing Vercel API credentials in environment variables."))
	case errors.As(err, &upErr):
		log.Printf("data: catalog store error: %v", err)
		// Pass the provider's answer through unchanged.
		var body any = string(upErr.Body)
		if json.Valid(upErr.Body) {
			body = json.RawMessage(upErr.Body)
		}
		c.AbortWithStatusJSON(upErr.Status, gin.H{"error": body})
	default:
		writeError(c, newError(http.StatusInternalServerError, ErrCodeInternal, "Failed to save data").withDetails(err))
	}
}

// authorizeAdmin accepts a signed admin session when JWT_SECRET is set and
// otherwise falls back to comparing adminId with ADMIN_ID.
func (s *Server) authorizeAdmin(c *gin.Context, adminID leaderboard.UserID) *APIError {
	if s.sessions.Enabled() {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return newError(http.StatusUnauthorized, ErrCodeUnauthorized, "Unauthorized")
		}
		if _, err := s.sessions.VerifyAdmin(strings.TrimSpace(token)); err != nil {
			return newError(http.StatusUnauthorized, ErrCodeUnauthorized, "Unauthorized").withDetails(err)
		}
		return nil
	}
	if s.cfg.AdminID != 0 {
		id, ok := adminID.Int64()
		if !ok || id != s.cfg.AdminID {
			return newError(http.StatusForbidden, ErrCodeForbidden, "Forbidden")
		}
	}
	return nil
}

type adminAuthRequest struct {
	InitData string `json:"initData"`
}

func (s *Server) handleAdminAuth(c *gin.Context) {
	if !s.sessions.Enabled() {
		writeError(c, newError(http.StatusInternalServerError, ErrCodeConfigMissing, "JWT_SECRET is not configured"))
		return
	}
	if s.cfg.BotToken == "" {
		writeError(c, newError(http.StatusInternalServerError, ErrCodeConfigMissing, "BOT_TOKEN is not configured"))
		return
	}

	var req adminAuthRequest
	_ = c.ShouldBindJSON(&req)
	initData := req.InitData
	if initData == "" {
		initData = c.GetHeader(telegram.InitDataHeader)
	}

	user, err := telegram.VerifyInitData(initData, s.cfg.BotToken, initDataMaxAge, s.now())
	if err != nil {
		writeError(c, newError(http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid init data").withDetails(err))
		return
	}
	token, exp, err := s.sessions.Issue(user, s.now())
	if errors.Is(err, telegram.ErrNotAdmin) {
		writeError(c, newError(http.StatusForbidden, ErrCodeForbidden, "Forbidden"))
		return
	}
	if err != nil {
		writeError(c, newError(http.StatusInternalServerError, ErrCodeInternal, "Failed to issue session").withDetails(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.UTC()})
}

func (s *Server) handleGameSync(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		writeError(c, methodNotAllowed("Method Not Allowed"))
		return
	}

	var sub leaderboard.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		writeError(c, badRequest("Invalid JSON body").withDetails(err))
		return
	}

	if apiErr := s.checkInitData(c, sub.UserID); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	res, err := s.leaderboard.Submit(c.Request.Context(), sub)
	s.metrics.RecordLeaderboardSubmission(err)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, leaderboard.ErrMissingFields):
		writeError(c, badRequest("Missing userId or score"))
	case errors.Is(err, leaderboard.ErrNegativeScore):
		writeError(c, badRequest("Score must not be negative"))
	default:
		log.Printf("game-sync: leaderboard sync error: %v", err)
		writeError(c, newError(http.StatusInternalServerError, ErrCodeInternal, err.Error()))
	}
}

// checkInitData verifies the Mini App signature when the client sends one or
// when REQUIRE_INIT_DATA is on. The signed user must be the submitting user.
func (s *Server) checkInitData(c *gin.Context, userID leaderboard.UserID) *APIError {
	initData := c.GetHeader(telegram.InitDataHeader)
	if initData == "" && !s.cfg.RequireInitData {
		return nil
	}
	if s.cfg.BotToken == "" {
		if s.cfg.RequireInitData {
			return newError(http.StatusInternalServerError, ErrCodeConfigMissing, "BOT_TOKEN is not configured")
		}
		return nil
	}

	user, err := telegram.VerifyInitData(initData, s.cfg.BotToken, initDataMaxAge, s.now())
	if err != nil {
		return newError(http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid init data").withDetails(err)
	}
	if string(userID) != "" && string(userID) != strconv.FormatInt(user.ID, 10) {
		return newError(http.StatusForbidden, ErrCodeForbidden, "userId does not match init data")
	}
	return nil
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		writeError(c, methodNotAllowed("Method Not Allowed"))
		return
	}
	top, err := s.leaderboard.Top(c.Request.Context(), s.topN())
	if err != nil {
		log.Printf("leaderboard: fetch error: %v", err)
		writeError(c, newError(http.StatusInternalServerError, ErrCodeUpstream, err.Error()))
		return
	}
	c.JSON(http.StatusOK, top)
}

func (s *Server) handleLeaderboardLive(c *gin.Context) {
	if s.hub == nil {
		writeError(c, newError(http.StatusNotFound, ErrCodeNotFound, "Live leaderboard is disabled"))
		return
	}
	top, err := s.leaderboard.Top(c.Request.Context(), s.topN())
	if err != nil {
		log.Printf("leaderboard: live snapshot: %v", err)
		top = []leaderboard.Entry{}
	}
	s.hub.ServeWS(c.Writer, c.Request, top)
	s.metrics.SetLiveConnections(s.hub.Count())
}

func (s *Server) topN() int {
	if s.cfg.LeaderboardTop > 0 {
		return s.cfg.LeaderboardTop
	}
	return leaderboard.DefaultTop
}
