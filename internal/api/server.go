// Package api is the HTTP surface of the Mini App backend.
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"morentube/internal/catalog"
	"morentube/internal/config"
	"morentube/internal/leaderboard"
	"morentube/internal/monitoring"
	"morentube/internal/registry"
	"morentube/internal/security"
	"morentube/internal/telegram"
	"morentube/internal/tgbot"
	"morentube/internal/youtube"
)

// Deps are the collaborators behind the routes. Bot may be nil when no bot
// token is configured.
type Deps struct {
	Config      config.Config
	Registry    *registry.Registry
	Leaderboard *leaderboard.Service
	Hub         *leaderboard.Hub
	Catalog     catalog.Store
	YouTube     *youtube.Client
	Bot         *tgbot.Bot
	Metrics     *monitoring.Metrics
	Sessions    *telegram.Sessions
	Limiter     *security.Limiter
}

type Server struct {
	cfg         config.Config
	registry    *registry.Registry
	leaderboard *leaderboard.Service
	hub         *leaderboard.Hub
	catalog     catalog.Store
	youtube     *youtube.Client
	metrics     *monitoring.Metrics
	sessions    *telegram.Sessions
	limiter     *security.Limiter

	webhook       *tgbot.Webhook
	broadcaster   *tgbot.Broadcaster
	subscriptions *tgbot.SubscriptionChecker
	secret        security.Secret

	now    func() time.Time
	engine *gin.Engine
}

func New(d Deps) *Server {
	s := &Server{
		cfg:         d.Config,
		registry:    d.Registry,
		leaderboard: d.Leaderboard,
		hub:         d.Hub,
		catalog:     d.Catalog,
		youtube:     d.YouTube,
		metrics:     d.Metrics,
		sessions:    d.Sessions,
		limiter:     d.Limiter,
		secret:      security.Secret{Plain: d.Config.BroadcastSecret, Hash: d.Config.BroadcastSecretHash},
		now:         time.Now,
	}
	if s.metrics == nil {
		s.metrics = monitoring.New()
	}
	if s.sessions == nil {
		s.sessions = telegram.NewSessions(d.Config.JWTSecret, d.Config.AdminSessionTTL, d.Config.AdminID)
	}

	// Keep the interfaces nil when there is no bot so the tgbot types can
	// tell "not configured" apart from a failing bot.
	var sender tgbot.Sender
	var members tgbot.MemberChecker
	if d.Bot != nil {
		sender = d.Bot
		members = d.Bot
	}

	s.webhook = &tgbot.Webhook{
		Sender:     sender,
		Registry:   d.Registry,
		OnRegister: func(int64) { s.metrics.IncrementRegisteredChats() },
	}
	s.broadcaster = &tgbot.Broadcaster{
		Sender:    sender,
		BatchSize: d.Config.BroadcastBatchSize,
		Pause:     d.Config.BroadcastBatchPause,
	}
	s.subscriptions = &tgbot.SubscriptionChecker{
		Members:         members,
		PublicChannelID: d.Config.PublicChannelID,
		PrivateGroupID:  d.Config.PrivateGroupID,
		InviteLink:      d.Config.InviteLink,
	}

	if s.leaderboard != nil && s.hub != nil && s.leaderboard.OnChange == nil {
		s.leaderboard.OnChange = func(entries []leaderboard.Entry) {
			s.hub.Publish(entries)
			s.metrics.SetLiveConnections(s.hub.Count())
		}
	}
	if s.youtube != nil && s.youtube.OnCall == nil {
		s.youtube.OnCall = func(endpoint string, err error) {
			s.metrics.RecordUpstream("youtube", endpoint, err)
		}
	}

	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	if s.cfg.GinMode != "" {
		gin.SetMode(s.cfg.GinMode)
	}

	r := gin.New()
	// Forwarding headers count only when set by a listed proxy.
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		log.Printf("api: invalid TRUSTED_PROXIES, trusting none: %v", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(s.metrics.GinMiddleware())
	r.Use(security.Headers())
	if s.limiter != nil {
		r.Use(s.limiter.Middleware())
	}

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.Any("/webhook", s.handleWebhook)
	api.Any("/broadcast", s.handleBroadcast)
	api.Any("/check-subscription", s.handleCheckSubscription)
	api.Any("/data", s.handleData)
	api.Any("/game-sync", s.handleGameSync)
	api.Any("/leaderboard", s.handleLeaderboard)
	api.GET("/leaderboard/live", s.handleLeaderboardLive)
	api.POST("/auth/admin", s.handleAdminAuth)

	api.Any("/youtube-tracker", s.handleYouTubeTracker)
	api.Any("/youtube-spy", s.handleYouTubeSpy)
	api.Any("/youtube-trends", s.handleYouTubeTrends)
	api.Any("/youtube-comments", s.handleYouTubeComments)
	api.Any("/youtube-super-search", s.handleYouTubeSuperSearch)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, newError(http.StatusNotFound, ErrCodeNotFound, "Not found"))
	})
	return r
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// Webhook is the update handler behind /api/webhook, shared with long polling.
func (s *Server) Webhook() *tgbot.Webhook { return s.webhook }

// Handler wraps the engine with CORS and request ids. Client IPs come from
// gin's trusted proxy handling.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS", "PATCH", "DELETE", "POST", "PUT"},
		AllowedHeaders: []string{
			"X-CSRF-Token", "X-Requested-With", "Accept", "Accept-Version", "Content-Length",
			"Content-MD5", "Content-Type", "Date", "X-Api-Version", "Authorization", telegram.InitDataHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c(middleware.RequestID(s.engine))
}

func (s *Server) handleHealth(c *gin.Context) {
	summary, err := s.metrics.Summary()
	if err != nil {
		summary = nil
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
		"bot":       s.subscriptions.Members != nil,
		"metrics":   summary,
	})
}
