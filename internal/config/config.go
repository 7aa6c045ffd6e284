package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	GinMode       string
	PublicBaseURL string

	BotToken            string
	TelegramAPIEndpoint string
	WebhookSecret       string
	SetWebhookOnStart   bool
	PollUpdates         bool
	PublicChannelID     string
	PrivateGroupID      string
	InviteLink          string
	AdminID             int64

	BroadcastSecret     string
	BroadcastSecretHash string
	BroadcastBatchSize  int
	BroadcastBatchPause time.Duration

	YouTubeAPIKey   string
	YouTubeAPIBase  string
	YouTubeCacheTTL time.Duration

	BlobBackend string
	BlobToken   string
	BlobAPIURL  string
	RedisURL    string
	DatabaseURL string

	CatalogBackend  string
	EdgeConfigID    string
	EdgeConfigToken string
	VercelAPIToken  string
	VercelTeamID    string
	LibsqlURL       string
	LibsqlAuthToken string

	JWTSecret       string
	AdminSessionTTL time.Duration
	RequireInitData bool

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty trusts none.
	TrustedProxies []string

	LeaderboardMaxSize int
	LeaderboardTop     int
}

const defaultPrivateGroupID = "-1003699693654"

func optEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := optEnv(k); v != "" {
			return v
		}
	}
	return ""
}

func normalizeDatabaseURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	// Neon shows `psql 'postgresql://...'` examples. Accept them too.
	if i := strings.Index(s, "postgresql://"); i >= 0 {
		s = s[i:]
	} else if i := strings.Index(s, "postgres://"); i >= 0 {
		s = s[i:]
	}

	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		s = strings.Trim(s[:i], `"'`)
	}

	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	q := u.Query()
	// pgx does not need channel_binding and may treat it as a runtime param.
	q.Del("channel_binding")
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeRedisURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	// Some consoles show `redis-cli -u redis://...` examples.
	if i := strings.Index(s, "rediss://"); i >= 0 {
		s = s[i:]
	} else if i := strings.Index(s, "redis://"); i >= 0 {
		s = s[i:]
	}

	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		s = strings.Trim(s[:i], `"'`)
	}
	return s
}

// parseEdgeConfig splits an EDGE_CONFIG connection string
// (https://edge-config.vercel.com/ecfg_xxx?token=yyy) into id and read token.
func parseEdgeConfig(raw string) (id, token string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	id = strings.Trim(u.Path, "/")
	token = u.Query().Get("token")
	return id, token
}

func envInt64(key string, def int64) int64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envInt(key string, def int) int {
	return int(envInt64(key, int64(def)))
}

func envFloat64(key string, def float64) float64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if val == "" {
		return def
	}
	switch val {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// envDuration accepts Go durations ("1500ms") and bare seconds ("30").
func envDuration(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func Load() Config {
	port := optEnv("PORT")
	if port == "" {
		port = "8080"
	}

	publicBase := optEnv("PUBLIC_BASE_URL")
	if publicBase == "" {
		publicBase = optEnv("VERCEL_PROJECT_PRODUCTION_URL")
		if publicBase != "" && !strings.HasPrefix(publicBase, "http") {
			publicBase = "https://" + publicBase
		}
	}

	cfg := Config{
		Port:          port,
		GinMode:       strings.ToLower(optEnv("GIN_MODE")),
		PublicBaseURL: strings.TrimRight(publicBase, "/"),

		BotToken:            optEnv("BOT_TOKEN"),
		TelegramAPIEndpoint: optEnv("TELEGRAM_API_ENDPOINT"),
		WebhookSecret:       optEnv("TELEGRAM_WEBHOOK_SECRET"),
		SetWebhookOnStart:   envBool("SET_WEBHOOK_ON_START", false),
		PollUpdates:         envBool("TELEGRAM_POLLING", false),
		PublicChannelID:     optEnv("PUBLIC_CHANNEL_ID"),
		PrivateGroupID:      firstEnv("PRIVATE_GROUP_ID", "GROUP_ID"),
		InviteLink:          optEnv("INVITE_LINK"),
		AdminID:             envInt64("ADMIN_ID", 0),

		BroadcastSecret:     optEnv("BROADCAST_SECRET"),
		BroadcastSecretHash: optEnv("BROADCAST_SECRET_HASH"),
		BroadcastBatchSize:  envInt("BROADCAST_BATCH_SIZE", 20),
		BroadcastBatchPause: envDuration("BROADCAST_BATCH_PAUSE", time.Second),

		YouTubeAPIKey:   optEnv("YOUTUBE_API_KEY"),
		YouTubeAPIBase:  optEnv("YOUTUBE_API_BASE"),
		YouTubeCacheTTL: envDuration("YOUTUBE_CACHE_TTL", 0),

		BlobBackend: strings.ToLower(optEnv("BLOB_BACKEND")),
		BlobToken:   firstEnv("BLOB_READ_WRITE_TOKEN", "morespace_READ_WRITE_TOKEN"),
		BlobAPIURL:  optEnv("BLOB_API_URL"),
		RedisURL:    normalizeRedisURL(optEnv("REDIS_URL")),
		DatabaseURL: normalizeDatabaseURL(optEnv("DATABASE_URL")),

		CatalogBackend:  strings.ToLower(optEnv("CATALOG_BACKEND")),
		EdgeConfigID:    optEnv("EDGE_CONFIG_ID"),
		EdgeConfigToken: optEnv("EDGE_CONFIG_TOKEN"),
		VercelAPIToken:  optEnv("VERCEL_API_TOKEN"),
		VercelTeamID:    optEnv("VERCEL_TEAM_ID"),
		LibsqlURL:       optEnv("LIBSQL_URL"),
		LibsqlAuthToken: optEnv("LIBSQL_AUTH_TOKEN"),

		JWTSecret:       optEnv("JWT_SECRET"),
		AdminSessionTTL: envDuration("ADMIN_SESSION_TTL", 24*time.Hour),
		RequireInitData: envBool("REQUIRE_INIT_DATA", false),

		CORSOrigins:    parseCSV(optEnv("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:   envFloat64("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 30),
		TrustedProxies: parseCSV(optEnv("TRUSTED_PROXIES")),

		LeaderboardMaxSize: envInt("LEADERBOARD_MAX_SIZE", 100),
		LeaderboardTop:     envInt("LEADERBOARD_TOP", 10),
	}

	if cfg.PrivateGroupID == "" {
		cfg.PrivateGroupID = defaultPrivateGroupID
	}

	id, token := parseEdgeConfig(optEnv("EDGE_CONFIG"))
	if cfg.EdgeConfigID == "" {
		cfg.EdgeConfigID = id
	}
	if cfg.EdgeConfigToken == "" {
		cfg.EdgeConfigToken = token
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.BroadcastBatchSize <= 0 {
		cfg.BroadcastBatchSize = 20
	}
	if cfg.LeaderboardMaxSize <= 0 {
		cfg.LeaderboardMaxSize = 100
	}
	if cfg.LeaderboardTop <= 0 {
		cfg.LeaderboardTop = 10
	}

	if cfg.BlobBackend == "" {
		cfg.BlobBackend = cfg.defaultBlobBackend()
	}
	if cfg.CatalogBackend == "" {
		cfg.CatalogBackend = cfg.defaultCatalogBackend()
	}

	if cfg.BotToken == "" {
		log.Printf("missing env: BOT_TOKEN, telegram features run in bypass mode")
	}
	if cfg.YouTubeAPIKey == "" {
		log.Printf("missing env: YOUTUBE_API_KEY, youtube tools need ?key=")
	}

	return cfg
}

func (c Config) defaultBlobBackend() string {
	switch {
	case c.BlobToken != "":
		return "vercel"
	case c.RedisURL != "":
		return "redis"
	case c.DatabaseURL != "":
		return "postgres"
	default:
		return "memory"
	}
}

func (c Config) defaultCatalogBackend() string {
	switch {
	case c.EdgeConfigID != "":
		return "edgeconfig"
	case c.LibsqlURL != "":
		return "libsql"
	default:
		return "memory"
	}
}

func parseCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
