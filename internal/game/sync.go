package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"morentube/internal/config"
	"morentube/internal/leaderboard"
	"morentube/internal/telegram"
)

// GuestUserID is reported when the app runs outside Telegram.
const GuestUserID = "local_test_user"

// Player identifies who the score belongs to. InitData, when present, is
// sent so the server can check the id.
type Player struct {
	ID        string
	FirstName string
	InitData  string
}

// Syncer reports the score to the global leaderboard a few seconds after the
// player stops tapping. Reports are fire and forget: a failed one is logged
// and the same score is not retried.
type Syncer struct {
	BaseURL    string
	HTTPClient *http.Client
	Debounce   time.Duration
	// OnResult observes every finished report.
	OnResult func(*leaderboard.Result, error)

	engine *Engine
	player Player

	mu          sync.Mutex
	timer       *time.Timer
	lastSeen    int64
	lastSynced  int64
	closed      bool
	unsubscribe func()
}

func NewSyncer(baseURL string, engine *Engine, player Player) *Syncer {
	if strings.TrimSpace(player.ID) == "" {
		player.ID = GuestUserID
	}
	if strings.TrimSpace(player.FirstName) == "" {
		player.FirstName = fmt.Sprintf("Гість %d", rand.Intn(100))
	}

	s := &Syncer{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Debounce:   config.SYNC_DEBOUNCE,
		engine:     engine,
		player:     player,
		lastSeen:   engine.State().Score,
	}
	s.unsubscribe = engine.Subscribe(s.onState)
	return s
}

func (s *Syncer) Player() Player { return s.player }

// onState re-arms the timer on every score change.
func (s *Syncer) onState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || st.Score == s.lastSeen {
		return
	}
	s.lastSeen = st.Score
	if st.Score == 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.Debounce, s.fire)
}

func (s *Syncer) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := s.Force(ctx); err != nil {
		log.Printf("game: sync failed: %v", err)
	}
}

// Force reports the current score now. It returns nil, nil when there is
// nothing new to report.
func (s *Syncer) Force(ctx context.Context) (*leaderboard.Result, error) {
	st := s.engine.State()

	s.mu.Lock()
	if st.Score == 0 || st.Score == s.lastSynced {
		s.mu.Unlock()
		return nil, nil
	}
	s.lastSynced = st.Score
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	res, err := s.submit(ctx, st.Score)
	if s.OnResult != nil {
		s.OnResult(res, err)
	}
	return res, err
}

func (s *Syncer) submit(ctx context.Context, score int64) (*leaderboard.Result, error) {
	lvl := LevelFor(score)
	body, err := json.Marshal(leaderboard.Submission{
		UserID:    leaderboard.UserID(s.player.ID),
		FirstName: s.player.FirstName,
		Score:     &score,
		LevelName: lvl.Name,
		LevelIcon: lvl.Icon,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/game-sync", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.player.InitData != "" {
		req.Header.Set(telegram.InitDataHeader, s.player.InitData)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("game-sync request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("game-sync status %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("game-sync status %d", resp.StatusCode)
	}

	var res leaderboard.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode game-sync response: %w", err)
	}
	return &res, nil
}

// Close stops the pending report and detaches from the engine.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.unsubscribe()
}
