// Package game is the tap-to-earn economy played on the client: energy that
// taps spend and time refills, a score that only grows, daily full-tank
// boosts and short double-score windows.
package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"morentube/internal/config"
	"morentube/internal/localstore"
)

const MaxEnergy = config.DEFAULT_ENERGY_MAX

// State is what the client persists between sessions.
type State struct {
	Score              int64  `json:"score"`
	Energy             int    `json:"energy"`
	LastUpdate         int64  `json:"lastUpdate"` // unix ms
	DailyBoosts        int    `json:"dailyBoosts"`
	LastBoostResetDate string `json:"lastBoostResetDate"`
}

// storedState tells absent fields apart from zeros.
type storedState struct {
	Score              *int64 `json:"score"`
	Energy             *int   `json:"energy"`
	LastUpdate         *int64 `json:"lastUpdate"`
	DailyBoosts        *int   `json:"dailyBoosts"`
	LastBoostResetDate string `json:"lastBoostResetDate"`
}

type Engine struct {
	store *localstore.Store

	Now  func() time.Time
	Rand func() float64

	saveMu sync.Mutex

	mu         sync.Mutex
	state      State
	superUntil time.Time

	startOnce sync.Once
}

// NewEngine returns an engine with a fresh game. Call Load to restore the
// saved one.
func NewEngine(store *localstore.Store) *Engine {
	now := time.Now()
	return &Engine{
		store: store,
		Now:   time.Now,
		Rand:  rand.Float64,
		state: freshState(now),
	}
}

// Load restores the saved game, applies the energy regenerated while the app
// was closed and resets the boosts on a new day. An unreadable save starts a
// new game.
func (e *Engine) Load() error {
	now := e.Now()

	var st storedState
	found, err := e.store.Get(config.GAME_STORAGE_KEY, &st)
	if err != nil {
		log.Printf("game: failed to load game state: %v", err)
		found = false
	}

	e.mu.Lock()
	if found {
		e.state = restore(st, now)
	} else {
		e.state = freshState(now)
	}
	e.superUntil = time.Time{}
	e.mu.Unlock()

	return e.save()
}

func freshState(now time.Time) State {
	return State{
		Energy:             MaxEnergy,
		LastUpdate:         now.UnixMilli(),
		DailyBoosts:        config.DAILY_BOOSTS,
		LastBoostResetDate: dayOf(now),
	}
}

func restore(st storedState, now time.Time) State {
	s := freshState(now)
	if st.Score != nil && *st.Score > 0 {
		s.Score = *st.Score
	}
	if st.LastBoostResetDate == s.LastBoostResetDate && st.DailyBoosts != nil {
		s.DailyBoosts = clamp(*st.DailyBoosts, 0, config.DAILY_BOOSTS)
	}

	energy := MaxEnergy
	if st.Energy != nil {
		energy = *st.Energy
	}
	since := now
	if st.LastUpdate != nil && *st.LastUpdate > 0 {
		since = time.UnixMilli(*st.LastUpdate)
	}
	s.Energy = regenEnergy(energy, since, now)
	return s
}

// Start refills energy once a second until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.loop(ctx)
	})
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Regenerate(e.Now())
		}
	}
}

// Regenerate adds the energy earned since the last update, one unit per
// whole second. Leftover fractions carry over to the next call.
func (e *Engine) Regenerate(now time.Time) bool {
	e.mu.Lock()
	changed := e.regenerateLocked(now)
	e.mu.Unlock()
	if changed {
		e.persist()
	}
	return changed
}

func (e *Engine) regenerateLocked(now time.Time) bool {
	last := time.UnixMilli(e.state.LastUpdate)
	secs := now.Sub(last) / time.Second
	if secs <= 0 {
		return false
	}
	e.state.Energy = regenEnergy(e.state.Energy, last, now)
	if e.state.Energy >= MaxEnergy {
		e.state.LastUpdate = now.UnixMilli()
	} else {
		e.state.LastUpdate = last.Add(secs * time.Second).UnixMilli()
	}
	return true
}

// Tap spends n energy (at least 1, at most what is left) and returns the
// score gained. While super mode is open, or when the roll opens it, the gain
// is doubled. Without energy a tap does nothing and returns 0.
func (e *Engine) Tap(n int) int {
	if n < 1 {
		n = 1
	}
	now := e.Now()

	e.mu.Lock()
	e.regenerateLocked(now)
	if n > e.state.Energy {
		n = e.state.Energy
	}
	if n <= 0 {
		e.mu.Unlock()
		return 0
	}

	gained := n
	switch {
	case now.Before(e.superUntil):
		gained *= config.SUPER_MODE_MULTIPLIER
	case e.Rand() < config.SUPER_MODE_CHANCE:
		gained *= config.SUPER_MODE_MULTIPLIER
		e.superUntil = now.Add(config.SUPER_MODE_DURATION)
	}

	e.state.Score += int64(gained)
	e.state.Energy -= n
	e.mu.Unlock()

	e.persist()
	return gained
}

// TriggerBoost refills the tank using one of today's boosts.
func (e *Engine) TriggerBoost() bool {
	now := e.Now()

	e.mu.Lock()
	e.resetDailyLocked(now)
	if e.state.DailyBoosts <= 0 {
		e.mu.Unlock()
		return false
	}
	e.state.Energy = MaxEnergy
	e.state.DailyBoosts--
	e.state.LastUpdate = now.UnixMilli()
	e.mu.Unlock()

	e.persist()
	return true
}

func (e *Engine) resetDailyLocked(now time.Time) {
	if today := dayOf(now); e.state.LastBoostResetDate != today {
		e.state.DailyBoosts = config.DAILY_BOOSTS
		e.state.LastBoostResetDate = today
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) IsSuperMode() bool {
	return e.SuperModeTimeLeft() > 0
}

func (e *Engine) SuperModeTimeLeft() time.Duration {
	e.mu.Lock()
	until := e.superUntil
	e.mu.Unlock()
	left := until.Sub(e.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (e *Engine) CurrentLevel() Level {
	return LevelFor(e.State().Score)
}

func (e *Engine) NextLevel() (Level, bool) {
	return NextLevelFor(e.State().Score)
}

func (e *Engine) Progress() float64 {
	return ProgressFor(e.State().Score)
}

// EnergyFullIn is how long until the tank is full at the regular rate.
func (e *Engine) EnergyFullIn() time.Duration {
	secs := config.CalculateEnergyRegenTime(e.State().Energy, MaxEnergy)
	return time.Duration(secs) * time.Second
}

// Subscribe calls fn with the new state after every saved change. fn must not
// mutate the engine.
func (e *Engine) Subscribe(fn func(State)) (unsubscribe func()) {
	return e.store.Subscribe(config.GAME_EVENT, func() { fn(e.State()) })
}

func (e *Engine) persist() {
	if err := e.save(); err != nil {
		log.Printf("game: failed to save game state: %v", err)
	}
}

// save writes the latest state. Saves are serialized so an older snapshot
// never lands after a newer one.
func (e *Engine) save() error {
	e.saveMu.Lock()
	err := e.store.Set(config.GAME_STORAGE_KEY, e.State())
	e.saveMu.Unlock()
	if err != nil {
		return err
	}
	e.store.Emit(config.GAME_EVENT)
	return nil
}

func regenEnergy(current int, since, now time.Time) int {
	current = clamp(current, 0, MaxEnergy)
	secs := int64(now.Sub(since) / time.Second)
	if secs <= 0 {
		return current
	}
	gained := secs * config.DEFAULT_ENERGY_REGEN
	if int64(current)+gained >= MaxEnergy {
		return MaxEnergy
	}
	return current + int(gained)
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
