package userstate

import (
	"errors"
	"log"
	"time"

	"morentube/internal/localstore"
)

const (
	StreakKey    = "morentube_current_streak"
	LastLoginKey = "morentube_last_login_date"
)

// Streak counts consecutive days (UTC) the app was opened.
type Streak struct {
	store *localstore.Store
}

func NewStreak(store *localstore.Store) *Streak {
	return &Streak{store: store}
}

// Check records a visit at now and returns the streak. The first visit and
// any visit after a missed day start at 1; a visit the day after the last one
// adds 1; repeated visits on one day change nothing.
func (s *Streak) Check(now time.Time) (int, error) {
	today := now.UTC().Format("2006-01-02")
	yesterday := now.UTC().AddDate(0, 0, -1).Format("2006-01-02")

	var stored int
	if _, err := s.store.Get(StreakKey, &stored); err != nil {
		log.Printf("userstate: bad streak value: %v", err)
		stored = 0
	}
	var last string
	if _, err := s.store.Get(LastLoginKey, &last); err != nil {
		log.Printf("userstate: bad last login value: %v", err)
		last = ""
	}

	switch last {
	case today:
		if stored < 1 {
			return 1, nil
		}
		return stored, nil
	case yesterday:
		if stored < 0 {
			stored = 0
		}
		return s.save(stored+1, today)
	default:
		return s.save(1, today)
	}
}

func (s *Streak) save(streak int, day string) (int, error) {
	err := errors.Join(
		s.store.Set(StreakKey, streak),
		s.store.Set(LastLoginKey, day),
	)
	if err != nil {
		return 1, err
	}
	return streak, nil
}

// Reset forgets the streak; the next Check starts over.
func (s *Streak) Reset() error {
	return errors.Join(s.store.Remove(StreakKey), s.store.Remove(LastLoginKey))
}
