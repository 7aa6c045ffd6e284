// Package leaderboard keeps the global tap game ranking.
package leaderboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	FileName       = "leaderboard.json"
	DefaultMaxSize = 100
	DefaultTop     = 10

	DefaultFirstName = "Анонім"
	DefaultLevelName = "Дерев'яна кнопка"
	DefaultLevelIcon = "text-[#8B5A2B]"
)

// UserID is a Telegram user id or a client generated id. Clients send either a
// JSON number or a string; both forms of the same id compare equal.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*u = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = UserID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("userId must be a number or string: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*u = UserID(strconv.FormatInt(i, 10))
		return nil
	}
	*u = UserID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers, everything else as strings.
func (u UserID) MarshalJSON() ([]byte, error) {
	if i, err := strconv.ParseInt(string(u), 10, 64); err == nil {
		return []byte(strconv.FormatInt(i, 10)), nil
	}
	return json.Marshal(string(u))
}

// Empty reports ids clients send when they have none: "" and 0.
func (u UserID) Empty() bool {
	return u == "" || u == "0"
}

func (u UserID) Int64() (int64, bool) {
	i, err := strconv.ParseInt(string(u), 10, 64)
	return i, err == nil
}

type Entry struct {
	UserID    UserID `json:"userId"`
	FirstName string `json:"firstName"`
	Score     int64  `json:"score"`
	LevelName string `json:"levelName"`
	LevelIcon string `json:"levelIcon"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Submission is one score report from a client.
type Submission struct {
	UserID    UserID `json:"userId"`
	FirstName string `json:"firstName"`
	Score     *int64 `json:"score"`
	LevelName string `json:"levelName"`
	LevelIcon string `json:"levelIcon"`
}

// Upsert merges one score report into entries. An existing entry is replaced only when the
// new score is at least the stored one; empty metadata keeps the stored value.
// The result is sorted by score, highest first, and cut to maxSize.
func Upsert(entries []Entry, userID UserID, firstName string, score int64, levelName, levelIcon string, now time.Time, maxSize int) []Entry {
	ts := now.UnixMilli()

	idx := -1
	for i := range entries {
		if entries[i].UserID == userID {
			idx = i
			break
		}
	}

	if idx >= 0 {
		cur := entries[idx]
		if score >= cur.Score {
			entries[idx] = Entry{
				UserID:    cur.UserID,
				FirstName: orDefault(firstName, cur.FirstName),
				Score:     score,
				LevelName: orDefault(levelName, cur.LevelName),
				LevelIcon: orDefault(levelIcon, cur.LevelIcon),
				UpdatedAt: ts,
			}
		}
	} else {
		entries = append(entries, Entry{
			UserID:    userID,
			FirstName: orDefault(firstName, DefaultFirstName),
			Score:     score,
			LevelName: orDefault(levelName, DefaultLevelName),
			LevelIcon: orDefault(levelIcon, DefaultLevelIcon),
			UpdatedAt: ts,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if maxSize > 0 && len(entries) > maxSize {
		entries = entries[:maxSize]
	}
	return entries
}

// Rank is the 1-based position of userID, or 0 when it is not on the board.
func Rank(entries []Entry, userID UserID) int {
	for i := range entries {
		if entries[i].UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Top returns at most n leading entries.
func Top(entries []Entry, n int) []Entry {
	if n >= 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
