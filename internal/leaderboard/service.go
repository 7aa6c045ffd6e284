package leaderboard

import (
	"context"
	"errors"
	"time"

	"morentube/internal/blobstore"
)

var (
	ErrMissingFields = errors.New("missing userId or score")
	ErrNegativeScore = errors.New("score must not be negative")
)

type Result struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Rank    int    `json:"rank"`
}

// Service reads and writes the leaderboard document.
type Service struct {
	doc     *blobstore.Document
	maxSize int

	Now func() time.Time
	// OnChange receives the full board after every successful write.
	OnChange func(entries []Entry)
}

func NewService(store blobstore.Store, maxSize int) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{
		doc:     blobstore.NewDocument(store, FileName),
		maxSize: maxSize,
		Now:     time.Now,
	}
}

func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	if sub.UserID.Empty() || sub.Score == nil {
		return Result{}, ErrMissingFields
	}
	if *sub.Score < 0 {
		return Result{}, ErrNegativeScore
	}

	var entries []Entry
	blob, _, err := s.doc.Update(ctx, &entries, func() (bool, error) {
		entries = Upsert(entries, sub.UserID, sub.FirstName, *sub.Score, sub.LevelName, sub.LevelIcon, s.Now(), s.maxSize)
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}

	if s.OnChange != nil {
		s.OnChange(entries)
	}
	return Result{Success: true, URL: blob.URL, Rank: Rank(entries, sub.UserID)}, nil
}

// Top returns the n best entries; an absent board is empty.
func (s *Service) Top(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	if _, err := s.doc.Load(ctx, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Top(entries, n), nil
}
