package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressStore persists per-user progression state and the append-only
// training log. Implementations must serialize UpdateProgress per user:
// two concurrent updates for the same user must not interleave. Updates are
// all-or-nothing: the state change and the record append commit together.
type ProgressStore interface {
	// GetProgress returns the user's progress, or a fresh starting state if
	// the user has never trained.
	GetProgress(ctx context.Context, userID string) (*UserProgress, error)

	// UpdateProgress runs apply against the user's current progress inside
	// an exclusive per-user scope. A non-empty idempotencyKey that matches
	// an existing record fails with ErrDuplicateSubmission before apply
	// runs. The record returned by apply is appended atomically with the
	// state change. Any error from apply aborts the update untouched.
	UpdateProgress(ctx context.Context, userID, idempotencyKey string, apply func(p *UserProgress) (*TrainingRecord, error)) (*UserProgress, error)

	// FindRecord looks up a training record by idempotency key.
	FindRecord(ctx context.Context, userID, idempotencyKey string) (*TrainingRecord, bool, error)

	// ListRecords returns the user's training log, oldest first.
	ListRecords(ctx context.Context, userID string) ([]TrainingRecord, error)
}

// MemoryStore is an in-memory ProgressStore. Used in tests and for running
// the engine without external infrastructure.
type MemoryStore struct {
	mu       sync.Mutex
	progress map[string]*UserProgress
	records  map[string][]TrainingRecord
	userMu   map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]*UserProgress),
		records:  make(map[string][]TrainingRecord),
		userMu:   make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) lockUser(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.userMu[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.userMu[userID] = mu
	}
	return mu
}

func (s *MemoryStore) GetProgress(_ context.Context, userID string) (*UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.progress[userID]; ok {
		return p.Clone(), nil
	}
	return NewUserProgress(userID), nil
}

func (s *MemoryStore) UpdateProgress(_ context.Context, userID, idempotencyKey string, apply func(p *UserProgress) (*TrainingRecord, error)) (*UserProgress, error) {
	userLock := s.lockUser(userID)
	userLock.Lock()
	defer userLock.Unlock()

	s.mu.Lock()
	current, ok := s.progress[userID]
	if !ok {
		current = NewUserProgress(userID)
	}
	if idempotencyKey != "" {
		for _, r := range s.records[userID] {
			if r.IdempotencyKey == idempotencyKey {
				s.mu.Unlock()
				return nil, ErrDuplicateSubmission
			}
		}
	}
	work := current.Clone()
	s.mu.Unlock()

	rec, err := apply(work)
	if err != nil {
		return nil, err
	}

	work.Version++
	work.UpdatedAt = time.Now()

	s.mu.Lock()
	s.progress[userID] = work
	if rec != nil {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		rec.UserID = userID
		s.records[userID] = append(s.records[userID], *rec)
	}
	s.mu.Unlock()

	return work.Clone(), nil
}

func (s *MemoryStore) FindRecord(_ context.Context, userID, idempotencyKey string) (*TrainingRecord, bool, error) {
	if idempotencyKey == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records[userID] {
		if r.IdempotencyKey == idempotencyKey {
			rec := r
			return &rec, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) ListRecords(_ context.Context, userID string) ([]TrainingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrainingRecord{}, s.records[userID]...), nil
}
