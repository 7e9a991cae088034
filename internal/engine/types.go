package engine

import (
	"time"

	"github.com/skillforge/engine/internal/condition"
	"github.com/skillforge/engine/internal/streak"
	"github.com/skillforge/engine/internal/unlock"
)

// UserProgress is the authoritative mutable progression state for one user.
// It is owned exclusively by the Recorder: every mutation goes through the
// store's serialized update path.
type UserProgress struct {
	UserID           string                      `json:"user_id"`
	Level            int                         `json:"level"`
	Experience       int                         `json:"experience"`
	CompletedByLevel map[int]int                 `json:"completed_by_level"`
	CurrentDay       int                         `json:"current_day"`
	CompletedDays    map[int]bool                `json:"completed_days"`
	Streak           streak.State                `json:"streak"`
	Achievements     map[string]AchievementState `json:"achievements"`
	UpdatedAt        time.Time                   `json:"updated_at"`

	// Version is the store's optimistic-concurrency counter. Not part of the
	// user-visible state.
	Version int `json:"-"`
}

// NewUserProgress returns the starting state for a user who has never trained.
func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:           userID,
		Level:            1,
		CurrentDay:       1,
		CompletedByLevel: make(map[int]int),
		CompletedDays:    make(map[int]bool),
		Achievements:     make(map[string]AchievementState),
	}
}

// Clone deep-copies the progress so callers can mutate a working copy
// without exposing partial updates.
func (p *UserProgress) Clone() *UserProgress {
	cp := *p
	cp.CompletedByLevel = make(map[int]int, len(p.CompletedByLevel))
	for k, v := range p.CompletedByLevel {
		cp.CompletedByLevel[k] = v
	}
	cp.CompletedDays = make(map[int]bool, len(p.CompletedDays))
	for k, v := range p.CompletedDays {
		cp.CompletedDays[k] = v
	}
	cp.Achievements = make(map[string]AchievementState, len(p.Achievements))
	for k, v := range p.Achievements {
		cp.Achievements[k] = v
	}
	return &cp
}

// ConditionSnapshot projects the progress into the metric view the condition
// evaluator consumes.
func (p *UserProgress) ConditionSnapshot() condition.Snapshot {
	return condition.Snapshot{
		Level:            p.Level,
		ExercisesByLevel: p.CompletedByLevel,
		DaysCompleted:    len(p.CompletedDays),
		CurrentStreak:    p.Streak.Current,
		LongestStreak:    p.Streak.Longest,
	}
}

// AchievementState is a user's lazily-created per-achievement state.
// Once Completed it is immutable; re-evaluation is a no-op.
type AchievementState struct {
	Progress   int        `json:"progress"`
	Completed  bool       `json:"completed"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// TrainingRecord is an append-only audit log entry. Records are never
// mutated after creation; they back idempotence checks and derived stats.
type TrainingRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	DayNumber       int       `json:"day_number,omitempty"`
	ExerciseID      string    `json:"exercise_id,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Rating          int       `json:"rating"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TrainingPayload is a training submission. Exactly one of DayNumber or
// ExerciseID must be set.
type TrainingPayload struct {
	DayNumber       int    `json:"day_number,omitempty"`
	ExerciseID      string `json:"exercise_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Rating          int    `json:"rating"`
	Notes           string `json:"notes,omitempty"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// ScoreChanges is the delta a submission produced, for optimistic UI
// reconciliation on the client.
type ScoreChanges struct {
	Experience      int      `json:"experience"`
	LevelBefore     int      `json:"level_before"`
	LevelAfter      int      `json:"level_after"`
	StreakExtended  bool     `json:"streak_extended"`
	NewAchievements []string `json:"new_achievements,omitempty"`
	Duplicate       bool     `json:"duplicate,omitempty"`
}

// AchievementView is the read-model for one achievement: definition plus the
// user's current progress toward it.
type AchievementView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	ExpReward  int        `json:"exp_reward"`
	Progress   int        `json:"progress"`
	Target     int        `json:"target"`
	Completed  bool       `json:"completed"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Snapshot is the full resolved view of a user's progression: raw state plus
// recomputed unlock statuses and achievement progress.
type Snapshot struct {
	Progress       UserProgress        `json:"progress"`
	ShortCourseDay int                 `json:"short_course_day"`
	Skills         []unlock.NodeStatus `json:"skills"`
	Achievements   []AchievementView   `json:"achievements"`
}
