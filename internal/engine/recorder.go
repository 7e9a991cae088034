// Package engine implements the progression engine: the authoritative state
// machine owning a user's level, experience, completion records, streaks and
// achievement state. The Recorder is the single mutation entry point; every
// write is serialized per user and commits atomically or not at all.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillforge/engine/internal/challenge"
	"github.com/skillforge/engine/internal/condition"
	"github.com/skillforge/engine/internal/content"
	"github.com/skillforge/engine/internal/platform/cache"
	"github.com/skillforge/engine/internal/platform/metrics"
	"github.com/skillforge/engine/internal/streak"
)

const defaultSnapshotTTL = 5 * time.Minute

// RecorderConfig holds dependencies for the recorder.
type RecorderConfig struct {
	Store       ProgressStore
	Library     *content.Library
	Clock       streak.Clock
	Events      EventLogger
	Cache       *cache.Cache     // optional raw-progress cache
	Metrics     *metrics.Metrics // optional
	SnapshotTTL time.Duration    // cached progress lifetime (default 5m)
}

// Recorder is the progression engine's write path and snapshot builder.
type Recorder struct {
	store       ProgressStore
	library     *content.Library
	clock       streak.Clock
	tracker     *streak.Tracker
	validator   *challenge.Validator
	events      EventLogger
	cache       *cache.Cache
	metrics     *metrics.Metrics
	snapshotTTL time.Duration
}

// NewRecorder creates a recorder. The content library is required; store,
// clock and event logger fall back to in-memory/no-op defaults.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Library == nil {
		return nil, fmt.Errorf("content library is required")
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = streak.SystemClock{}
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	ttl := cfg.SnapshotTTL
	if ttl == 0 {
		ttl = defaultSnapshotTTL
	}
	return &Recorder{
		store:       store,
		library:     cfg.Library,
		clock:       clock,
		tracker:     streak.NewTracker(clock),
		validator:   challenge.NewValidator(cfg.Library),
		events:      events,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		snapshotTTL: ttl,
	}, nil
}

// Progress returns the resolved snapshot for a user: raw progress with lazy
// streak rollover applied, recomputed unlock statuses and achievement
// progress. Reads take no lock; staleness self-corrects on the next read.
// The cache holds raw progress, not the resolved view, so rollover and graph
// resolution run on every read and a cached entry crossing a day boundary
// never reports a streak that already broke.
func (r *Recorder) Progress(ctx context.Context, userID string) (Snapshot, error) {
	if r.cache != nil {
		var cached UserProgress
		if err := r.cache.GetJSON(ctx, progressKey(userID), &cached); err == nil {
			cached.Streak = r.tracker.Observe(cached.Streak)
			return r.buildSnapshot(&cached), nil
		} else if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("progress cache read failed", "user_id", userID, "error", err)
		}
	}

	p, err := r.store.GetProgress(ctx, userID)
	if err != nil {
		r.countStoreError()
		return Snapshot{}, err
	}
	p.Streak = r.tracker.Observe(p.Streak)
	r.cacheProgress(ctx, p)

	return r.buildSnapshot(p), nil
}

// Records returns the user's append-only training log.
func (r *Recorder) Records(ctx context.Context, userID string) ([]TrainingRecord, error) {
	return r.store.ListRecords(ctx, userID)
}

// Questions returns the skip-level challenge question set for a target level.
func (r *Recorder) Questions(targetLevel int) ([]content.Exercise, error) {
	return r.validator.Questions(targetLevel)
}

// SubmitTraining processes one training submission: it appends the training
// record, awards experience, advances level/day/streak state and materializes
// newly completed achievements, all in one atomic per-user update. A
// duplicate idempotency key returns the current snapshot with no changes.
func (r *Recorder) SubmitTraining(ctx context.Context, userID string, payload TrainingPayload) (Snapshot, ScoreChanges, error) {
	if err := r.validatePayload(payload); err != nil {
		r.countSubmission("rejected")
		return Snapshot{}, ScoreChanges{}, err
	}

	var changes ScoreChanges
	updated, err := r.store.UpdateProgress(ctx, userID, payload.IdempotencyKey, func(p *UserProgress) (*TrainingRecord, error) {
		changes = ScoreChanges{LevelBefore: p.Level, LevelAfter: p.Level}

		if payload.ExerciseID != "" {
			if err := r.applyExercise(p, payload.ExerciseID); err != nil {
				return nil, err
			}
		} else {
			next, err := streak.CompleteDay(p.CurrentDay, p.CompletedDays, payload.DayNumber)
			if err != nil {
				return nil, err
			}
			p.CurrentDay = next
		}

		gain := ExperienceGain(payload.DurationMinutes, payload.Rating)
		p.Experience += gain
		changes.Experience = gain

		upd := r.tracker.MarkActive(p.Streak)
		p.Streak = upd.State
		changes.StreakExtended = upd.Extended

		for _, def := range r.materializeAchievements(p) {
			p.Experience += def.ExpReward
			changes.Experience += def.ExpReward
			changes.NewAchievements = append(changes.NewAchievements, def.ID)
		}
		changes.LevelAfter = p.Level

		return &TrainingRecord{
			IdempotencyKey:  payload.IdempotencyKey,
			DayNumber:       payload.DayNumber,
			ExerciseID:      payload.ExerciseID,
			DurationMinutes: payload.DurationMinutes,
			Rating:          payload.Rating,
			Notes:           payload.Notes,
		}, nil
	})

	if errors.Is(err, ErrDuplicateSubmission) {
		r.countSubmission("duplicate")
		snap, err := r.Progress(ctx, userID)
		if err != nil {
			return Snapshot{}, ScoreChanges{}, err
		}
		return snap, ScoreChanges{
			LevelBefore: snap.Progress.Level,
			LevelAfter:  snap.Progress.Level,
			Duplicate:   true,
		}, nil
	}
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			r.countStoreError()
		}
		r.countSubmission("rejected")
		return Snapshot{}, ScoreChanges{}, err
	}

	r.countSubmission("accepted")
	r.emitMilestones(userID, changes)

	slog.Info("training recorded",
		"user_id", userID,
		"experience", changes.Experience,
		"level", changes.LevelAfter,
		"streak", updated.Streak.Current,
	)

	r.invalidateProgress(ctx, userID)
	r.cacheProgress(ctx, updated)
	return r.buildSnapshot(updated), changes, nil
}

// SkipLevel scores a skip-level challenge and, on a pass, fast-forwards the
// user past the intermediate levels through the same serialized write path
// as SubmitTraining. A failed challenge mutates nothing and may be retried.
func (r *Recorder) SkipLevel(ctx context.Context, userID string, targetLevel int, answers []challenge.Answer) (challenge.Outcome, *Snapshot, error) {
	if _, ok := r.library.Level(targetLevel); !ok {
		return challenge.Outcome{}, nil, fmt.Errorf("%w: level %d is not defined", ErrInvalidPayload, targetLevel)
	}

	p, err := r.store.GetProgress(ctx, userID)
	if err != nil {
		r.countStoreError()
		return challenge.Outcome{}, nil, err
	}
	if targetLevel <= p.Level {
		return challenge.Outcome{}, nil, fmt.Errorf("%w: level %d, currently at %d", ErrAlreadyReached, targetLevel, p.Level)
	}

	outcome, err := r.validator.Score(targetLevel, answers)
	if err != nil {
		return challenge.Outcome{}, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if !outcome.Passed {
		r.countSkip("failed")
		slog.Info("skip-level challenge failed",
			"user_id", userID,
			"target_level", targetLevel,
			"score", outcome.Score,
		)
		return outcome, nil, nil
	}

	var unlocked []string
	updated, err := r.store.UpdateProgress(ctx, userID, "", func(p *UserProgress) (*TrainingRecord, error) {
		// Re-check under the per-user lock: a concurrent submission may have
		// advanced the level since the precondition read.
		if targetLevel <= p.Level {
			return nil, fmt.Errorf("%w: level %d, currently at %d", ErrAlreadyReached, targetLevel, p.Level)
		}

		// Roll the streak over before any condition sees it. A streak that
		// broke since the last write must not satisfy streak-kind
		// achievements here.
		p.Streak = r.tracker.Observe(p.Streak)

		for lvl := p.Level; lvl < targetLevel; lvl++ {
			total := r.library.TotalExercises(lvl)
			if p.CompletedByLevel[lvl] > total {
				return nil, fmt.Errorf("%w: level %d has %d completed of %d", ErrStateInvariant, lvl, p.CompletedByLevel[lvl], total)
			}
			p.CompletedByLevel[lvl] = total
		}
		p.Level = targetLevel

		if prev, ok := r.library.Level(targetLevel - 1); ok && prev.ThroughDay > 0 {
			p.CurrentDay = streak.Jump(p.CompletedDays, prev.ThroughDay)
		}

		unlocked = unlocked[:0]
		for _, def := range r.materializeAchievements(p) {
			p.Experience += def.ExpReward
			unlocked = append(unlocked, def.ID)
		}

		return &TrainingRecord{
			Notes: fmt.Sprintf("skip-level challenge passed: level %d, score %d%%", targetLevel, outcome.Score),
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			r.countStoreError()
		}
		return challenge.Outcome{}, nil, err
	}

	r.countSkip("passed")
	r.logEvent(Event{
		UserID:    userID,
		EventType: EventSkipPassed,
		Data:      map[string]any{"target_level": targetLevel, "score": outcome.Score},
	})
	for _, id := range unlocked {
		r.logEvent(Event{
			UserID:    userID,
			EventType: EventAchievementUnlocked,
			Data:      map[string]any{"achievement_id": id},
		})
	}

	slog.Info("skip-level challenge passed",
		"user_id", userID,
		"target_level", targetLevel,
		"score", outcome.Score,
		"current_day", updated.CurrentDay,
	)

	r.invalidateProgress(ctx, userID)
	r.cacheProgress(ctx, updated)
	snap := r.buildSnapshot(updated)
	return outcome, &snap, nil
}

func (r *Recorder) validatePayload(payload TrainingPayload) error {
	if payload.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidPayload)
	}
	if payload.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration must be >= 0", ErrInvalidPayload)
	}
	if payload.Rating < 0 || payload.Rating > MaxRating {
		return fmt.Errorf("%w: rating must be between 0 and %d", ErrInvalidPayload, MaxRating)
	}
	hasDay := payload.DayNumber != 0
	hasExercise := payload.ExerciseID != ""
	if hasDay == hasExercise {
		return fmt.Errorf("%w: exactly one of day_number or exercise_id must be set", ErrInvalidPayload)
	}
	if hasDay && (payload.DayNumber < 1 || payload.DayNumber > streak.CurriculumDays) {
		return fmt.Errorf("%w: day_number must be within 1..%d", ErrInvalidPayload, streak.CurriculumDays)
	}
	if hasExercise {
		if _, _, ok := r.library.FindExercise(payload.ExerciseID); !ok {
			return fmt.Errorf("%w: unknown exercise %q", ErrInvalidPayload, payload.ExerciseID)
		}
	}
	return nil
}

// applyExercise increments the completed counter for the exercise's level
// and advances the user's level when the current level is fully trained.
// Leveling never skips a level in one submission.
func (r *Recorder) applyExercise(p *UserProgress, exerciseID string) error {
	_, lvl, ok := r.library.FindExercise(exerciseID)
	if !ok {
		return fmt.Errorf("%w: unknown exercise %q", ErrInvalidPayload, exerciseID)
	}

	total := r.library.TotalExercises(lvl)
	if p.CompletedByLevel[lvl]+1 > total {
		return fmt.Errorf("%w: level %d already has all %d exercises completed", ErrStateInvariant, lvl, total)
	}
	p.CompletedByLevel[lvl]++

	if lvl == p.Level && p.CompletedByLevel[lvl] == total && p.Level < r.library.MaxLevel() {
		p.Level++
	}
	return nil
}

// materializeAchievements evaluates every achievement definition against the
// updated progress and completes the newly met ones. Completed achievements
// are immutable: re-evaluation is a no-op. Returns the newly completed
// definitions so the caller can award their experience.
func (r *Recorder) materializeAchievements(p *UserProgress) []content.Achievement {
	cs := p.ConditionSnapshot()
	var newly []content.Achievement
	for _, def := range r.library.Achievements() {
		state := p.Achievements[def.ID]
		if state.Completed {
			continue
		}
		res, err := condition.Evaluate(def.Condition, cs)
		if err != nil {
			slog.Warn("achievement condition degraded to unmet",
				"achievement_id", def.ID,
				"kind", string(def.Condition.Kind),
				"error", err,
			)
			continue
		}
		state.Progress = res.Current
		if res.Met {
			state.Completed = true
			ts := r.clock.Now()
			state.UnlockedAt = &ts
			newly = append(newly, def)
		}
		p.Achievements[def.ID] = state
	}
	return newly
}

// buildSnapshot recomputes the whole read model from raw progress. Total
// recomputation on every read keeps unlock statuses honest after backward
// data corrections; node counts are small enough that this is cheap.
func (r *Recorder) buildSnapshot(p *UserProgress) Snapshot {
	cs := p.ConditionSnapshot()
	skills := r.library.Graph().Resolve(cs)

	defs := r.library.Achievements()
	views := make([]AchievementView, 0, len(defs))
	for _, def := range defs {
		view := AchievementView{
			ID:        def.ID,
			Name:      def.Name,
			Category:  def.Category,
			ExpReward: def.ExpReward,
		}
		if state, ok := p.Achievements[def.ID]; ok && state.Completed {
			view.Completed = true
			view.UnlockedAt = state.UnlockedAt
			view.Target = state.Progress
			if res, err := condition.Evaluate(def.Condition, cs); err == nil {
				view.Target = res.Target
			}
			// A completed badge always reads full, even after the metric
			// moved on (or back) since completion.
			view.Progress = view.Target
		} else if res, err := condition.Evaluate(def.Condition, cs); err == nil {
			view.Progress = res.Current
			view.Target = res.Target
		}
		views = append(views, view)
	}

	return Snapshot{
		Progress:       *p,
		ShortCourseDay: streak.ShortCoursePointer(p.CompletedDays),
		Skills:         skills,
		Achievements:   views,
	}
}

func (r *Recorder) emitMilestones(userID string, changes ScoreChanges) {
	if changes.LevelAfter > changes.LevelBefore {
		if r.metrics != nil {
			r.metrics.LevelUps.Inc()
		}
		r.logEvent(Event{
			UserID:    userID,
			EventType: EventLevelUp,
			Data:      map[string]any{"from": changes.LevelBefore, "to": changes.LevelAfter},
		})
	}
	for _, id := range changes.NewAchievements {
		if r.metrics != nil {
			r.metrics.Achievements.Inc()
		}
		r.logEvent(Event{
			UserID:    userID,
			EventType: EventAchievementUnlocked,
			Data:      map[string]any{"achievement_id": id},
		})
	}
}

func (r *Recorder) logEvent(event Event) {
	if err := r.events.LogEvent(event); err != nil {
		slog.Warn("event logging failed", "type", event.EventType, "error", err)
	}
}

func (r *Recorder) cacheProgress(ctx context.Context, p *UserProgress) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, progressKey(p.UserID), p, r.snapshotTTL); err != nil {
		slog.Warn("progress cache write failed", "user_id", p.UserID, "error", err)
	}
}

func (r *Recorder) invalidateProgress(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, progressKey(userID)); err != nil {
		slog.Warn("progress cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (r *Recorder) countSubmission(result string) {
	if r.metrics != nil {
		r.metrics.Submissions.WithLabelValues(result).Inc()
	}
}

func (r *Recorder) countSkip(result string) {
	if r.metrics != nil {
		r.metrics.SkipChallenges.WithLabelValues(result).Inc()
	}
}

func (r *Recorder) countStoreError() {
	if r.metrics != nil {
		r.metrics.StoreErrors.Inc()
	}
}

func progressKey(userID string) string {
	return "progress:" + userID
}
