// Package streak computes consecutive-day training streaks and advances the
// linear curriculum pointer. Streak breaks are detected lazily: there is no
// background job, a missed day is noticed the next time state is read or
// written, by comparing the last active date against the clock's current day.
package streak

import (
	"errors"
	"time"
)

// Curriculum lengths. The 30-day short course is a prefix of the 90-day
// curriculum; its pointer is derived from the same completed-day set.
const (
	CurriculumDays  = 90
	ShortCourseDays = 30
)

// ErrDayNotUnlocked rejects completing a curriculum day out of order.
var ErrDayNotUnlocked = errors.New("curriculum day is not unlocked yet")

// State is a user's streak counters. LastActiveDate is a calendar day
// (midnight); it is zero when the user has never trained.
type State struct {
	Current        int       `json:"current"`
	Longest        int       `json:"longest"`
	LastActiveDate time.Time `json:"last_active_date,omitzero"`
}

// Update is the result of marking a day active.
type Update struct {
	State    State
	Extended bool // true when the current streak grew
}

// Tracker evaluates streak state against a clock.
type Tracker struct {
	clock Clock
}

// NewTracker creates a tracker. A nil clock defaults to UTC wall time.
func NewTracker(clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tracker{clock: clock}
}

// Observe applies lazy day-rollover to a state without recording activity.
// If more than one calendar day passed since the last active day, the current
// streak resets to zero. Longest is never touched.
func (t *Tracker) Observe(s State) State {
	if s.LastActiveDate.IsZero() || s.Current == 0 {
		return s
	}
	if daysBetween(s.LastActiveDate, t.clock.Now()) > 1 {
		s.Current = 0
	}
	return s
}

// MarkActive records training activity at the clock's current day. Same-day
// repeats are no-ops; an active previous day extends the streak; any larger
// gap starts a new streak of one. Longest is monotonically non-decreasing.
func (t *Tracker) MarkActive(s State) Update {
	today := DayOf(t.clock.Now())

	if !s.LastActiveDate.IsZero() && daysBetween(s.LastActiveDate, today) == 0 {
		return Update{State: s}
	}

	switch {
	case !s.LastActiveDate.IsZero() && daysBetween(s.LastActiveDate, today) == 1:
		s.Current++
	default:
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastActiveDate = today

	return Update{State: s, Extended: true}
}

// CompleteDay marks a curriculum day complete and advances the pointer.
// Only the day the pointer rests on may be completed; anything else is
// rejected with ErrDayNotUnlocked (skip-level validation goes through Jump
// instead). Re-completing an already-complete day is a no-op.
func CompleteDay(currentDay int, completed map[int]bool, day int) (int, error) {
	if day < 1 || day > CurriculumDays {
		return currentDay, ErrDayNotUnlocked
	}
	if completed[day] {
		return currentDay, nil
	}
	if day != currentDay {
		return currentDay, ErrDayNotUnlocked
	}
	completed[day] = true
	return currentDay + 1, nil
}

// Jump materializes completion for every day up to and including targetDay
// and returns the new pointer. Callers must only invoke this after a
// validated skip-level challenge.
func Jump(completed map[int]bool, targetDay int) int {
	if targetDay > CurriculumDays {
		targetDay = CurriculumDays
	}
	for d := 1; d <= targetDay; d++ {
		completed[d] = true
	}
	return targetDay + 1
}

// ShortCoursePointer derives the 30-day course pointer from the completed
// set: the first incomplete day, or ShortCourseDays+1 when finished.
func ShortCoursePointer(completed map[int]bool) int {
	for d := 1; d <= ShortCourseDays; d++ {
		if !completed[d] {
			return d
		}
	}
	return ShortCourseDays + 1
}
