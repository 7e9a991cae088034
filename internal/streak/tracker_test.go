package streak_test

import (
	"errors"
	"testing"
	"time"

	"github.com/skillforge/engine/internal/streak"
)

var today = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func trackerAt(t time.Time) *streak.Tracker {
	return streak.NewTracker(streak.FixedClock{Time: t})
}

func TestMarkActive_FirstEver(t *testing.T) {
	upd := trackerAt(today).MarkActive(streak.State{})

	if upd.State.Current != 1 || upd.State.Longest != 1 {
		t.Errorf("State = {current=%d, longest=%d}, want {1, 1}", upd.State.Current, upd.State.Longest)
	}
	if !upd.Extended {
		t.Error("first activity should extend the streak")
	}
	if !upd.State.LastActiveDate.Equal(streak.DayOf(today)) {
		t.Errorf("LastActiveDate = %v, want %v", upd.State.LastActiveDate, streak.DayOf(today))
	}
}

func TestMarkActive_ConsecutiveDayExtends(t *testing.T) {
	s := streak.State{
		Current:        5,
		Longest:        5,
		LastActiveDate: streak.DayOf(today.AddDate(0, 0, -1)),
	}

	upd := trackerAt(today).MarkActive(s)
	if upd.State.Current != 6 {
		t.Errorf("Current = %d, want 6", upd.State.Current)
	}
	if upd.State.Longest != 6 {
		t.Errorf("Longest = %d, want 6", upd.State.Longest)
	}
}

func TestMarkActive_SameDayIsNoOp(t *testing.T) {
	s := streak.State{Current: 4, Longest: 9, LastActiveDate: streak.DayOf(today)}

	upd := trackerAt(today).MarkActive(s)
	if upd.Extended {
		t.Error("same-day activity should not extend the streak")
	}
	if upd.State != s {
		t.Errorf("State = %+v, want unchanged %+v", upd.State, s)
	}
}

func TestMarkActive_GapStartsOver(t *testing.T) {
	s := streak.State{
		Current:        12,
		Longest:        12,
		LastActiveDate: streak.DayOf(today.AddDate(0, 0, -4)),
	}

	upd := trackerAt(today).MarkActive(s)
	if upd.State.Current != 1 {
		t.Errorf("Current = %d, want 1 after a gap", upd.State.Current)
	}
	if upd.State.Longest != 12 {
		t.Errorf("Longest = %d, want 12 retained", upd.State.Longest)
	}
}

func TestObserve_LazyRolloverResetsCurrent(t *testing.T) {
	// Two missed days: the streak is broken at read time.
	s := streak.State{
		Current:        5,
		Longest:        9,
		LastActiveDate: streak.DayOf(today.AddDate(0, 0, -3)),
	}

	got := trackerAt(today).Observe(s)
	if got.Current != 0 {
		t.Errorf("Current = %d, want 0", got.Current)
	}
	if got.Longest != 9 {
		t.Errorf("Longest = %d, want 9 unchanged", got.Longest)
	}
}

func TestObserve_YesterdayStillCounts(t *testing.T) {
	s := streak.State{Current: 5, Longest: 5, LastActiveDate: streak.DayOf(today.AddDate(0, 0, -1))}

	got := trackerAt(today).Observe(s)
	if got.Current != 5 {
		t.Errorf("Current = %d, want 5 (yesterday active, streak not yet broken)", got.Current)
	}
}

func TestObserve_NeverActive(t *testing.T) {
	got := trackerAt(today).Observe(streak.State{})
	if got.Current != 0 || got.Longest != 0 {
		t.Errorf("State = %+v, want zero state", got)
	}
}

func TestLongestNeverDecreases(t *testing.T) {
	tr := trackerAt(today)
	s := streak.State{Current: 3, Longest: 8, LastActiveDate: streak.DayOf(today.AddDate(0, 0, -5))}

	s = tr.Observe(s)
	upd := tr.MarkActive(s)
	if upd.State.Longest < 8 {
		t.Errorf("Longest = %d, must never decrease below 8", upd.State.Longest)
	}
}

func TestCompleteDay_InOrder(t *testing.T) {
	completed := map[int]bool{}

	next, err := streak.CompleteDay(1, completed, 1)
	if err != nil {
		t.Fatalf("CompleteDay() error = %v", err)
	}
	if next != 2 {
		t.Errorf("pointer = %d, want 2", next)
	}
	if !completed[1] {
		t.Error("day 1 should be marked complete")
	}
}

func TestCompleteDay_OutOfOrderRejected(t *testing.T) {
	completed := map[int]bool{}

	_, err := streak.CompleteDay(1, completed, 5)
	if !errors.Is(err, streak.ErrDayNotUnlocked) {
		t.Fatalf("error = %v, want ErrDayNotUnlocked", err)
	}
	if completed[5] {
		t.Error("rejected day must not be marked complete")
	}
}

func TestCompleteDay_RepeatIsNoOp(t *testing.T) {
	completed := map[int]bool{1: true}

	next, err := streak.CompleteDay(2, completed, 1)
	if err != nil {
		t.Fatalf("CompleteDay() error = %v", err)
	}
	if next != 2 {
		t.Errorf("pointer = %d, want unchanged 2", next)
	}
}

func TestCompleteDay_OutOfRange(t *testing.T) {
	if _, err := streak.CompleteDay(1, map[int]bool{}, 0); err == nil {
		t.Error("day 0 should be rejected")
	}
	if _, err := streak.CompleteDay(1, map[int]bool{}, 91); err == nil {
		t.Error("day 91 should be rejected")
	}
}

func TestJump_MaterializesSkippedDays(t *testing.T) {
	completed := map[int]bool{1: true}

	next := streak.Jump(completed, 30)
	if next != 31 {
		t.Errorf("pointer = %d, want 31", next)
	}
	for d := 1; d <= 30; d++ {
		if !completed[d] {
			t.Fatalf("day %d should be complete after jump", d)
		}
	}
}

func TestShortCoursePointer(t *testing.T) {
	completed := map[int]bool{}
	if got := streak.ShortCoursePointer(completed); got != 1 {
		t.Errorf("pointer = %d, want 1", got)
	}

	for d := 1; d <= 12; d++ {
		completed[d] = true
	}
	if got := streak.ShortCoursePointer(completed); got != 13 {
		t.Errorf("pointer = %d, want 13", got)
	}

	for d := 1; d <= streak.ShortCourseDays; d++ {
		completed[d] = true
	}
	if got := streak.ShortCoursePointer(completed); got != streak.ShortCourseDays+1 {
		t.Errorf("pointer = %d, want %d", got, streak.ShortCourseDays+1)
	}
}
