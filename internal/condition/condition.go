// Package condition evaluates typed unlock predicates against a user's
// progression snapshot. Evaluation is pure: no I/O, no side effects.
package condition

import "errors"

// ErrUnsupportedKind is returned for a condition kind the evaluator does not
// know. Callers treat such conditions as permanently unmet.
var ErrUnsupportedKind = errors.New("unsupported condition kind")

// Kind identifies a condition variant.
type Kind string

const (
	// KindLevel requires the user's level to reach Target.
	KindLevel Kind = "level"
	// KindExerciseCount requires completed exercises to reach Target,
	// either within a single level (Level > 0) or cumulatively (Level == 0).
	KindExerciseCount Kind = "exercise_count"
	// KindDayCount requires the number of completed curriculum days to reach Target.
	KindDayCount Kind = "day_count"
	// KindStreak requires the current streak to reach Target consecutive days.
	KindStreak Kind = "streak"
	// KindAll is met when every sub-condition in All is met.
	KindAll Kind = "all"
)

// Condition is a typed predicate over progression metrics.
type Condition struct {
	Kind   Kind        `yaml:"kind" json:"kind"`
	Target int         `yaml:"target,omitempty" json:"target,omitempty"`
	Level  int         `yaml:"level,omitempty" json:"level,omitempty"`
	All    []Condition `yaml:"all,omitempty" json:"all,omitempty"`
}

// Snapshot is the read-only view of a user's progression metrics that
// conditions are evaluated against.
type Snapshot struct {
	Level            int
	ExercisesByLevel map[int]int
	DaysCompleted    int
	CurrentStreak    int
	LongestStreak    int
}

// Result reports whether a condition is met and how far along it is.
type Result struct {
	Met     bool `json:"met"`
	Current int  `json:"current"`
	Target  int  `json:"target"`
}

// Evaluate checks a single condition against a snapshot. An unknown kind
// returns an unmet Result together with ErrUnsupportedKind; it never panics.
// A metric absent from the snapshot counts as zero.
func Evaluate(c Condition, snap Snapshot) (Result, error) {
	switch c.Kind {
	case KindLevel:
		return threshold(snap.Level, c.Target), nil
	case KindExerciseCount:
		return threshold(exerciseCount(c, snap), c.Target), nil
	case KindDayCount:
		return threshold(snap.DaysCompleted, c.Target), nil
	case KindStreak:
		return threshold(snap.CurrentStreak, c.Target), nil
	case KindAll:
		return evaluateAll(c.All, snap)
	default:
		return Result{Met: false, Current: 0, Target: c.Target}, ErrUnsupportedKind
	}
}

func exerciseCount(c Condition, snap Snapshot) int {
	if c.Level > 0 {
		return snap.ExercisesByLevel[c.Level]
	}
	total := 0
	for _, n := range snap.ExercisesByLevel {
		total += n
	}
	return total
}

// evaluateAll reports progress as the number of met sub-conditions out of the
// total. A sub-condition with an unsupported kind poisons the composite: the
// composite stays unmet and the error propagates so the caller can log it.
func evaluateAll(subs []Condition, snap Snapshot) (Result, error) {
	res := Result{Target: len(subs)}
	var firstErr error
	for _, sub := range subs {
		r, err := Evaluate(sub, snap)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if r.Met {
			res.Current++
		}
	}
	res.Met = firstErr == nil && res.Current == res.Target && len(subs) > 0
	return res, firstErr
}

func threshold(current, target int) Result {
	return Result{
		Met:     current >= target,
		Current: current,
		Target:  target,
	}
}
