// Package challenge scores skip-level challenges: a one-shot assessment over
// a fixed question set drawn from the target level's real exercises. Scoring
// is pure; applying a passed challenge to user state is the recorder's job.
package challenge

import (
	"fmt"
	"strings"

	"github.com/skillforge/engine/internal/content"
)

const (
	// PassThreshold is the minimum score (percent of correct answers)
	// required to pass a skip-level challenge.
	PassThreshold = 80
	// QuestionCount caps the size of the challenge question set.
	QuestionCount = 5
)

// Answer is a candidate response to one challenge question.
type Answer struct {
	ExerciseID string `json:"exercise_id"`
	Response   string `json:"response"`
}

// Outcome is the result of scoring a challenge attempt.
type Outcome struct {
	Passed  bool `json:"passed"`
	Score   int  `json:"score"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
}

// Validator scores challenge attempts against the content library.
type Validator struct {
	library *content.Library
}

// NewValidator creates a validator backed by a content library.
func NewValidator(library *content.Library) *Validator {
	return &Validator{library: library}
}

// Questions returns the fixed question set for a target level: the first
// QuestionCount exercises of that level, in content order. Deterministic so
// a retried attempt sees the same set.
func (v *Validator) Questions(targetLevel int) ([]content.Exercise, error) {
	lv, ok := v.library.Level(targetLevel)
	if !ok {
		return nil, fmt.Errorf("level %d is not defined", targetLevel)
	}
	if len(lv.Exercises) == 0 {
		return nil, fmt.Errorf("level %d has no exercises to draw from", targetLevel)
	}
	set := lv.Exercises
	if len(set) > QuestionCount {
		set = set[:QuestionCount]
	}
	return set, nil
}

// Score grades an attempt against the target level's question set. Answers
// are matched by exercise ID; missing or extra answers count as wrong.
func (v *Validator) Score(targetLevel int, answers []Answer) (Outcome, error) {
	set, err := v.Questions(targetLevel)
	if err != nil {
		return Outcome{}, err
	}

	byID := make(map[string]string, len(answers))
	for _, a := range answers {
		byID[a.ExerciseID] = a.Response
	}

	correct := 0
	for _, q := range set {
		if resp, ok := byID[q.ID]; ok && answersMatch(resp, q.Answer) {
			correct++
		}
	}

	score := correct * 100 / len(set)
	return Outcome{
		Passed:  score >= PassThreshold,
		Score:   score,
		Correct: correct,
		Total:   len(set),
	}, nil
}

func answersMatch(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}
