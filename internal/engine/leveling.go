package engine

// The experience formula lives here and nowhere else: every component that
// needs it calls these functions rather than restating the literals.

const (
	baseExperience   = 50
	durationStepMins = 10
	durationStepExp  = 5
	ratingExp        = 20

	// MaxRating bounds the caller-supplied session rating.
	MaxRating = 5
)

// ExperienceGain returns the experience awarded for one training session:
// a flat base, plus a bonus per full ten minutes trained, plus the rating
// bonus. There is no random component.
func ExperienceGain(durationMinutes, rating int) int {
	return baseExperience + durationMinutes/durationStepMins*durationStepExp + rating*ratingExp
}
