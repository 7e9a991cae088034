package content

import (
	"github.com/skillforge/engine/internal/condition"
	"github.com/skillforge/engine/internal/unlock"
)

// Exercise is a single training exercise within a level. Answer is the
// expected response used when the exercise appears in a skip-level challenge.
type Exercise struct {
	ID     string `yaml:"id"`
	Prompt string `yaml:"prompt"`
	Answer string `yaml:"answer"`
}

// Level is an immutable curriculum level definition. ThroughDay is the
// curriculum day on which the level's training is scheduled to finish; the
// skip-level path uses it to fast-forward the day pointer.
type Level struct {
	Number     int        `yaml:"number"`
	Name       string     `yaml:"name"`
	ThroughDay int        `yaml:"through_day"`
	Exercises  []Exercise `yaml:"exercises"`
}

// Achievement is an immutable achievement definition.
type Achievement struct {
	ID        string              `yaml:"id"`
	Name      string              `yaml:"name"`
	Category  string              `yaml:"category"`
	Condition condition.Condition `yaml:"condition"`
	ExpReward int                 `yaml:"exp_reward"`
}

// DayEntry is the read-only content for one day of the 90-day curriculum.
type DayEntry struct {
	Day        int      `yaml:"day"`
	Title      string   `yaml:"title"`
	Objectives []string `yaml:"objectives"`
}

type skillsFile struct {
	Skills []unlock.Node `yaml:"skills"`
}

type achievementsFile struct {
	Achievements []Achievement `yaml:"achievements"`
}

type levelsFile struct {
	Levels []Level `yaml:"levels"`
}

type curriculumFile struct {
	Days []DayEntry `yaml:"days"`
}
