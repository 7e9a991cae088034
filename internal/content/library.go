// Package content loads and caches the engine's immutable reference data
// from YAML files: skill nodes, level exercise sets, achievement definitions
// and the 90-day curriculum. Content is loaded once at startup and never
// mutated by the engine.
package content

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/skillforge/engine/internal/unlock"
)

// Library holds all loaded reference data. The skill graph is validated at
// load time; a cyclic graph makes NewLibrary fail so the process refuses to
// start on corrupt content.
type Library struct {
	rootDir      string
	graph        *unlock.Graph
	levels       map[int]Level
	achievements []Achievement
	days         map[int]DayEntry
	maxLevel     int
	mu           sync.RWMutex
}

// NewLibrary loads all content under rootDir.
func NewLibrary(rootDir string) (*Library, error) {
	l := &Library{
		rootDir: rootDir,
		levels:  make(map[int]Level),
		days:    make(map[int]DayEntry),
	}

	var nodes []unlock.Node
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".skills.yaml"):
			more, err := loadSkills(path)
			if err != nil {
				return err
			}
			nodes = append(nodes, more...)
		case strings.HasSuffix(path, ".achievements.yaml"):
			return l.loadAchievements(path)
		case strings.HasSuffix(path, ".levels.yaml"):
			return l.loadLevels(path)
		case strings.HasSuffix(path, ".curriculum.yaml"):
			return l.loadCurriculum(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}

	graph, err := unlock.NewGraph(nodes)
	if err != nil {
		return nil, fmt.Errorf("building skill graph: %w", err)
	}
	l.graph = graph

	slog.Info("content loaded",
		"skills", graph.Len(),
		"levels", len(l.levels),
		"achievements", len(l.achievements),
		"curriculum_days", len(l.days),
	)
	return l, nil
}

func loadSkills(path string) ([]unlock.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f skillsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Skills, nil
}

func (l *Library) loadAchievements(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f achievementsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	l.mu.Lock()
	l.achievements = append(l.achievements, f.Achievements...)
	l.mu.Unlock()
	return nil
}

func (l *Library) loadLevels(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f levelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, lv := range f.Levels {
		if lv.Number < 1 {
			return fmt.Errorf("%s: level number must be >= 1, got %d", path, lv.Number)
		}
		if _, dup := l.levels[lv.Number]; dup {
			return fmt.Errorf("%s: duplicate level %d", path, lv.Number)
		}
		l.levels[lv.Number] = lv
		if lv.Number > l.maxLevel {
			l.maxLevel = lv.Number
		}
	}
	return nil
}

func (l *Library) loadCurriculum(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f curriculumFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	l.mu.Lock()
	for _, d := range f.Days {
		l.days[d.Day] = d
	}
	l.mu.Unlock()
	return nil
}

// Graph returns the validated skill graph.
func (l *Library) Graph() *unlock.Graph {
	return l.graph
}

// Level returns a level definition by number.
func (l *Library) Level(n int) (Level, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lv, ok := l.levels[n]
	return lv, ok
}

// TotalExercises returns the exercise count for a level, zero if unknown.
func (l *Library) TotalExercises(level int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.levels[level].Exercises)
}

// MaxLevel returns the highest defined level number.
func (l *Library) MaxLevel() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxLevel
}

// Achievements returns all achievement definitions.
func (l *Library) Achievements() []Achievement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Achievement{}, l.achievements...)
}

// Day returns the curriculum entry for a day number.
func (l *Library) Day(n int) (DayEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.days[n]
	return d, ok
}

// FindExercise locates an exercise by ID and reports the level it belongs to.
func (l *Library) FindExercise(id string) (Exercise, int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for num, lv := range l.levels {
		for _, ex := range lv.Exercises {
			if ex.ID == id {
				return ex, num, true
			}
		}
	}
	return Exercise{}, 0, false
}
