package content_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skillforge/engine/internal/content"
)

func setupTestContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write("core.skills.yaml", `
skills:
  - id: stance
    name: Basic Stance
    level: 1
    conditions:
      - kind: level
        target: 1
  - id: footwork
    name: Footwork
    level: 1
    prerequisites: [stance]
    conditions:
      - kind: exercise_count
        level: 1
        target: 2
`)

	write("core.levels.yaml", `
levels:
  - number: 1
    name: Fundamentals
    through_day: 10
    exercises:
      - id: l1e1
        prompt: "Hold the stance for 60 seconds"
        answer: "done"
      - id: l1e2
        prompt: "Shadow drill"
        answer: "done"
  - number: 2
    name: Intermediate
    through_day: 30
    exercises:
      - id: l2e1
        prompt: "Combination drill"
        answer: "a"
`)

	write("core.achievements.yaml", `
achievements:
  - id: first_day
    name: First Day
    category: curriculum
    exp_reward: 10
    condition:
      kind: day_count
      target: 1
`)

	write("core.curriculum.yaml", `
days:
  - day: 1
    title: "Foundations"
    objectives:
      - "Learn the stance"
  - day: 2
    title: "Balance"
    objectives:
      - "Hold for longer"
`)

	return dir
}

func TestNewLibrary_LoadsEverything(t *testing.T) {
	lib, err := content.NewLibrary(setupTestContent(t))
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	if lib.Graph().Len() != 2 {
		t.Errorf("graph nodes = %d, want 2", lib.Graph().Len())
	}
	if lib.MaxLevel() != 2 {
		t.Errorf("MaxLevel() = %d, want 2", lib.MaxLevel())
	}
	if got := lib.TotalExercises(1); got != 2 {
		t.Errorf("TotalExercises(1) = %d, want 2", got)
	}
	if len(lib.Achievements()) != 1 {
		t.Errorf("achievements = %d, want 1", len(lib.Achievements()))
	}
	if _, ok := lib.Day(2); !ok {
		t.Error("Day(2) not found")
	}
}

func TestNewLibrary_LevelLookup(t *testing.T) {
	lib, err := content.NewLibrary(setupTestContent(t))
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	lv, ok := lib.Level(2)
	if !ok {
		t.Fatal("Level(2) not found")
	}
	if lv.ThroughDay != 30 {
		t.Errorf("ThroughDay = %d, want 30", lv.ThroughDay)
	}

	if _, ok := lib.Level(9); ok {
		t.Error("Level(9) should not be found")
	}
}

func TestNewLibrary_FindExercise(t *testing.T) {
	lib, err := content.NewLibrary(setupTestContent(t))
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	ex, level, ok := lib.FindExercise("l2e1")
	if !ok {
		t.Fatal("FindExercise(l2e1) not found")
	}
	if level != 2 {
		t.Errorf("level = %d, want 2", level)
	}
	if ex.Answer != "a" {
		t.Errorf("Answer = %q, want a", ex.Answer)
	}

	if _, _, ok := lib.FindExercise("ghost"); ok {
		t.Error("FindExercise(ghost) should not be found")
	}
}

func TestNewLibrary_RefusesCyclicGraph(t *testing.T) {
	dir := t.TempDir()
	cyclic := `
skills:
  - id: a
    prerequisites: [b]
  - id: b
    prerequisites: [a]
`
	if err := os.WriteFile(filepath.Join(dir, "bad.skills.yaml"), []byte(cyclic), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := content.NewLibrary(dir)
	if err == nil {
		t.Fatal("NewLibrary() should refuse a cyclic skill graph")
	}
}

func TestNewLibrary_RejectsDuplicateLevel(t *testing.T) {
	dir := t.TempDir()
	dup := `
levels:
  - number: 1
    exercises: []
  - number: 1
    exercises: []
`
	if err := os.WriteFile(filepath.Join(dir, "dup.levels.yaml"), []byte(dup), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := content.NewLibrary(dir); err == nil {
		t.Fatal("NewLibrary() should reject duplicate level numbers")
	}
}

func TestNewLibrary_GraphResolvesAgainstLoadedConditions(t *testing.T) {
	lib, err := content.NewLibrary(setupTestContent(t))
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	node, ok := lib.Graph().Node("footwork")
	if !ok {
		t.Fatal("footwork node missing")
	}
	if len(node.Prerequisites) != 1 || node.Prerequisites[0] != "stance" {
		t.Errorf("Prerequisites = %v, want [stance]", node.Prerequisites)
	}
	if len(node.Conditions) != 1 || node.Conditions[0].Target != 2 {
		t.Errorf("Conditions = %+v, want exercise target 2", node.Conditions)
	}
}
