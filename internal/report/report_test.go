package report_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/skillforge/engine/internal/engine"
	"github.com/skillforge/engine/internal/report"
	"github.com/skillforge/engine/internal/streak"
	"github.com/skillforge/engine/internal/unlock"
)

func TestWrite_RoundTrip(t *testing.T) {
	snap := engine.Snapshot{
		Progress: engine.UserProgress{
			UserID:        "u1",
			Level:         2,
			Experience:    340,
			CurrentDay:    12,
			CompletedDays: map[int]bool{1: true, 2: true},
			Streak:        streak.State{Current: 2, Longest: 5},
		},
		ShortCourseDay: 3,
		Skills: []unlock.NodeStatus{
			{NodeID: "basics", Name: "Basics", Level: 1, Status: unlock.StatusUnlocked},
			{NodeID: "footwork", Name: "Footwork", Level: 1, Status: unlock.StatusEligible},
		},
		Achievements: []engine.AchievementView{
			{ID: "first_day", Name: "First Day Done", Category: "curriculum", Progress: 2, Target: 1, Completed: true},
		},
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, snap); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := map[string]bool{"Overview": false, "Skills": false, "Achievements": false}
	for _, s := range sheets {
		if _, ok := want[s]; ok {
			want[s] = true
		}
		if s == "Sheet1" {
			t.Error("default Sheet1 should be removed")
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("sheet %q missing from workbook", name)
		}
	}

	user, err := f.GetCellValue("Overview", "B1")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if user != "u1" {
		t.Errorf("Overview B1 = %q, want u1", user)
	}

	skill, err := f.GetCellValue("Skills", "A2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if skill != "basics" {
		t.Errorf("Skills A2 = %q, want basics", skill)
	}

	status, err := f.GetCellValue("Skills", "D3")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if status != "eligible" {
		t.Errorf("Skills D3 = %q, want eligible", status)
	}

	ach, err := f.GetCellValue("Achievements", "A2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if ach != "First Day Done" {
		t.Errorf("Achievements A2 = %q, want First Day Done", ach)
	}
}
