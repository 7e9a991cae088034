// Package report flattens a progression snapshot into an XLSX workbook for
// coaches and admins. The engine never reads these files back; export is
// strictly a one-way view.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/skillforge/engine/internal/engine"
)

const (
	sheetOverview     = "Overview"
	sheetSkills       = "Skills"
	sheetAchievements = "Achievements"
)

// Write renders a snapshot as an XLSX workbook onto w.
func Write(w io.Writer, snap engine.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeOverview(f, snap); err != nil {
		return err
	}
	if err := writeSkills(f, snap); err != nil {
		return err
	}
	if err := writeAchievements(f, snap); err != nil {
		return err
	}

	// excelize creates "Sheet1" by default; Overview replaces it.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, snap engine.Snapshot) error {
	if _, err := f.NewSheet(sheetOverview); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetOverview, err)
	}
	p := snap.Progress
	rows := [][]any{
		{"User", p.UserID},
		{"Level", p.Level},
		{"Experience", p.Experience},
		{"Current day (90-day)", p.CurrentDay},
		{"Current day (30-day)", snap.ShortCourseDay},
		{"Days completed", len(p.CompletedDays)},
		{"Current streak", p.Streak.Current},
		{"Longest streak", p.Streak.Longest},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetOverview, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeSkills(f *excelize.File, snap engine.Snapshot) error {
	if _, err := f.NewSheet(sheetSkills); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetSkills, err)
	}
	header := []any{"Skill", "Name", "Level", "Status", "Unmet conditions"}
	if err := f.SetSheetRow(sheetSkills, "A1", &header); err != nil {
		return err
	}
	for i, s := range snap.Skills {
		row := []any{s.NodeID, s.Name, s.Level, string(s.Status), len(s.UnmetConditions)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSkills, cell, &row); err != nil {
			return fmt.Errorf("write skill row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeAchievements(f *excelize.File, snap engine.Snapshot) error {
	if _, err := f.NewSheet(sheetAchievements); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetAchievements, err)
	}
	header := []any{"Achievement", "Category", "Progress", "Target", "Completed", "Unlocked at"}
	if err := f.SetSheetRow(sheetAchievements, "A1", &header); err != nil {
		return err
	}
	for i, a := range snap.Achievements {
		unlockedAt := ""
		if a.UnlockedAt != nil {
			unlockedAt = a.UnlockedAt.Format("2006-01-02 15:04")
		}
		row := []any{a.Name, a.Category, a.Progress, a.Target, a.Completed, unlockedAt}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetAchievements, cell, &row); err != nil {
			return fmt.Errorf("write achievement row %d: %w", i+2, err)
		}
	}
	return nil
}
