// Package report exports stored grade history as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the grade rows.
const SheetName = "Grades"

var header = []any{"Course", "Group", "Lab", "GitHub", "Status", "Result", "Passed", "Graded At"}

// WriteXLSX saves records to path, sorted by submission key.
func WriteXLSX(path string, records []domain.GradeRecord) error {
	f, err := build(records)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, records []domain.GradeRecord) error {
	f, err := build(records)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func build(records []domain.GradeRecord) (*excelize.File, error) {
	sorted := make([]domain.GradeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Submission.Key() < sorted[j].Submission.Key()
	})

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, rec := range sorted {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{
			rec.Submission.CourseID,
			rec.Submission.GroupID,
			rec.Submission.LabID,
			rec.Submission.GitHub,
			rec.Result.Status,
			rec.Result.Result,
			rec.Result.Passed,
			rec.GradedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}
