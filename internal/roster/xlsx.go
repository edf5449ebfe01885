package roster

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"github.com/xuri/excelize/v2"
)

// sheetColumns maps accepted header names to submission fields.
// The report header ("Course", "Group", "Lab", "GitHub") is accepted so an exported report can be re-imported.
var sheetColumns = map[string]string{
	"course_id": "course", "course": "course",
	"group_id": "group", "group": "group",
	"lab_id": "lab", "lab": "lab",
	"github": "github",
}

// parseSheet reads submissions from the first sheet of a workbook. Row 1 is the header.
func parseSheet(data []byte) (rosterFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return rosterFile{}, fmt.Errorf("open roster workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return rosterFile{}, errors.New("roster workbook contains no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return rosterFile{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return rosterFile{}, nil
	}

	cols := make(map[string]int)
	for i, name := range rows[0] {
		if field, ok := sheetColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, seen := cols[field]; !seen {
				cols[field] = i
			}
		}
	}
	for _, field := range []string{"course", "group", "lab", "github"} {
		if _, ok := cols[field]; !ok {
			return rosterFile{}, fmt.Errorf("sheet %q: missing %s column", sheet, field)
		}
	}

	cell := func(row []string, field string) string {
		if i := cols[field]; i < len(row) {
			return row[i]
		}
		return ""
	}

	var out rosterFile
	for _, row := range rows[1:] {
		if len(strings.TrimSpace(strings.Join(row, ""))) == 0 {
			continue
		}
		out.Submissions = append(out.Submissions, domain.Submission{
			CourseID: cell(row, "course"),
			GroupID:  cell(row, "group"),
			LabID:    cell(row, "lab"),
			GitHub:   cell(row, "github"),
		})
	}
	return out, nil
}
