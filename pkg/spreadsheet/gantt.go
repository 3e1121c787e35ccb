package spreadsheet

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"
)

// Bar is one task line of a Gantt export
type Bar struct {
	Task             string
	Start            time.Time
	End              time.Time
	ExpectedDuration string
	Duration         string
	Priority         string
	Progress         int
	Members          string
	State            string
}

var ganttHeader = []string{
	"Task", "Start", "End", "Expected Duration", "Duration", "Priority", "Progress", "Members", "State",
}

// WriteGantt writes bars as a single-sheet workbook. Times are shown in loc.
func WriteGantt(w io.Writer, project string, bars []Bar, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName(project))
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range ganttHeader {
		header.AddCell().SetString(h)
	}

	for _, b := range bars {
		row := sheet.AddRow()
		row.AddCell().SetString(b.Task)
		row.AddCell().SetString(b.Start.In(loc).Format("2006-01-02 15:04"))
		row.AddCell().SetString(b.End.In(loc).Format("2006-01-02 15:04"))
		row.AddCell().SetString(b.ExpectedDuration)
		row.AddCell().SetString(b.Duration)
		row.AddCell().SetString(b.Priority)
		row.AddCell().SetInt(b.Progress)
		row.AddCell().SetString(b.Members)
		row.AddCell().SetString(b.State)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetName trims a project name to Excel's 31 character sheet limit
func sheetName(project string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, project)
	if name == "" {
		name = "Gantt"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}
