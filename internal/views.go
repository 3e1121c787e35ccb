package internal

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"scheduling-api/internal/scheduling"
	"scheduling-api/pkg/spreadsheet"
)

// timetableRow renders times in the project's zone
type timetableRow struct {
	scheduling.TimetableRow
	Start string `json:"start"`
	End   string `json:"end"`
}

type ganttRow struct {
	scheduling.GanttRow
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) timetable(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, rows, err := s.Service.Timetable(r.Context(), company(r), projectName(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	loc := p.Location()
	out := make([]timetableRow, len(rows))
	for i, row := range rows {
		out[i] = timetableRow{
			TimetableRow: row,
			Start:        row.Start.In(loc).Format(time.RFC3339),
			End:          row.End.In(loc).Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_name": p.Name,
		"timezone":     loc.String(),
		"timetable":    out,
	})
}

func (s *Server) gantt(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, rows, err := s.Service.Gantt(r.Context(), company(r), projectName(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	loc := p.Location()
	out := make([]ganttRow, len(rows))
	for i, row := range rows {
		out[i] = ganttRow{
			GanttRow: row,
			Start:    row.Start.In(loc).Format(time.RFC3339),
			End:      row.End.In(loc).Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_name": p.Name,
		"timezone":     loc.String(),
		"gantt":        out,
	})
}

// ganttWorkbook serves the Gantt rows as an xlsx download
func (s *Server) ganttWorkbook(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, rows, err := s.Service.Gantt(r.Context(), company(r), projectName(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	bars := make([]spreadsheet.Bar, len(rows))
	for i, row := range rows {
		bars[i] = spreadsheet.Bar{
			Task:             row.Task,
			Start:            row.Start,
			End:              row.End,
			ExpectedDuration: row.ExpectedDuration,
			Duration:         row.Duration,
			Priority:         row.Priority,
			Progress:         row.Progress,
			Members:          row.Members,
			State:            string(row.State),
		}
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteGantt(&buf, p.Name, bars, p.Location()); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name+"-gantt.xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
