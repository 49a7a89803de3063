// Package burndown computes a sprint's ideal and actual remaining-work
// series from task timestamps.
package burndown

import (
	"time"

	"github.com/kidandcat/sprintboard/internal/domain"
)

const day = 24 * time.Hour

type Point struct {
	Day   int       `json:"day"`
	Date  time.Time `json:"date"`
	Ideal float64   `json:"ideal"`
	// Actual is nil for days that have not started yet.
	Actual *int `json:"actual,omitempty"`
}

type Chart struct {
	SprintID string  `json:"sprintId"`
	Total    int     `json:"total"`
	Days     int     `json:"days"`
	Points   []Point `json:"points"`
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Length is the sprint length in whole days, at least 1.
func Length(s domain.Sprint) int {
	d := int(midnight(s.EndDate).Sub(midnight(s.StartDate)) / day)
	if d < 1 {
		return 1
	}
	return d
}

// completedAt reports when t was finished, if it is done.
func completedAt(t domain.Task) (time.Time, bool) {
	if t.Status != domain.TaskDone {
		return time.Time{}, false
	}
	if t.CompletedAt != nil {
		return *t.CompletedAt, true
	}
	return t.UpdatedAt, true
}

// Compute builds the chart for sprint. Tasks not in the sprint are
// ignored, so callers may pass the whole project's tasks.
func Compute(sprint domain.Sprint, tasks []domain.Task, now time.Time) Chart {
	var inSprint []domain.Task
	for _, t := range tasks {
		if t.SprintID != nil && *t.SprintID == sprint.ID {
			inSprint = append(inSprint, t)
		}
	}

	n := len(inSprint)
	d := Length(sprint)
	start := midnight(sprint.StartDate)

	c := Chart{SprintID: sprint.ID, Total: n, Days: d, Points: make([]Point, 0, d+1)}
	for i := 0; i <= d; i++ {
		date := start.Add(time.Duration(i) * day)
		p := Point{
			Day:   i,
			Date:  date,
			Ideal: float64(n) * (1 - float64(i)/float64(d)),
		}
		if !date.After(now) {
			end := date.Add(day)
			remaining := 0
			for _, t := range inSprint {
				if at, ok := completedAt(t); !ok || !at.Before(end) {
					remaining++
				}
			}
			p.Actual = &remaining
		}
		c.Points = append(c.Points, p)
	}
	return c
}
