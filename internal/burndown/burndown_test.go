package burndown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/domain"
)

func ptr[T any](v T) *T { return &v }

var start = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func sprint(days int) domain.Sprint {
	return domain.Sprint{ID: "s1", StartDate: start, EndDate: start.AddDate(0, 0, days)}
}

func TestIdealSeriesIsMonotoneAndReachesZero(t *testing.T) {
	for _, days := range []int{1, 5, 10, 14, 30} {
		tasks := make([]domain.Task, 7)
		for i := range tasks {
			tasks[i] = domain.Task{SprintID: ptr("s1"), Status: domain.TaskTodo}
		}
		c := Compute(sprint(days), tasks, start)
		require.Len(t, c.Points, days+1)
		assert.Equal(t, 7.0, c.Points[0].Ideal)
		for i := 1; i < len(c.Points); i++ {
			assert.LessOrEqual(t, c.Points[i].Ideal, c.Points[i-1].Ideal)
		}
		assert.Equal(t, 0.0, c.Points[days].Ideal)
	}
}

func TestZeroLengthSprintCountsAsOneDay(t *testing.T) {
	s := domain.Sprint{ID: "s1", StartDate: start, EndDate: start}
	assert.Equal(t, 1, Length(s))
	c := Compute(s, nil, start)
	require.Len(t, c.Points, 2)
	assert.Equal(t, 0.0, c.Points[1].Ideal)
}

func TestActualRemaining(t *testing.T) {
	day1 := start.AddDate(0, 0, 1)
	tasks := []domain.Task{
		{SprintID: ptr("s1"), Status: domain.TaskDone, CompletedAt: ptr(start.Add(2 * time.Hour))},
		{SprintID: ptr("s1"), Status: domain.TaskDone, UpdatedAt: day1.Add(time.Hour)},
		{SprintID: ptr("s1"), Status: domain.TaskInProgress, UpdatedAt: start},
		{SprintID: ptr("other"), Status: domain.TaskDone, CompletedAt: ptr(start)},
		{Status: domain.TaskDone, CompletedAt: ptr(start)},
	}
	now := day1.Add(3 * time.Hour)
	c := Compute(sprint(5), tasks, now)

	assert.Equal(t, 3, c.Total)
	require.NotNil(t, c.Points[0].Actual)
	assert.Equal(t, 2, *c.Points[0].Actual)
	require.NotNil(t, c.Points[1].Actual)
	assert.Equal(t, 1, *c.Points[1].Actual)
	assert.Nil(t, c.Points[2].Actual)
	assert.Nil(t, c.Points[5].Actual)
}
