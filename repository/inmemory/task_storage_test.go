package storage

import (
	"context"
	"testing"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func newTestTaskStorage(start time.Time) (*TaskStorage, *time.Time) {
	s := NewTaskStorage()
	now := start
	s.now = func() time.Time { return now }
	return s, &now
}

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTaskStorageCreate(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		priority    models.TaskPriority
		want        struct {
			err      error
			title    string
			priority models.TaskPriority
		}
	}{
		{
			name:        "successful creation",
			title:       "Write report",
			description: "  quarterly numbers  ",
			priority:    models.PriorityHigh,
			want: struct {
				err      error
				title    string
				priority models.TaskPriority
			}{
				err:      nil,
				title:    "Write report",
				priority: models.PriorityHigh,
			},
		},
		{
			name:     "title is trimmed",
			title:    "  Write report  ",
			priority: models.PriorityLow,
			want: struct {
				err      error
				title    string
				priority models.TaskPriority
			}{
				err:      nil,
				title:    "Write report",
				priority: models.PriorityLow,
			},
		},
		{
			name:     "empty priority defaults to medium",
			title:    "Write report",
			priority: "",
			want: struct {
				err      error
				title    string
				priority models.TaskPriority
			}{
				err:      nil,
				title:    "Write report",
				priority: models.PriorityMedium,
			},
		},
		{
			name:  "empty title",
			title: "",
			want: struct {
				err      error
				title    string
				priority models.TaskPriority
			}{
				err: errors.ErrEmptyTitle,
			},
		},
		{
			name:  "whitespace-only title",
			title: "   \t  ",
			want: struct {
				err      error
				title    string
				priority models.TaskPriority
			}{
				err: errors.ErrEmptyTitle,
			},
		},
		{
			name:     "invalid priority",
			title:    "Write report",
			priority: "critical",
			want: struct {
				err      error
				title    string
				priority models.TaskPriority
			}{
				err: errors.ErrInvalidPriority,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestTaskStorage(testStart)

			task, err := s.Create(tt.title, tt.description, tt.priority)

			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Nil(t, task)
				assert.Equal(t, 0, s.Count())
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, task.ID)
				assert.Equal(t, tt.want.title, task.Title)
				assert.Equal(t, tt.want.priority, task.Priority)
				assert.Equal(t, models.StatusPending, task.Status)
				assert.Equal(t, testStart, task.CreatedAt)
				assert.Equal(t, task.CreatedAt, task.UpdatedAt)
				assert.Nil(t, task.DueDate)

				got, exists := s.Get(task.ID)
				assert.True(t, exists)
				assert.Equal(t, tt.want.title, got.Title)
			}
		})
	}
}

func TestTaskStorageGet(t *testing.T) {
	s, _ := newTestTaskStorage(testStart)
	task, err := s.Create("Write report", "", models.PriorityMedium)
	assert.NoError(t, err)

	got, exists := s.Get(task.ID)
	assert.True(t, exists)
	assert.Equal(t, task.ID, got.ID)

	got, exists = s.Get("nonexistent")
	assert.False(t, exists)
	assert.Nil(t, got)
}

func TestTaskStorageListAllOrder(t *testing.T) {
	s, _ := newTestTaskStorage(testStart)

	first, _ := s.Create("first", "", models.PriorityLow)
	second, _ := s.Create("second", "", models.PriorityHigh)
	third, _ := s.Create("third", "", models.PriorityMedium)

	tasks := s.ListAll()
	assert.Len(t, tasks, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}

func TestTaskStorageUpdate(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	prioPtr := func(p models.TaskPriority) *models.TaskPriority { return &p }

	tests := []struct {
		name string
		upd  models.TaskUpdate
		want struct {
			found       bool
			err         error
			title       string
			description string
			priority    models.TaskPriority
		}
	}{
		{
			name: "update title only",
			upd:  models.TaskUpdate{Title: strPtr("  New title  ")},
			want: struct {
				found       bool
				err         error
				title       string
				description string
				priority    models.TaskPriority
			}{
				found:       true,
				title:       "New title",
				description: "original description",
				priority:    models.PriorityMedium,
			},
		},
		{
			name: "update description and priority",
			upd:  models.TaskUpdate{Description: strPtr(" changed "), Priority: prioPtr(models.PriorityUrgent)},
			want: struct {
				found       bool
				err         error
				title       string
				description string
				priority    models.TaskPriority
			}{
				found:       true,
				title:       "Original title",
				description: "changed",
				priority:    models.PriorityUrgent,
			},
		},
		{
			name: "empty title rejected",
			upd:  models.TaskUpdate{Title: strPtr("   ")},
			want: struct {
				found       bool
				err         error
				title       string
				description string
				priority    models.TaskPriority
			}{
				err: errors.ErrEmptyTitle,
			},
		},
		{
			name: "invalid priority rejected",
			upd:  models.TaskUpdate{Priority: prioPtr("critical")},
			want: struct {
				found       bool
				err         error
				title       string
				description string
				priority    models.TaskPriority
			}{
				err: errors.ErrInvalidPriority,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, now := newTestTaskStorage(testStart)
			task, err := s.Create("Original title", "original description", models.PriorityMedium)
			assert.NoError(t, err)

			*now = now.Add(time.Minute)

			found, err := s.Update(task.ID, tt.upd)

			got, _ := s.Get(task.ID)
			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Equal(t, "Original title", got.Title)
				assert.Equal(t, task.UpdatedAt, got.UpdatedAt)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want.found, found)
				assert.Equal(t, tt.want.title, got.Title)
				assert.Equal(t, tt.want.description, got.Description)
				assert.Equal(t, tt.want.priority, got.Priority)
				assert.True(t, got.UpdatedAt.After(got.CreatedAt))
			}
		})
	}
}

func TestTaskStorageUpdateUnknownID(t *testing.T) {
	title := "New title"
	empty := "   "
	bad := models.TaskPriority("critical")

	tests := []struct {
		name string
		upd  models.TaskUpdate
	}{
		{
			name: "valid payload",
			upd:  models.TaskUpdate{Title: &title},
		},
		{
			name: "empty title",
			upd:  models.TaskUpdate{Title: &empty},
		},
		{
			name: "invalid priority",
			upd:  models.TaskUpdate{Priority: &bad},
		},
	}

	// неизвестный id важнее некорректных полей: просто false без ошибки
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestTaskStorage(testStart)

			found, err := s.Update("nonexistent", tt.upd)
			assert.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestTaskStorageUpdateStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.TaskStatus
		want   struct {
			err error
		}
	}{
		{
			name:   "pending to in_progress",
			status: models.StatusInProgress,
			want:   struct{ err error }{err: nil},
		},
		{
			name:   "pending to completed",
			status: models.StatusCompleted,
			want:   struct{ err error }{err: nil},
		},
		{
			name:   "pending to cancelled",
			status: models.StatusCancelled,
			want:   struct{ err error }{err: nil},
		},
		{
			name:   "invalid status",
			status: "archived",
			want:   struct{ err error }{err: errors.ErrInvalidStatus},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, now := newTestTaskStorage(testStart)
			task, err := s.Create("Write report", "", models.PriorityHigh)
			assert.NoError(t, err)

			*now = now.Add(time.Minute)

			found, err := s.UpdateStatus(task.ID, tt.status)

			got, _ := s.Get(task.ID)
			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Equal(t, models.StatusPending, got.Status)
			} else {
				assert.NoError(t, err)
				assert.True(t, found)
				assert.Equal(t, tt.status, got.Status)
				assert.True(t, got.UpdatedAt.After(got.CreatedAt))
			}
		})
	}
}

func TestTaskStorageSetDueDate(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		want   struct {
			err error
		}
	}{
		{
			name:   "due date in a week",
			offset: 7 * 24 * time.Hour,
			want:   struct{ err error }{err: nil},
		},
		{
			name:   "due date in the past",
			offset: -24 * time.Hour,
			want:   struct{ err error }{err: errors.ErrDueDateInPast},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, now := newTestTaskStorage(testStart)
			task, err := s.Create("Write report", "", models.PriorityHigh)
			assert.NoError(t, err)

			due := now.Add(tt.offset)
			found, err := s.SetDueDate(task.ID, due)

			got, _ := s.Get(task.ID)
			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Nil(t, got.DueDate)
			} else {
				assert.NoError(t, err)
				assert.True(t, found)
				assert.NotNil(t, got.DueDate)
				assert.Equal(t, due, *got.DueDate)
			}
		})
	}
}

func TestTaskStorageAssign(t *testing.T) {
	s, _ := newTestTaskStorage(testStart)
	task, err := s.Create("Write report", "", models.PriorityHigh)
	assert.NoError(t, err)

	found, err := s.Assign(task.ID, "  user123  ")
	assert.NoError(t, err)
	assert.True(t, found)

	got, _ := s.Get(task.ID)
	assert.Equal(t, "user123", got.AssignedTo)

	_, err = s.Assign(task.ID, "   ")
	assert.ErrorIs(t, err, errors.ErrEmptyAssignee)
}

func TestTaskStorageFilters(t *testing.T) {
	s, now := newTestTaskStorage(testStart)

	done, _ := s.Create("done", "", models.PriorityLow)
	cancelled, _ := s.Create("cancelled", "", models.PriorityHigh)
	pending, _ := s.Create("pending", "", models.PriorityHigh)
	assigned, _ := s.Create("assigned", "", models.PriorityMedium)

	due := now.Add(time.Hour)
	for _, id := range []string{done.ID, cancelled.ID, pending.ID} {
		_, err := s.SetDueDate(id, due)
		assert.NoError(t, err)
	}

	_, err := s.UpdateStatus(done.ID, models.StatusCompleted)
	assert.NoError(t, err)
	_, err = s.UpdateStatus(cancelled.ID, models.StatusCancelled)
	assert.NoError(t, err)
	_, err = s.Assign(assigned.ID, "user123")
	assert.NoError(t, err)

	// срок прошёл
	*now = now.Add(2 * time.Hour)

	byStatus := s.ByStatus(models.StatusPending)
	assert.Len(t, byStatus, 2)
	assert.Equal(t, pending.ID, byStatus[0].ID)
	assert.Equal(t, assigned.ID, byStatus[1].ID)

	byPriority := s.ByPriority(models.PriorityHigh)
	assert.Len(t, byPriority, 2)
	assert.Equal(t, cancelled.ID, byPriority[0].ID)

	byAssignee := s.ByAssignee("user123")
	assert.Len(t, byAssignee, 1)
	assert.Equal(t, assigned.ID, byAssignee[0].ID)

	// отменённая задача с прошедшим сроком считается просроченной,
	// завершённая — нет
	overdue := s.Overdue()
	assert.Len(t, overdue, 2)
	assert.Equal(t, cancelled.ID, overdue[0].ID)
	assert.Equal(t, pending.ID, overdue[1].ID)
}

func TestTaskStorageGetTasksCombinedFilters(t *testing.T) {
	s, now := newTestTaskStorage(testStart)
	ctx := context.Background()

	highPending, _ := s.Create("high pending", "", models.PriorityHigh)
	highDone, _ := s.Create("high done", "", models.PriorityHigh)
	lowPending, _ := s.Create("low pending", "", models.PriorityLow)

	_, err := s.UpdateStatus(highDone.ID, models.StatusCompleted)
	assert.NoError(t, err)
	_, err = s.Assign(highPending.ID, "user123")
	assert.NoError(t, err)
	_, err = s.SetDueDate(highPending.ID, now.Add(time.Hour))
	assert.NoError(t, err)

	*now = now.Add(2 * time.Hour)

	// условия фильтра объединяются через AND
	st := models.StatusPending
	p := models.PriorityHigh
	tasks, err := s.GetTasks(ctx, models.TaskFilter{Status: &st, Priority: &p})
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, highPending.ID, tasks[0].ID)

	assignee := "user123"
	tasks, err = s.GetTasks(ctx, models.TaskFilter{Priority: &p, AssignedTo: &assignee, Overdue: true})
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, highPending.ID, tasks[0].ID)

	tasks, err = s.GetTasks(ctx, models.TaskFilter{Status: &st, AssignedTo: &assignee})
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)

	other := models.PriorityMedium
	tasks, err = s.GetTasks(ctx, models.TaskFilter{Status: &st, Priority: &other})
	assert.NoError(t, err)
	assert.Empty(t, tasks)

	low := models.PriorityLow
	tasks, err = s.GetTasks(ctx, models.TaskFilter{Priority: &low})
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, lowPending.ID, tasks[0].ID)

	tasks, err = s.GetTasks(ctx, models.TaskFilter{})
	assert.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestTaskStorageDelete(t *testing.T) {
	s, _ := newTestTaskStorage(testStart)
	task, _ := s.Create("Write report", "", models.PriorityHigh)

	assert.True(t, s.Delete(task.ID))
	assert.Equal(t, 0, s.Count())

	_, exists := s.Get(task.ID)
	assert.False(t, exists)

	assert.False(t, s.Delete(task.ID))
}

func TestTaskStorageClear(t *testing.T) {
	s, _ := newTestTaskStorage(testStart)
	s.Create("one", "", models.PriorityLow)
	s.Create("two", "", models.PriorityLow)

	assert.Equal(t, 2, s.Count())
	s.Clear()
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.ListAll())
}

func TestTaskStorageScenario(t *testing.T) {
	s, now := newTestTaskStorage(testStart)

	task, err := s.Create("Write report", "", models.PriorityHigh)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)

	*now = now.Add(time.Minute)
	found, err := s.UpdateStatus(task.ID, models.StatusInProgress)
	assert.NoError(t, err)
	assert.True(t, found)

	got, _ := s.Get(task.ID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt))

	_, err = s.SetDueDate(task.ID, now.Add(7*24*time.Hour))
	assert.NoError(t, err)

	_, err = s.SetDueDate(task.ID, now.Add(-24*time.Hour))
	assert.ErrorIs(t, err, errors.ErrDueDateInPast)
}
