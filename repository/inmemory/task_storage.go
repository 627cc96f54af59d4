package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskmanager/internal/clock"
	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/google/uuid"
)

// TaskStorage хранит задачи в памяти с сохранением порядка вставки.
// Все публичные операции выполняются под одним мьютексом.
type TaskStorage struct {
	mu    sync.Mutex
	tasks map[string]models.Task
	order []string
	now   func() time.Time
	newID func() string
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		tasks: make(map[string]models.Task),
		order: []string{},
		now:   clock.System().Now,
		newID: func() string { return uuid.New().String() },
	}
}

func (s *TaskStorage) Create(title, description string, priority models.TaskPriority) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.ErrEmptyTitle
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, errors.ErrInvalidPriority
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	task := models.Task{
		ID:          s.newID(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Priority:    priority,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)

	out := task
	return &out, nil
}

func (s *TaskStorage) Get(id string) (*models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, false
	}
	out := task
	return &out, true
}

func (s *TaskStorage) ListAll() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]models.Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.tasks[id])
	}
	return tasks
}

// Update применяет частичное обновление. Возвращает false без ошибки,
// если задача не найдена: проверка существования выполняется раньше
// валидации полей, которая в свою очередь идёт до любого изменения.
func (s *TaskStorage) Update(id string, upd models.TaskUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return false, nil
	}

	var title string
	if upd.Title != nil {
		title = strings.TrimSpace(*upd.Title)
		if title == "" {
			return true, errors.ErrEmptyTitle
		}
	}
	if upd.Priority != nil && !upd.Priority.Valid() {
		return true, errors.ErrInvalidPriority
	}

	if upd.Title != nil {
		task.Title = title
	}
	if upd.Description != nil {
		task.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Priority != nil {
		task.Priority = *upd.Priority
	}
	task.UpdatedAt = s.now()
	s.tasks[id] = task
	return true, nil
}

// UpdateStatus принимает любой из четырёх допустимых статусов: таблица
// переходов намеренно не навязывается.
func (s *TaskStorage) UpdateStatus(id string, status models.TaskStatus) (bool, error) {
	if !status.Valid() {
		return false, errors.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return false, nil
	}
	task.Status = status
	task.UpdatedAt = s.now()
	s.tasks[id] = task
	return true, nil
}

func (s *TaskStorage) SetDueDate(id string, due time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if due.Before(s.now()) {
		return false, errors.ErrDueDateInPast
	}

	task, exists := s.tasks[id]
	if !exists {
		return false, nil
	}
	task.DueDate = &due
	task.UpdatedAt = s.now()
	s.tasks[id] = task
	return true, nil
}

func (s *TaskStorage) Assign(id, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.ErrEmptyAssignee
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return false, nil
	}
	task.AssignedTo = userID
	task.UpdatedAt = s.now()
	s.tasks[id] = task
	return true, nil
}

func (s *TaskStorage) ByStatus(status models.TaskStatus) []models.Task {
	return s.filter(func(t *models.Task) bool { return t.Status == status })
}

func (s *TaskStorage) ByPriority(priority models.TaskPriority) []models.Task {
	return s.filter(func(t *models.Task) bool { return t.Priority == priority })
}

func (s *TaskStorage) ByAssignee(userID string) []models.Task {
	return s.filter(func(t *models.Task) bool { return t.AssignedTo == userID })
}

func (s *TaskStorage) Overdue() []models.Task {
	now := s.now()
	return s.filter(func(t *models.Task) bool { return t.IsOverdue(now) })
}

func (s *TaskStorage) filter(keep func(*models.Task) bool) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := []models.Task{}
	for _, id := range s.order {
		task := s.tasks[id]
		if keep(&task) {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func (s *TaskStorage) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return false
	}
	delete(s.tasks, id)
	s.order = removeID(s.order, id)
	return true
}

func (s *TaskStorage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TaskStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]models.Task)
	s.order = []string{}
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// Методы с контекстом делегируют в основное API и переводят "не найдено"
// в ошибку для HTTP-слоя.

func (s *TaskStorage) CreateTask(ctx context.Context, title, description string, priority models.TaskPriority) (*models.Task, error) {
	return s.Create(title, description, priority)
}

func (s *TaskStorage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	task, exists := s.Get(id)
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	return task, nil
}

// GetTasks объединяет все заданные условия фильтра через AND, как и
// SQL-хранилище.
func (s *TaskStorage) GetTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	now := s.now()
	tasks := s.filter(func(t *models.Task) bool {
		if f.Status != nil && t.Status != *f.Status {
			return false
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			return false
		}
		if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
			return false
		}
		if f.Overdue && !t.IsOverdue(now) {
			return false
		}
		return true
	})
	return tasks, nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, id string, upd models.TaskUpdate) error {
	found, err := s.Update(id, upd)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStorage) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) error {
	found, err := s.UpdateStatus(id, status)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStorage) SetTaskDueDate(ctx context.Context, id string, due time.Time) error {
	found, err := s.SetDueDate(id, due)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStorage) AssignTask(ctx context.Context, id, userID string) error {
	found, err := s.Assign(id, userID)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStorage) DeleteTask(ctx context.Context, id string) error {
	if !s.Delete(id) {
		return errors.ErrTaskNotFound
	}
	return nil
}
