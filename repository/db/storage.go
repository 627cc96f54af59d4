package db

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"
	"taskmanager/internal/password"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

type Storage struct {
	conn           *pgx.Conn
	hasher         password.Hasher
	prepCreateTask string
	prepGetTask    string
	prepUpdateTask string
	prepDeleteTask string
	prepCreateUser string
	prepGetUser    string
	prepDeleteUser string
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Не удалось подключиться к базе данных:", err)
		return nil, err
	}

	s := &Storage{
		conn:           conn,
		hasher:         password.SHA256Hasher{},
		prepCreateTask: `INSERT INTO tasks (id, title, description, priority, status, created_at, updated_at, due_date, assigned_to) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		prepGetTask:    `SELECT id, title, description, priority, status, created_at, updated_at, due_date, assigned_to FROM tasks WHERE id = $1`,
		prepUpdateTask: `UPDATE tasks SET title = $1, description = $2, priority = $3, status = $4, updated_at = $5, due_date = $6, assigned_to = $7 WHERE id = $8`,
		prepDeleteTask: `DELETE FROM tasks WHERE id = $1`,
		prepCreateUser: `INSERT INTO users (id, username, email, full_name, password_hash, created_at, is_active, is_admin) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		prepGetUser:    `SELECT id, username, email, full_name, password_hash, created_at, last_login, is_active, is_admin FROM users WHERE id = $1`,
		prepDeleteUser: `DELETE FROM users WHERE id = $1`,
	}
	log.Println("[SUCCESS] Соединение с базой данных установлено успешно")
	return s, nil
}

func validEmail(email string) bool {
	return validator.New().Var(email, "email") == nil
}

func duplicateError(err error) error {
	pgErr, ok := err.(*pgconn.PgError)
	if !ok || pgErr.Code != uniqueViolationCode {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return errors.ErrUsernameTaken
	}
	return errors.ErrEmailTaken
}

func (s *Storage) CreateTask(ctx context.Context, title, description string, priority models.TaskPriority) (*models.Task, error) {
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

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	now := time.Now()
	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Priority:    priority,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stmt, err := s.conn.Prepare(ctx, "create_task", s.prepCreateTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на создание задачи:", err)
		return nil, err
	}
	_, err = s.conn.Exec(ctx, stmt.Name, task.ID, task.Title, task.Description, task.Priority, task.Status, task.CreatedAt, task.UpdatedAt, task.DueDate, task.AssignedTo)
	if err != nil {
		log.Println("[ERROR] Не удалось создать задачу:", err)
		return nil, err
	}
	log.Println("[SUCCESS] Задача успешно создана:", task.ID)
	return task, nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "get_task_by_id", s.prepGetTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на получение задачи по ID:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, id)
	task, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] Ошибка при получении задачи:", err)
		return nil, err
	}
	return task, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Status, &task.CreatedAt, &task.UpdatedAt, &task.DueDate, &task.AssignedTo)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Storage) GetTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	query := `SELECT id, title, description, priority, status, created_at, updated_at, due_date, assigned_to FROM tasks`
	var conds []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conds = append(conds, "priority = $"+strconv.Itoa(len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		conds = append(conds, "assigned_to = $"+strconv.Itoa(len(args)))
	}
	if filter.Overdue {
		conds = append(conds, "due_date IS NOT NULL AND due_date < now() AND status <> 'completed'")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		log.Println("[ERROR] Не удалось получить задачи:", err)
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Println("[ERROR] Ошибка при чтении задач:", err)
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask сперва ищет задачу: неизвестный id даёт ErrTaskNotFound
// раньше проверки полей.
func (s *Storage) UpdateTask(ctx context.Context, id string, upd models.TaskUpdate) error {
	task, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}

	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return errors.ErrEmptyTitle
	}
	if upd.Priority != nil && !upd.Priority.Valid() {
		return errors.ErrInvalidPriority
	}

	if upd.Title != nil {
		task.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		task.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Priority != nil {
		task.Priority = *upd.Priority
	}
	task.UpdatedAt = time.Now()

	return s.writeTask(ctx, id, task)
}

func (s *Storage) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) error {
	if !status.Valid() {
		return errors.ErrInvalidStatus
	}

	task, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	task.Status = status
	task.UpdatedAt = time.Now()
	return s.writeTask(ctx, id, task)
}

func (s *Storage) SetTaskDueDate(ctx context.Context, id string, due time.Time) error {
	if due.Before(time.Now()) {
		return errors.ErrDueDateInPast
	}

	task, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	task.DueDate = &due
	task.UpdatedAt = time.Now()
	return s.writeTask(ctx, id, task)
}

func (s *Storage) AssignTask(ctx context.Context, id, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.ErrEmptyAssignee
	}

	task, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	task.AssignedTo = userID
	task.UpdatedAt = time.Now()
	return s.writeTask(ctx, id, task)
}

func (s *Storage) writeTask(ctx context.Context, id string, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "update_task", s.prepUpdateTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на обновление задачи:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, task.Title, task.Description, task.Priority, task.Status, task.UpdatedAt, task.DueDate, task.AssignedTo, id)
	if err != nil {
		log.Println("[ERROR] Не удалось обновить задачу:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Задача успешно обновлена:", id)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "delete_task", s.prepDeleteTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на удаление задачи:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, id)
	if err != nil {
		log.Println("[ERROR] Не удалось удалить задачу:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Задача успешно удалена:", id)
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, username, email, pass, fullName string) (*models.User, error) {
	uname := models.NormalizeKey(username)
	if uname == "" {
		return nil, errors.ErrEmptyUsername
	}
	mail := models.NormalizeKey(email)
	if mail == "" {
		return nil, errors.ErrEmptyEmail
	}
	if !validEmail(mail) {
		return nil, errors.ErrInvalidEmail
	}
	if len(pass) < 6 {
		return nil, errors.ErrShortPassword
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     uname,
		Email:        mail,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
		IsActive:     true,
	}

	stmt, err := s.conn.Prepare(ctx, "create_user", s.prepCreateUser)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на создание пользователя:", err)
		return nil, err
	}
	_, err = s.conn.Exec(ctx, stmt.Name, user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.CreatedAt, user.IsActive, user.IsAdmin)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		log.Println("[ERROR] Не удалось создать пользователя:", err)
		return nil, err
	}
	log.Println("[SUCCESS] Пользователь успешно создан:", user.ID)
	return user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "get_user_by_id", s.prepGetUser)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на получение пользователя по ID:", err)
		return nil, err
	}
	user, err := scanUser(s.conn.QueryRow(ctx, stmt.Name, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Ошибка при получении пользователя:", err)
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash, &user.CreatedAt, &user.LastLogin, &user.IsActive, &user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Storage) GetUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	query := `SELECT id, username, email, full_name, password_hash, created_at, last_login, is_active, is_admin FROM users`
	switch {
	case filter.Active:
		query += " WHERE is_active = true"
	case filter.Admins:
		query += " WHERE is_admin = true"
	}
	query += " ORDER BY created_at"

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		log.Println("[ERROR] Не удалось получить пользователей:", err)
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			log.Println("[ERROR] Ошибка при чтении пользователей:", err)
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *Storage) AuthenticateUser(ctx context.Context, identifier, pass string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	key := models.NormalizeKey(identifier)
	row := s.conn.QueryRow(ctx, `SELECT id, username, email, full_name, password_hash, created_at, last_login, is_active, is_admin FROM users WHERE username = $1 OR email = $1`, key)
	user, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrInvalidCredentials
		}
		log.Println("[ERROR] Ошибка при получении пользователя:", err)
		return nil, err
	}

	if !user.IsActive || !s.hasher.Verify(pass, user.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}

	login := time.Now()
	if _, err := s.conn.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, login, user.ID); err != nil {
		log.Println("[ERROR] Не удалось обновить время входа:", err)
		return nil, err
	}
	user.LastLogin = &login
	return user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if upd.Email != nil {
		mail := models.NormalizeKey(*upd.Email)
		if mail == "" {
			return errors.ErrEmptyEmail
		}
		if !validEmail(mail) {
			return errors.ErrInvalidEmail
		}
		user.Email = mail
	}
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err = s.conn.Exec(ctx, `UPDATE users SET email = $1, full_name = $2 WHERE id = $3`, user.Email, user.FullName, id)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		log.Println("[ERROR] Не удалось обновить пользователя:", err)
		return err
	}
	log.Println("[SUCCESS] Пользователь успешно обновлен:", id)
	return nil
}

func (s *Storage) ChangeUserPassword(ctx context.Context, id, oldPass, newPass string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPass, user.PasswordHash) {
		return errors.ErrInvalidCredentials
	}
	if len(newPass) < 6 {
		return errors.ErrShortPassword
	}

	hash, err := s.hasher.Hash(newPass)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := s.conn.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id); err != nil {
		log.Println("[ERROR] Не удалось изменить пароль:", err)
		return err
	}
	log.Println("[SUCCESS] Пароль успешно изменен:", id)
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "delete_user", s.prepDeleteUser)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на удаление пользователя:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, id)
	if err != nil {
		log.Println("[ERROR] Не удалось удалить пользователя:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	log.Println("[SUCCESS] Пользователь успешно удален:", id)
	return nil
}
