package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskmanager/internal/clock"
	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"
	"taskmanager/internal/password"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

// UserStorage хранит пользователей в памяти вместе с двумя вторичными
// индексами: username -> id и email -> id. Первичная карта и оба индекса
// согласованы по завершении каждой публичной операции.
type UserStorage struct {
	mu         sync.Mutex
	users      map[string]models.User
	order      []string
	byUsername map[string]string
	byEmail    map[string]string
	hasher     password.Hasher
	now        func() time.Time
	newID      func() string
}

func NewUserStorage() *UserStorage {
	return NewUserStorageWithHasher(password.SHA256Hasher{})
}

func NewUserStorageWithHasher(h password.Hasher) *UserStorage {
	return &UserStorage{
		users:      make(map[string]models.User),
		order:      []string{},
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		hasher:     h,
		now:        clock.System().Now,
		newID:      func() string { return uuid.New().String() },
	}
}

func validEmail(email string) bool {
	return validator.New().Var(email, "email") == nil
}

func (s *UserStorage) Create(username, email, pass, fullName string) (*models.User, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[uname]; taken {
		return nil, errors.ErrUsernameTaken
	}
	if _, taken := s.byEmail[mail]; taken {
		return nil, errors.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:           s.newID(),
		Username:     uname,
		Email:        mail,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		CreatedAt:    s.now(),
		IsActive:     true,
	}
	s.users[user.ID] = user
	s.order = append(s.order, user.ID)
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID

	out := user
	return &out, nil
}

func (s *UserStorage) Get(id string) (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *UserStorage) getLocked(id string) (*models.User, bool) {
	user, exists := s.users[id]
	if !exists {
		return nil, false
	}
	out := user
	return &out, true
}

func (s *UserStorage) GetByUsername(username string) (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.byUsername[models.NormalizeKey(username)]
	if !exists {
		return nil, false
	}
	return s.getLocked(id)
}

func (s *UserStorage) GetByEmail(email string) (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.byEmail[models.NormalizeKey(email)]
	if !exists {
		return nil, false
	}
	return s.getLocked(id)
}

// Authenticate пробует идентификатор сначала как username, затем как email.
// Наружу не различаются "пользователь не найден", "неактивен" и
// "неверный пароль".
func (s *UserStorage) Authenticate(identifier, pass string) (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeKey(identifier)
	id, exists := s.byUsername[key]
	if !exists {
		id, exists = s.byEmail[key]
	}
	if !exists {
		return nil, false
	}

	user := s.users[id]
	if !user.IsActive || !s.hasher.Verify(pass, user.PasswordHash) {
		return nil, false
	}

	login := s.now()
	user.LastLogin = &login
	s.users[id] = user

	out := user
	return &out, true
}

// Update поддерживает смену email (с перестройкой индекса) и full_name.
// Возвращает false без ошибки, если пользователь не найден: проверка
// существования выполняется раньше валидации полей.
func (s *UserStorage) Update(id string, upd models.UserUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return false, nil
	}

	if upd.Email != nil {
		mail := models.NormalizeKey(*upd.Email)
		if mail == "" {
			return true, errors.ErrEmptyEmail
		}
		if !validEmail(mail) {
			return true, errors.ErrInvalidEmail
		}
		if owner, taken := s.byEmail[mail]; taken && owner != id {
			return true, errors.ErrEmailTaken
		}
		delete(s.byEmail, user.Email)
		user.Email = mail
		s.byEmail[mail] = id
	}
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
	}
	s.users[id] = user
	return true, nil
}

// ChangePassword меняет пароль при верном старом. Ошибочный старый пароль —
// ErrInvalidCredentials, короткий новый — ErrShortPassword.
func (s *UserStorage) ChangePassword(id, oldPass, newPass string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return false, nil
	}
	if !s.hasher.Verify(oldPass, user.PasswordHash) {
		return true, errors.ErrInvalidCredentials
	}
	if len(newPass) < 6 {
		return true, errors.ErrShortPassword
	}

	hash, err := s.hasher.Hash(newPass)
	if err != nil {
		return true, err
	}
	user.PasswordHash = hash
	s.users[id] = user
	return true, nil
}

func (s *UserStorage) SetActive(id string, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return false
	}
	user.IsActive = active
	s.users[id] = user
	return true
}

func (s *UserStorage) SetAdmin(id string, admin bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return false
	}
	user.IsAdmin = admin
	s.users[id] = user
	return true
}

// Delete убирает пользователя из первичной карты и обоих индексов разом.
func (s *UserStorage) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return false
	}
	delete(s.byUsername, user.Username)
	delete(s.byEmail, user.Email)
	delete(s.users, id)
	s.order = removeID(s.order, id)
	return true
}

func (s *UserStorage) ListAll() []models.User {
	return s.filterUsers(func(u *models.User) bool { return true })
}

func (s *UserStorage) ListActive() []models.User {
	return s.filterUsers(func(u *models.User) bool { return u.IsActive })
}

func (s *UserStorage) ListAdmins() []models.User {
	return s.filterUsers(func(u *models.User) bool { return u.IsAdmin })
}

func (s *UserStorage) filterUsers(keep func(*models.User) bool) []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := []models.User{}
	for _, id := range s.order {
		user := s.users[id]
		if keep(&user) {
			users = append(users, user)
		}
	}
	return users
}

func (s *UserStorage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *UserStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]models.User)
	s.order = []string{}
	s.byUsername = make(map[string]string)
	s.byEmail = make(map[string]string)
}

// Методы с контекстом для HTTP-слоя.

func (s *UserStorage) CreateUser(ctx context.Context, username, email, pass, fullName string) (*models.User, error) {
	return s.Create(username, email, pass, fullName)
}

func (s *UserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, exists := s.Get(id)
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return user, nil
}

func (s *UserStorage) GetUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	switch {
	case f.Active:
		return s.ListActive(), nil
	case f.Admins:
		return s.ListAdmins(), nil
	default:
		return s.ListAll(), nil
	}
}

func (s *UserStorage) AuthenticateUser(ctx context.Context, identifier, pass string) (*models.User, error) {
	user, ok := s.Authenticate(identifier, pass)
	if !ok {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserStorage) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error {
	found, err := s.Update(id, upd)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *UserStorage) ChangeUserPassword(ctx context.Context, id, oldPass, newPass string) error {
	found, err := s.ChangePassword(id, oldPass, newPass)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *UserStorage) DeleteUser(ctx context.Context, id string) error {
	if !s.Delete(id) {
		return errors.ErrUserNotFound
	}
	return nil
}
