package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("пользователь не найден")
	ErrTaskNotFound       = errors.New("задача не найдена")
	ErrNotFound           = errors.New("ресурс не найден")
	ErrInvalidCredentials = errors.New("неверные учетные данные")
	ErrUnauthorized       = errors.New("нет доступа")
	ErrInternalServer     = errors.New("внутренняя ошибка сервера")
	ErrBadRequest         = errors.New("неверный запрос")
	ErrValidationFailed   = errors.New("ошибка валидации")

	ErrEmptyTitle      = errors.New("заголовок задачи не может быть пустым")
	ErrInvalidPriority = errors.New("недопустимый приоритет задачи")
	ErrInvalidStatus   = errors.New("недопустимый статус задачи")
	ErrDueDateInPast   = errors.New("срок выполнения не может быть в прошлом")
	ErrEmptyAssignee   = errors.New("идентификатор исполнителя не может быть пустым")

	ErrEmptyUsername = errors.New("имя пользователя не может быть пустым")
	ErrEmptyEmail    = errors.New("email не может быть пустым")
	ErrInvalidEmail  = errors.New("некорректный email")
	ErrShortPassword = errors.New("пароль должен содержать не менее 6 символов")

	ErrUsernameTaken = errors.New("имя пользователя уже занято")
	ErrEmailTaken    = errors.New("email уже используется")

	ErrConfigFileReadFailed = errors.New("не удалось прочитать файл конфигурации")
	ErrConfigParseFailed    = errors.New("не удалось разобрать файл конфигурации")
	ErrConfigInvalidFormat  = errors.New("некорректное значение конфигурации")
)

var validationErrors = []error{
	ErrEmptyTitle,
	ErrInvalidPriority,
	ErrInvalidStatus,
	ErrDueDateInPast,
	ErrEmptyAssignee,
	ErrEmptyUsername,
	ErrEmptyEmail,
	ErrInvalidEmail,
	ErrShortPassword,
	ErrValidationFailed,
}

// IsValidation сообщает, относится ли ошибка к классу ошибок валидации:
// они возникают до любого изменения состояния.
func IsValidation(err error) bool {
	for _, e := range validationErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsDuplicate сообщает, нарушает ли операция уникальность username/email.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken)
}
