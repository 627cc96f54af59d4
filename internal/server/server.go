package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt/v5"
)

type UserRepository interface {
	CreateUser(ctx context.Context, username, email, password, fullName string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	AuthenticateUser(ctx context.Context, identifier, password string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error
	ChangeUserPassword(ctx context.Context, id, oldPassword, newPassword string) error
	DeleteUser(ctx context.Context, id string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, title, description string, priority models.TaskPriority) (*models.Task, error)
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	GetTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, upd models.TaskUpdate) error
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) error
	SetTaskDueDate(ctx context.Context, id string, due time.Time) error
	AssignTask(ctx context.Context, id, userID string) error
	DeleteTask(ctx context.Context, id string) error
}

type TaskAPI struct {
	httpSrv *http.Server
	users   UserRepository
	tasks   TaskRepository
	cfg     *Config
}

func NewTaskAPI(users UserRepository, tasks TaskRepository, cfg *Config) *TaskAPI {
	if users == nil || tasks == nil {
		return nil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	// конфигурация вызывающей стороны не изменяется
	own := *cfg
	if own.TokenSecret == "" {
		own.TokenSecret = defaultTokenSecret
	}

	api := TaskAPI{
		httpSrv: &http.Server{},
		users:   users,
		tasks:   tasks,
		cfg:     &own,
	}

	api.configRoutes()

	return &api
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}

	api.httpSrv.Addr = fmt.Sprintf("%s:%d", api.cfg.Addr, api.cfg.Port)
	if api.httpSrv.Addr == ":0" {
		api.httpSrv.Addr = ":8080"
	}

	return api.httpSrv.ListenAndServe()
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return nil
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.Default()
	router.Use(GzipResponseCompress())

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "использован некорректный HTTP-метод"})
	})

	users := router.Group("/users")
	{
		users.POST("/register", api.register)
		users.POST("/login", api.login)
		users.GET("", api.getUsers)
		users.GET("/:userID", api.getUser)
		users.PUT("/:userID", api.updateUser)
		users.POST("/:userID/password", api.changePassword)
		users.DELETE("/:userID", api.deleteUser)
	}

	tasks := router.Group("/tasks")
	tasks.Use(AuthRequired(api.cfg.TokenSecret))
	{
		tasks.GET("", api.getTasks)
		tasks.POST("", api.createTask)
		tasks.GET(":taskID", api.getTaskByID)
		tasks.PUT(":taskID", api.updateTask)
		tasks.PUT(":taskID/status", api.updateTaskStatus)
		tasks.PUT(":taskID/due_date", api.setTaskDueDate)
		tasks.PUT(":taskID/assignee", api.assignTask)
		tasks.DELETE(":taskID", api.deleteTask)
	}

	api.httpSrv.Handler = router
}

// respondError переводит ошибки доменного слоя в HTTP-статусы:
// валидация — 400, дубликат — 409, не найдено — 404, учетные данные — 401.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.IsValidation(err):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.IsDuplicate(err):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err == errors.ErrTaskNotFound || err == errors.ErrUserNotFound || err == errors.ErrNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err == errors.ErrInvalidCredentials:
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrInvalidCredentials.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
	}
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"full_name":  user.FullName,
		"created_at": user.CreatedAt,
		"last_login": user.LastLogin,
		"is_active":  user.IsActive,
		"is_admin":   user.IsAdmin,
	}
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "некорректные данные пользователя"})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	user, err := api.users.CreateUser(ctx.Request.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "пользователь успешно создан",
		"user":    userResponse(user),
	})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "некорректные данные запроса"})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrValidationFailed.Error(), "details": err.Error()})
		return
	}

	user, err := api.users.AuthenticateUser(ctx.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrInvalidCredentials.Error()})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(api.cfg.TokenSecret))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.SetCookie(authCookieName, tokenString, int((24 * time.Hour).Seconds()), "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{
		"message": "вход выполнен успешно",
		"user":    userResponse(user),
	})
}

func (api *TaskAPI) getUsers(ctx *gin.Context) {
	filter := models.UserFilter{
		Active: ctx.Query("active") == "true",
		Admins: ctx.Query("admins") == "true",
	}

	users, err := api.users.GetUsers(ctx.Request.Context(), filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (api *TaskAPI) getUser(ctx *gin.Context) {
	userID := ctx.Param("userID")

	user, err := api.users.GetUserByID(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

func (api *TaskAPI) updateUser(ctx *gin.Context) {
	userID := ctx.Param("userID")

	var req models.UpdateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "некорректные данные запроса"})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	upd := models.UserUpdate{Email: req.Email, FullName: req.FullName}
	if err := api.users.UpdateUser(ctx.Request.Context(), userID, upd); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "пользователь успешно обновлен"})
}

func (api *TaskAPI) changePassword(ctx *gin.Context) {
	userID := ctx.Param("userID")

	var req models.ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "некорректные данные запроса"})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	if err := api.users.ChangeUserPassword(ctx.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "пароль успешно изменен"})
}

func (api *TaskAPI) deleteUser(ctx *gin.Context) {
	userID := ctx.Param("userID")

	if err := api.users.DeleteUser(ctx.Request.Context(), userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "пользователь успешно удален"})
}

func (api *TaskAPI) getTasks(ctx *gin.Context) {
	var filter models.TaskFilter

	if status := ctx.Query("status"); status != "" {
		st := models.TaskStatus(status)
		if !st.Valid() {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidStatus.Error()})
			return
		}
		filter.Status = &st
	}
	if priority := ctx.Query("priority"); priority != "" {
		p := models.TaskPriority(priority)
		if !p.Valid() {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPriority.Error()})
			return
		}
		filter.Priority = &p
	}
	if assignee := ctx.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	filter.Overdue = ctx.Query("overdue") == "true"

	tasks, err := api.tasks.GetTasks(ctx.Request.Context(), filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	task, err := api.tasks.CreateTask(ctx.Request.Context(), req.Title, req.Description, models.TaskPriority(req.Priority))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"task": task})
}

func (api *TaskAPI) getTaskByID(ctx *gin.Context) {
	id := ctx.Param("taskID")

	task, err := api.tasks.GetTaskByID(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	id := ctx.Param("taskID")

	var req models.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	upd := models.TaskUpdate{Title: req.Title, Description: req.Description}
	if req.Priority != nil {
		p := models.TaskPriority(*req.Priority)
		upd.Priority = &p
	}

	if err := api.tasks.UpdateTask(ctx.Request.Context(), id, upd); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "задача успешно обновлена"})
}

func (api *TaskAPI) updateTaskStatus(ctx *gin.Context) {
	id := ctx.Param("taskID")

	var req models.UpdateTaskStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidStatus.Error()})
		return
	}

	if err := api.tasks.UpdateTaskStatus(ctx.Request.Context(), id, models.TaskStatus(req.Status)); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "статус задачи успешно обновлен"})
}

func (api *TaskAPI) setTaskDueDate(ctx *gin.Context) {
	id := ctx.Param("taskID")

	var req models.SetDueDateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	if err := api.tasks.SetTaskDueDate(ctx.Request.Context(), id, req.DueDate); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "срок выполнения установлен"})
}

func (api *TaskAPI) assignTask(ctx *gin.Context) {
	id := ctx.Param("taskID")

	var req models.AssignTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrEmptyAssignee.Error()})
		return
	}

	if err := api.tasks.AssignTask(ctx.Request.Context(), id, req.AssignedTo); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "задача успешно назначена"})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	id := ctx.Param("taskID")

	if err := api.tasks.DeleteTask(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "задача успешно удалена"})
}

func validationErrorToErrorResponse(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrEmptyUsername
			case "Email":
				return errors.ErrInvalidEmail
			case "Password", "NewPassword":
				return errors.ErrShortPassword
			case "Status":
				return errors.ErrInvalidStatus
			case "Priority":
				return errors.ErrInvalidPriority
			case "Title":
				return errors.ErrEmptyTitle
			case "AssignedTo":
				return errors.ErrEmptyAssignee
			}
		}
	}
	return errors.ErrValidationFailed
}
