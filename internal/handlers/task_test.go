package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"task-tracker/internal/dto"
	"task-tracker/internal/middleware"
	"task-tracker/internal/models"
	"task-tracker/internal/repository"
	"task-tracker/internal/services"
	"task-tracker/internal/token"
)

// TaskHandlerTestSuite runs the task routes through the real router and
// bearer-token middleware against an in-memory database.
type TaskHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	tokens *token.Manager
	router *gin.Engine
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(
		&models.User{},
		&models.Task{},
	)
	suite.Require().NoError(err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	suite.tokens = token.NewManager("test-secret", time.Hour)

	userRepo := repository.NewUserRepository(suite.db)
	taskRepo := repository.NewTaskRepository(suite.db)
	authService := services.NewAuthService(userRepo, suite.tokens)
	taskService := services.NewTaskService(taskRepo)
	authHandler := NewAuthHandler(authService, logger)
	taskHandler := NewTaskHandler(taskService, logger)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	auth := suite.router.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	tasks := suite.router.Group("/tasks")
	tasks.Use(middleware.RequireAuth(suite.tokens))
	tasks.GET("", taskHandler.ListTasks)
	tasks.POST("", taskHandler.CreateTask)
	tasks.PUT("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)
}

// TearDownTest runs after each test
func (suite *TaskHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// Helper functions

func (suite *TaskHandlerTestSuite) createTestUser(username string) (*models.User, string) {
	user := &models.User{
		Username:     username,
		PasswordHash: "hashedpassword",
	}
	suite.Require().NoError(suite.db.Create(user).Error)

	signed, err := suite.tokens.Issue(user.ID)
	suite.Require().NoError(err)
	return user, signed
}

func (suite *TaskHandlerTestSuite) createTestTask(title string, ownerID uint64) *models.Task {
	description := "Test Description"
	task := &models.Task{
		Title:       title,
		Description: &description,
		OwnerID:     ownerID,
	}
	suite.Require().NoError(suite.db.Create(task).Error)
	return task
}

func (suite *TaskHandlerTestSuite) request(method, url, bearer string, payload any) *httptest.ResponseRecorder {
	var req *http.Request
	if payload != nil {
		body, err := json.Marshal(payload)
		suite.Require().NoError(err)
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *TaskHandlerTestSuite) decodeTask(w *httptest.ResponseRecorder) dto.TaskDTO {
	var task dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

// Tests

func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	user, bearer := suite.createTestUser("alice")

	w := suite.request("POST", "/tasks", bearer, map[string]string{
		"title":       "Test Task",
		"description": "something to do",
	})

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	task := suite.decodeTask(w)
	assert.Equal(suite.T(), "Test Task", task.Title)
	assert.False(suite.T(), task.IsComplete)
	assert.Equal(suite.T(), user.ID, task.OwnerID)
	suite.Require().NotNil(task.Description)
	assert.Equal(suite.T(), "something to do", *task.Description)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_NoDescription() {
	_, bearer := suite.createTestUser("alice")

	w := suite.request("POST", "/tasks", bearer, map[string]string{
		"title": "No description",
	})

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	task := suite.decodeTask(w)
	assert.Nil(suite.T(), task.Description)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_MissingTitle() {
	_, bearer := suite.createTestUser("alice")

	w := suite.request("POST", "/tasks", bearer, map[string]string{
		"description": "no title here",
	})

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks_OwnerIsolation() {
	userA, _ := suite.createTestUser("alice")
	_, bearerB := suite.createTestUser("bob")
	suite.createTestTask("Alice's task", userA.ID)

	w := suite.request("GET", "/tasks", bearerB, nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var tasks []dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	assert.Empty(suite.T(), tasks)
}

func (suite *TaskHandlerTestSuite) TestListTasks_NoToken() {
	w := suite.request("GET", "/tasks", "", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks_BadToken() {
	req := httptest.NewRequest("GET", "/tasks", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_PartialUpdate() {
	user, bearer := suite.createTestUser("alice")
	task := suite.createTestTask("Keep this title", user.ID)

	w := suite.request("PUT", fmt.Sprintf("/tasks/%d", task.ID), bearer, map[string]any{
		"isComplete": true,
	})

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	updated := suite.decodeTask(w)
	assert.True(suite.T(), updated.IsComplete)
	assert.Equal(suite.T(), task.Title, updated.Title)
	suite.Require().NotNil(updated.Description)
	assert.Equal(suite.T(), *task.Description, *updated.Description)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_OtherOwner() {
	userA, _ := suite.createTestUser("alice")
	_, bearerB := suite.createTestUser("bob")
	task := suite.createTestTask("Alice's task", userA.ID)

	w := suite.request("PUT", fmt.Sprintf("/tasks/%d", task.ID), bearerB, map[string]any{
		"isComplete": true,
	})

	// existence must not leak: not-owned reads as not-found
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_Missing() {
	_, bearer := suite.createTestUser("alice")

	w := suite.request("PUT", "/tasks/999", bearer, map[string]any{
		"isComplete": true,
	})

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask_OtherOwner() {
	userA, _ := suite.createTestUser("alice")
	_, bearerB := suite.createTestUser("bob")
	task := suite.createTestTask("Alice's task", userA.ID)

	w := suite.request("DELETE", fmt.Sprintf("/tasks/%d", task.ID), bearerB, nil)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	var count int64
	suite.db.Model(&models.Task{}).Count(&count)
	assert.Equal(suite.T(), int64(1), count, "task must survive a non-owner delete")
}

func (suite *TaskHandlerTestSuite) TestDeleteTask_Success() {
	user, bearer := suite.createTestUser("alice")
	task := suite.createTestTask("Doomed task", user.ID)

	w := suite.request("DELETE", fmt.Sprintf("/tasks/%d", task.ID), bearer, nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "deleted")

	list := suite.request("GET", "/tasks", bearer, nil)
	var tasks []dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(list.Body.Bytes(), &tasks))
	assert.Empty(suite.T(), tasks)
}

func (suite *TaskHandlerTestSuite) TestRegisterLoginCreateCompleteDelete() {
	// register
	w := suite.request("POST", "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "pw123",
	})
	suite.Require().Equal(http.StatusCreated, w.Code)

	// login
	w = suite.request("POST", "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "pw123",
	})
	suite.Require().Equal(http.StatusOK, w.Code)
	var loginResp struct {
		Token string `json:"token"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &loginResp))
	suite.Require().NotEmpty(loginResp.Token)

	// create
	w = suite.request("POST", "/tasks", loginResp.Token, map[string]string{
		"title": "buy milk",
	})
	suite.Require().Equal(http.StatusCreated, w.Code)
	created := suite.decodeTask(w)
	assert.False(suite.T(), created.IsComplete)

	// complete
	w = suite.request("PUT", fmt.Sprintf("/tasks/%d", created.ID), loginResp.Token, map[string]any{
		"isComplete": true,
	})
	suite.Require().Equal(http.StatusOK, w.Code)
	updated := suite.decodeTask(w)
	assert.True(suite.T(), updated.IsComplete)
	assert.Equal(suite.T(), "buy milk", updated.Title)

	// delete
	w = suite.request("DELETE", fmt.Sprintf("/tasks/%d", created.ID), loginResp.Token, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	// list is empty again
	w = suite.request("GET", "/tasks", loginResp.Token, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var tasks []dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	assert.Empty(suite.T(), tasks)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
