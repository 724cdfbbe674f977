package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rodrigomacsantos/PieceSwap/internal/api/handlers"
	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
)

func authTestConfig() *config.Config {
	return &config.Config{
		JwtSecret:      "test-secret",
		AppName:        "PieceSwap",
		PasswordRegexp: `^.{8,}$`,
	}
}

func setupAuthRouter(cfg *config.Config, userSvc services.IUserService, enqueuer services.IEmailEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestAuthHandler(cfg, userSvc, enqueuer)
	r := gin.New()
	r.POST("/v1/auth/signup", handler.SignUp)
	r.POST("/v1/auth/signin", handler.SignIn)
	return r
}

func TestRestAuthHandler_SignUp_Success(t *testing.T) {
	mockUserSvc := new(MockUserService)
	mockEnqueuer := new(MockEmailEnqueuer)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, mockEnqueuer)

	user := &models.User{Base: models.NewBase(), Email: "ana@example.com", Activated: true}
	profile := &models.Profile{Base: models.NewBase(), UserID: user.ID, Username: "brickana"}
	mockUserSvc.On("SignUp", mock.Anything, "ana@example.com", "hunter2hunter2", "brickana", "Ana Silva").Return(user, profile, nil)
	mockEnqueuer.On("EnqueueEmail", mock.Anything, "ana@example.com", mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)

	body, _ := json.Marshal(map[string]string{
		"email":     "ana@example.com",
		"password":  "hunter2hunter2",
		"username":  "brickana",
		"full_name": "Ana Silva",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signup", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, user.ID.String(), resp["user_id"])
	mockUserSvc.AssertExpectations(t)
	mockEnqueuer.AssertExpectations(t)
}

func TestRestAuthHandler_SignUp_DuplicateEmail(t *testing.T) {
	mockUserSvc := new(MockUserService)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, nil)

	mockUserSvc.On("SignUp", mock.Anything, "taken@example.com", "hunter2hunter2", "someone", "").Return(nil, nil, services.ErrEmailExists)

	body, _ := json.Marshal(map[string]string{
		"email":    "taken@example.com",
		"password": "hunter2hunter2",
		"username": "someone",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signup", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockUserSvc.AssertExpectations(t)
}

func TestRestAuthHandler_SignUp_DuplicateUsername(t *testing.T) {
	mockUserSvc := new(MockUserService)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, nil)

	mockUserSvc.On("SignUp", mock.Anything, "new@example.com", "hunter2hunter2", "taken_name", "").Return(nil, nil, services.ErrUsernameExists)

	body, _ := json.Marshal(map[string]string{
		"email":    "new@example.com",
		"password": "hunter2hunter2",
		"username": "taken_name",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signup", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "Username")
	mockUserSvc.AssertExpectations(t)
}

func TestRestAuthHandler_SignUp_WeakPassword(t *testing.T) {
	mockUserSvc := new(MockUserService)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, nil)

	body, _ := json.Marshal(map[string]string{
		"email":    "ana@example.com",
		"password": "short",
		"username": "brickana",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signup", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUserSvc.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRestAuthHandler_SignUp_InvalidUsername(t *testing.T) {
	mockUserSvc := new(MockUserService)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, nil)

	body, _ := json.Marshal(map[string]string{
		"email":    "ana@example.com",
		"password": "hunter2hunter2",
		"username": "no spaces allowed",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signup", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUserSvc.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRestAuthHandler_SignIn_Success(t *testing.T) {
	mockUserSvc := new(MockUserService)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, nil)

	user := &models.User{Base: models.NewBase(), Email: "ana@example.com", Activated: true}
	mockUserSvc.On("Authenticate", mock.Anything, "brickana", "hunter2hunter2").Return(user, nil)

	body, _ := json.Marshal(map[string]string{
		"identifier": "brickana",
		"password":   "hunter2hunter2",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signin", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	mockUserSvc.AssertExpectations(t)
}

func TestRestAuthHandler_SignIn_InvalidCredentials(t *testing.T) {
	mockUserSvc := new(MockUserService)
	r := setupAuthRouter(authTestConfig(), mockUserSvc, nil)

	mockUserSvc.On("Authenticate", mock.Anything, "brickana", "wrong").Return(nil, services.ErrInvalidCredentials)

	body, _ := json.Marshal(map[string]string{
		"identifier": "brickana",
		"password":   "wrong",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/auth/signin", bytes.NewBuffer(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockUserSvc.AssertExpectations(t)
}
