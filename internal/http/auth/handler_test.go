package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"authsvc/internal/domain/models"
	authsvc "authsvc/internal/services/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	loginErr    error
	registerErr error
	refreshErr  error
	revoked     bool
	verifyOK    bool
	result      *authsvc.AuthResult
}

func (s *stubService) Login(context.Context, string, string, string, string) (*authsvc.AuthResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.result, nil
}

func (s *stubService) Register(context.Context, string, string, string, string) (*authsvc.AuthResult, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.result, nil
}

func (s *stubService) Refresh(context.Context, string, string, string) (*authsvc.AuthResult, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.result, nil
}

func (s *stubService) Revoke(context.Context, string) (bool, error) {
	return s.revoked, nil
}

func (s *stubService) RequestEmailVerification(context.Context, uuid.UUID) (string, error) {
	return "verification-token", nil
}

func (s *stubService) VerifyEmail(context.Context, uuid.UUID, string) (bool, error) {
	return s.verifyOK, nil
}

func newTestRouter(service *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewHandler(service, time.Second)
	grp := router.Group("/api/auth")
	grp.POST("/login", handler.Login)
	grp.POST("/register", handler.Register)
	grp.POST("/refresh", handler.Refresh)
	grp.POST("/verify-email", handler.VerifyEmail)

	return router
}

func okResult() *authsvc.AuthResult {
	return &authsvc.AuthResult{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(7 * 24 * time.Hour),
		User: models.UserView{
			ID:    uuid.New(),
			Email: "a@x.com",
			Role:  "Student",
		},
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errPayload(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestLoginSuccess(t *testing.T) {
	router := newTestRouter(&stubService{result: okResult()})

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email":"a@x.com","password":"Pw123456!"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token":"access"`)
}

func TestLoginFailuresShareOneMessage(t *testing.T) {
	badCreds := doJSON(t, newTestRouter(&stubService{loginErr: authsvc.ErrInvalidCredentials}),
		http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"wrong"}`)
	inactive := doJSON(t, newTestRouter(&stubService{loginErr: authsvc.ErrAccountInactive}),
		http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"Pw123456!"}`)

	assert.Equal(t, http.StatusUnauthorized, badCreds.Code)
	assert.Equal(t, http.StatusUnauthorized, inactive.Code)

	// The wire response must not reveal which check failed.
	assert.Equal(t, badCreds.Body.String(), inactive.Body.String())
}

func TestLoginValidation(t *testing.T) {
	router := newTestRouter(&stubService{result: okResult()})

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"password mismatch", authsvc.ErrPasswordMismatch, http.StatusBadRequest, "PASSWORD_MISMATCH"},
		{"invalid role", authsvc.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},
		{"email taken", authsvc.ErrEmailAlreadyRegistered, http.StatusConflict, "EMAIL_TAKEN"},
		{"store unavailable", authsvc.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubService{registerErr: tt.err})
			rec := doJSON(t, router, http.MethodPost, "/api/auth/register",
				`{"email":"a@x.com","password":"Pw123456!","confirm_password":"Pw123456!","role":"Student"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			code, _ := errPayload(t, rec)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRegisterSuccessIsCreated(t *testing.T) {
	router := newTestRouter(&stubService{result: okResult()})

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"email":"a@x.com","password":"Pw123456!","confirm_password":"Pw123456!","role":"Student"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRefreshInvalidToken(t *testing.T) {
	router := newTestRouter(&stubService{refreshErr: authsvc.ErrInvalidOrExpiredToken})

	rec := doJSON(t, router, http.MethodPost, "/api/auth/refresh",
		`{"refresh_token":"stale"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, message := errPayload(t, rec)
	assert.Equal(t, msgInvalidToken, message)
}

func TestVerifyEmail(t *testing.T) {
	userID := uuid.NewString()

	t.Run("success", func(t *testing.T) {
		router := newTestRouter(&stubService{verifyOK: true})
		rec := doJSON(t, router, http.MethodPost,
			"/api/auth/verify-email?userId="+userID+"&token=tok", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("mismatch", func(t *testing.T) {
		router := newTestRouter(&stubService{verifyOK: false})
		rec := doJSON(t, router, http.MethodPost,
			"/api/auth/verify-email?userId="+userID+"&token=tok", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad user id", func(t *testing.T) {
		router := newTestRouter(&stubService{verifyOK: true})
		rec := doJSON(t, router, http.MethodPost,
			"/api/auth/verify-email?userId=not-a-uuid&token=tok", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
