package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/facility_triage/internal/auth"
	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/repositories"
	"github.com/facility_triage/pkg/db"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

const authSecret = "handler-test-secret"

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "auth.db"), db.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	users := repositories.NewGormUserRepository(gdb)
	require.NoError(t, users.Create(context.Background(), &models.User{
		Email:        "sam@campus.edu",
		DisplayName:  "Sam",
		PasswordHash: string(hash),
		Role:         models.RoleSupervisor,
	}))

	denylist := auth.NewMemoryDenylist()
	h := NewAuthHandler(users, authSecret, denylist)
	jwtMW := auth.JWTMiddleware(authSecret, denylist)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", jwtMW, h.Logout)
	r.GET("/auth/me", jwtMW, h.Me)
	return r
}

func withBearer(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginLogoutFlow(t *testing.T) {
	r := newAuthRouter(t)

	w := perform(r, http.MethodPost, "/auth/login", LoginRequest{Email: "Sam@Campus.edu", Password: "correct horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, UserInfo{Email: "sam@campus.edu", DisplayName: "Sam", Role: models.RoleSupervisor}, login.User)

	w = withBearer(r, http.MethodGet, "/auth/me", login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var me UserInfo
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &me))
	assert.Equal(t, "sam@campus.edu", me.Email)
	assert.Equal(t, models.RoleSupervisor, me.Role)

	w = withBearer(r, http.MethodPost, "/auth/logout", login.Token)
	require.Equal(t, http.StatusOK, w.Code)

	w = withBearer(r, http.MethodGet, "/auth/me", login.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := newAuthRouter(t)

	w := perform(r, http.MethodPost, "/auth/login", LoginRequest{Email: "sam@campus.edu", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodPost, "/auth/login", LoginRequest{Email: "nobody@campus.edu", Password: "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")

	w = perform(r, http.MethodPost, "/auth/login", LoginRequest{Email: "not-an-email", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
