package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/facility_triage/internal/auth"
	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/repositories"
	"github.com/facility_triage/pkg/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long issued tokens stay valid.
const TokenTTL = 24 * time.Hour

// AuthHandler is the built-in identity provider.
type AuthHandler struct {
	users    repositories.UserRepository
	secret   string
	denylist auth.Denylist
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, secret string, denylist auth.Denylist) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, denylist: denylist}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserInfo  `json:"user"`
}

type UserInfo struct {
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName,omitempty"`
	Role        models.Role `json:"role"`
}

// Login godoc
// @Summary Log in
// @Description Verifies email and password and returns a JWT carrying the caller's role
// @Tags auth
// @Accept  json
// @Produce  json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} utils.SuccessResponse{data=LoginResponse} "Token and user info"
// @Failure 400 {object} utils.APIErrorResponse "Invalid request"
// @Failure 401 {object} utils.APIErrorResponse "Invalid email or password"
// @Failure 500 {object} utils.APIErrorResponse "Could not issue token"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, utils.ParseErrors(err))
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			log.Printf("ERROR: login lookup failed: %v", err)
		}
		utils.RespondUnauthorizedError(c, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		utils.RespondUnauthorizedError(c, "Invalid email or password")
		return
	}

	token, exp, err := auth.IssueToken(h.secret, user, TokenTTL)
	if err != nil {
		utils.RespondInternalServerError(c, "Could not issue token", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      UserInfo{Email: user.Email, DisplayName: user.DisplayName, Role: user.Role},
	}, "Login successful")
}

// Logout godoc
// @Summary Log out
// @Description Invalidates the current token until it would have expired.
// @Tags auth
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} utils.SuccessResponse "Logged out"
// @Failure 400 {object} utils.APIErrorResponse "Token context missing"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	jti := c.GetString(auth.ContextJTI)
	expVal, expExists := c.Get(auth.ContextExp)
	exp, okEXP := expVal.(time.Time)
	if jti == "" || !expExists || !okEXP {
		utils.RespondAPIError(c, http.StatusBadRequest, "Logout context error: JTI or EXP not found in context", nil)
		return
	}
	if err := h.denylist.Add(c.Request.Context(), jti, exp); err != nil {
		utils.RespondInternalServerError(c, "Could not revoke token", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, nil, "Logged out")
}

// Me godoc
// @Summary Current identity
// @Tags auth
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} utils.SuccessResponse{data=UserInfo}
// @Failure 401 {object} utils.APIErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	utils.RespondSuccess(c, http.StatusOK, UserInfo{Email: actor.ID, Role: actor.Role}, "")
}
