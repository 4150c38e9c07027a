package server

import (
	"errors"
	"time"

	"koydenal/internal/models"
	"koydenal/internal/service"
	"koydenal/internal/session"

	"github.com/gofiber/fiber/v2"
)

// AuthResponse is returned by every endpoint that opens a session.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	IsAdmin   bool         `json:"is_admin"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create a pending account and open a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Account details"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := s.userService.Register(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}

	sess, err := s.sessions.Issue(c.UserContext(), user.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
	})
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	ctx := c.UserContext()
	sess, err := s.sessions.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrBadCredentials) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(session.ErrBadCredentials.Error()))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	user, err := s.userService.Profile(ctx, sess.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(AuthResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
		IsAdmin:   s.adminGate.Current(user.ID).IsAdmin(),
	})
}

// AdminLogin handles POST /api/auth/admin/login
// @Summary Admin login
// @Description Sign in and require an approved admin profile. Rejected
// @Description attempts leave no session behind.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /auth/admin/login [post]
func (s *Server) AdminLogin(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	ctx := c.UserContext()
	sess, err := session.AdminLogin(ctx, s.sessions, s.adminGate, req.Email, req.Password)
	if err != nil {
		return respondAdminLoginError(c, err)
	}

	user, err := s.userService.Profile(ctx, sess.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(AuthResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
		IsAdmin:   true,
	})
}

func respondAdminLoginError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, session.ErrBadCredentials):
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError(err.Error()))
	case errors.Is(err, session.ErrNotAdmin), errors.Is(err, session.ErrAdminNotApproved):
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError(err.Error()))
	case errors.Is(err, session.ErrProfileLookup):
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			&models.AppError{Code: models.CodeInternal, Message: err.Error()})
	default:
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current token
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	sess, _ := c.Locals("session").(*session.Session)
	if err := s.sessions.SignOut(c.UserContext(), sess); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"message": "Çıkış yapıldı"})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Description Profile of the signed-in user with the admin verdict
// @Tags auth
// @Produce json
// @Success 200 {object} object{user=models.User,is_admin=bool,admin_status=string}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.Profile(c.UserContext(), mustUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	// AuthRequired restored the session, which refreshed the gate's verdict.
	verdict := s.adminGate.Current(user.ID)
	return c.JSON(fiber.Map{
		"user":         user,
		"is_admin":     verdict.IsAdmin(),
		"admin_status": verdict.String(),
	})
}
