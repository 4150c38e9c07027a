package server

import (
	"errors"
	"strings"

	"koydenal/internal/middleware"
	"koydenal/internal/models"
	"koydenal/internal/session"

	"github.com/gofiber/fiber/v2"
)

const listingSecretHeader = "X-Listing-Secret"

// bearerToken returns the token from "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// restoreSession validates the bearer token and stores the principal in
// locals and in the request context for logging. On failure it writes a 401
// and returns errResponseWritten.
func (s *Server) restoreSession(c *fiber.Ctx, token string) error {
	sess, err := s.sessions.Restore(c.UserContext(), token)
	if err != nil {
		msg := "Oturumunuz geçersiz veya süresi dolmuş"
		if errors.Is(err, session.ErrRevoked) {
			msg = "Oturum sonlandırılmış"
		}
		_ = models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		return errResponseWritten
	}

	c.Locals("userID", sess.UserID)
	c.Locals("session", sess)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), sess.UserID.String()))
	return nil
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Oturum açmanız gerekiyor"))
		}
		if err := s.restoreSession(c, token); err != nil {
			return nil
		}
		return c.Next()
	}
}

// OptionalAuth attaches the principal when a bearer token is sent. A token
// that is present but invalid is rejected rather than downgraded to a guest.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}
		if err := s.restoreSession(c, token); err != nil {
			return nil
		}
		return c.Next()
	}
}

// AdminRequired re-runs the admin gate on every request so that a revoked
// or demoted admin loses access immediately. Must follow AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := currentUserID(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Oturum açmanız gerekiyor"))
		}

		verdict, err := s.adminGate.Check(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError(session.ErrProfileLookup.Error()))
			}
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				&models.AppError{Code: models.CodeInternal, Message: session.ErrProfileLookup.Error(), Err: err})
		}
		switch verdict {
		case session.VerdictAdmin:
			return c.Next()
		case session.VerdictPendingAdmin:
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError(session.ErrAdminNotApproved.Error()))
		default:
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError(session.ErrNotAdmin.Error()))
		}
	}
}
