package server

import (
	"errors"
	"strconv"
	"strings"

	"koydenal/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize    = 20
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseUUID extracts a route parameter as a UUID.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Geçersiz kimlik"))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

// parseFloatQuery returns nil when the parameter is absent.
func parseFloatQuery(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, models.NewFieldValidationError(map[string]string{key: "Geçerli bir sayı girin"})
	}
	return &v, nil
}

// currentUserID returns the authenticated user, if any.
func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals("userID").(uuid.UUID)
	return id, ok
}

// mustUserID is for handlers mounted behind AuthRequired.
func mustUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := currentUserID(c)
	return id
}

// optionalUserID returns a pointer to the authenticated user id, or nil for guests.
func optionalUserID(c *fiber.Ctx) *uuid.UUID {
	if id, ok := currentUserID(c); ok {
		return &id
	}
	return nil
}

// viewerKey identifies a detail-page viewer for view counting.
func viewerKey(c *fiber.Ctx) string {
	if id, ok := currentUserID(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.IP()
}

// mapServiceError maps a service error to the HTTP status to respond with.
func mapServiceError(err error) int {
	return models.StatusForError(err)
}

func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, mapServiceError(err), err)
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Geçersiz istek gövdesi"))
}
