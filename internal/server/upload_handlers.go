package server

import (
	"errors"
	"path"
	"strings"

	"koydenal/internal/models"
	"koydenal/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// uploadsPrefix is the route uploads are served under. An absolute public URL
// means a CDN fronts the bucket; the API still serves /uploads for local use.
func (s *Server) uploadsPrefix() string {
	if p := s.config.StoragePublicURL; strings.HasPrefix(p, "/") {
		return strings.TrimRight(p, "/")
	}
	return "/uploads"
}

// ServeUpload handles GET /uploads/*
func (s *Server) ServeUpload(c *fiber.Ctx) error {
	key := c.Params("*")
	data, err := s.store.Get(c.UserContext(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Image", key))
		case errors.Is(err, storage.ErrInvalidKey):
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Geçersiz dosya yolu"))
		default:
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
	}

	c.Type(strings.TrimPrefix(path.Ext(key), "."))
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(data)
}
