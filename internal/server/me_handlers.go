package server

import (
	"koydenal/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyListings handles GET /api/me/listings
// @Summary My listings
// @Description The caller's listings in every review status
// @Tags me
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.Page[models.Listing]
// @Security BearerAuth
// @Router /me/listings [get]
func (s *Server) GetMyListings(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	result, err := s.ownerService.MyListings(c.UserContext(), mustUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// UpdateMyListing handles PUT /api/me/listings/:id
// @Summary Edit my listing
// @Tags me
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param request body service.ListingFields true "Listing fields"
// @Success 200 {object} models.Listing
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /me/listings/{id} [put]
func (s *Server) UpdateMyListing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var fields service.ListingFields
	if err := c.BodyParser(&fields); err != nil {
		return invalidBody(c)
	}
	listing, err := s.ownerService.UpdateMyListing(c.UserContext(), mustUserID(c), id, fields)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// DeleteMyListing handles DELETE /api/me/listings/:id
// @Summary Delete my listing
// @Tags me
// @Param id path string true "Listing ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /me/listings/{id} [delete]
func (s *Server) DeleteMyListing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.ownerService.DeleteMyListing(c.UserContext(), mustUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetMyFavorites handles GET /api/me/favorites
// @Summary Saved listings
// @Tags me
// @Produce json
// @Success 200 {array} models.Favorite
// @Security BearerAuth
// @Router /me/favorites [get]
func (s *Server) GetMyFavorites(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	favorites, err := s.ownerService.Favorites(c.UserContext(), mustUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(favorites)
}

// GetMyMessages handles GET /api/me/messages
// @Summary Inbox
// @Description Messages buyers sent about the caller's listings
// @Tags me
// @Produce json
// @Success 200 {array} models.ListingMessage
// @Security BearerAuth
// @Router /me/messages [get]
func (s *Server) GetMyMessages(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	messages, err := s.ownerService.Inbox(c.UserContext(), mustUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(messages)
}
