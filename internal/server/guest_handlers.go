package server

import (
	"strings"

	"koydenal/internal/models"
	"koydenal/internal/service"

	"github.com/gofiber/fiber/v2"
)

// listingCapability reads the listing id and the guest secret. The header is
// preferred; ?secret= supports the edit link sent to guests.
func listingCapability(c *fiber.Ctx) (models.ListingCapability, error) {
	id, err := parseUUID(c, "id")
	if err != nil {
		return models.ListingCapability{}, err
	}
	secret := strings.TrimSpace(c.Get(listingSecretHeader))
	if secret == "" {
		secret = strings.TrimSpace(c.Query("secret"))
	}
	return models.ListingCapability{ListingID: id, Secret: secret}, nil
}

// GetGuestListing handles GET /api/guest/listings/:id
// @Summary Guest listing
// @Description Read a guest listing in any status with its secret
// @Tags guest
// @Produce json
// @Param id path string true "Listing ID"
// @Param X-Listing-Secret header string true "Listing secret"
// @Success 200 {object} models.Listing
// @Failure 404 {object} models.ErrorResponse
// @Router /guest/listings/{id} [get]
func (s *Server) GetGuestListing(c *fiber.Ctx) error {
	capability, err := listingCapability(c)
	if err != nil {
		return nil
	}
	listing, err := s.guestService.GetListing(c.UserContext(), capability)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// UpdateGuestListing handles PUT /api/guest/listings/:id
// @Summary Edit guest listing
// @Tags guest
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param X-Listing-Secret header string true "Listing secret"
// @Param request body service.ListingFields true "Listing fields"
// @Success 200 {object} models.Listing
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /guest/listings/{id} [put]
func (s *Server) UpdateGuestListing(c *fiber.Ctx) error {
	capability, err := listingCapability(c)
	if err != nil {
		return nil
	}
	var fields service.ListingFields
	if err := c.BodyParser(&fields); err != nil {
		return invalidBody(c)
	}

	ctx := c.UserContext()
	ok, err := s.guestService.UpdateListing(ctx, capability, fields)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusForbidden, models.NewSecretMismatchError())
	}

	listing, err := s.guestService.GetListing(ctx, capability)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// DeleteGuestListing handles DELETE /api/guest/listings/:id
// @Summary Delete guest listing
// @Tags guest
// @Param id path string true "Listing ID"
// @Param X-Listing-Secret header string true "Listing secret"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /guest/listings/{id} [delete]
func (s *Server) DeleteGuestListing(c *fiber.Ctx) error {
	capability, err := listingCapability(c)
	if err != nil {
		return nil
	}
	ok, err := s.guestService.DeleteListing(c.UserContext(), capability)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusForbidden, models.NewSecretMismatchError())
	}
	return c.SendStatus(fiber.StatusNoContent)
}
