package server

import (
	"koydenal/internal/models"
	"koydenal/internal/service"

	"github.com/gofiber/fiber/v2"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// GetAdminStats handles GET /api/admin/stats
// @Summary Dashboard counts
// @Tags admin
// @Produce json
// @Success 200 {object} service.DashboardStats
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/stats [get]
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.approvalService.Stats(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(stats)
}

// GetAdminListings handles GET /api/admin/listings
// @Summary Review queue
// @Tags admin
// @Produce json
// @Param status query string false "pending, approved, rejected or all"
// @Param q query string false "Search in title and description"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.Page[models.Listing]
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/listings [get]
func (s *Server) GetAdminListings(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	result, err := s.approvalService.ListListings(c.UserContext(), service.AdminListingFilter{
		Status: c.Query("status", "all"),
		Search: c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// ApproveListing handles POST /api/admin/listings/:id/approve
// @Summary Approve listing
// @Tags admin
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/listings/{id}/approve [post]
func (s *Server) ApproveListing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.approvalService.ApproveListing(c.UserContext(), mustUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// RejectListing handles POST /api/admin/listings/:id/reject
// @Summary Reject listing
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param request body object{reason=string} true "Rejection reason"
// @Success 200 {object} models.Listing
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/listings/{id}/reject [post]
func (s *Server) RejectListing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req reasonRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	listing, err := s.approvalService.RejectListing(c.UserContext(), mustUserID(c), id, req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// parseToggle reads {"enabled": bool}. On failure it writes a 400 and returns errResponseWritten.
func parseToggle(c *fiber.Ctx) (bool, error) {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError(map[string]string{"enabled": "Bu alan zorunludur"}))
		return false, errResponseWritten
	}
	return *req.Enabled, nil
}

// SetListingFeatured handles POST /api/admin/listings/:id/featured
// @Summary Feature listing
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param request body object{enabled=bool} true "Featured flag"
// @Success 200 {object} models.Listing
// @Security BearerAuth
// @Router /admin/listings/{id}/featured [post]
func (s *Server) SetListingFeatured(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	on, err := parseToggle(c)
	if err != nil {
		return nil
	}
	listing, err := s.approvalService.ToggleFeatured(c.UserContext(), id, on)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// SetListingOpportunity handles POST /api/admin/listings/:id/opportunity
// @Summary Mark listing as opportunity
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param request body object{enabled=bool} true "Opportunity flag"
// @Success 200 {object} models.Listing
// @Security BearerAuth
// @Router /admin/listings/{id}/opportunity [post]
func (s *Server) SetListingOpportunity(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	on, err := parseToggle(c)
	if err != nil {
		return nil
	}
	listing, err := s.approvalService.ToggleOpportunity(c.UserContext(), id, on)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// GetListingActions handles GET /api/admin/listings/:id/actions
// @Summary Audit trail
// @Tags admin
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {array} models.AdminAction
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/listings/{id}/actions [get]
func (s *Server) GetListingActions(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	actions, err := s.approvalService.GetListingActions(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(actions)
}

// DeleteListing handles DELETE /api/admin/listings/:id
// @Summary Delete listing
// @Description Removes the listing, its messages, favorites, views and audit rows
// @Tags admin
// @Param id path string true "Listing ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/listings/{id} [delete]
func (s *Server) DeleteListing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.approvalService.DeleteListing(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAdminUsers handles GET /api/admin/users
// @Summary Users
// @Tags admin
// @Produce json
// @Param status query string false "pending, approved, rejected or all"
// @Param q query string false "Search in name and email"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.Page[models.User]
// @Security BearerAuth
// @Router /admin/users [get]
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	result, err := s.approvalService.ListUsers(c.UserContext(), service.AdminUserFilter{
		Status: c.Query("status", "all"),
		Search: c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// ApproveUser handles POST /api/admin/users/:id/approve
// @Summary Approve user
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/approve [post]
func (s *Server) ApproveUser(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.approvalService.ApproveUser(c.UserContext(), mustUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// RejectUser handles POST /api/admin/users/:id/reject
// @Summary Reject user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body object{reason=string} true "Rejection reason"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/reject [post]
func (s *Server) RejectUser(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req reasonRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	user, err := s.approvalService.RejectUser(c.UserContext(), mustUserID(c), id, req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete user
// @Description Removes the profile and every listing it owns
// @Tags admin
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	if id == mustUserID(c) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Kendi hesabınızı silemezsiniz"))
	}
	if err := s.approvalService.DeleteUser(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
