package server

import (
	"io"
	"strings"

	"koydenal/internal/models"
	"koydenal/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const imagesFormField = "images[]"

// GetListings handles GET /api/listings
// @Summary Browse listings
// @Description Approved listings, newest first, with optional filters
// @Tags listings
// @Produce json
// @Param q query string false "Search in title and description"
// @Param category query string false "Category slug"
// @Param category_id query int false "Category id"
// @Param location query string false "Location substring"
// @Param type query string false "sale, wanted or barter"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param featured query bool false "Only currently featured"
// @Param opportunity query bool false "Only opportunities"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.Page[models.Listing]
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /listings [get]
func (s *Server) GetListings(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	minPrice, err := parseFloatQuery(c, "min_price")
	if err != nil {
		return respondServiceError(c, err)
	}
	maxPrice, err := parseFloatQuery(c, "max_price")
	if err != nil {
		return respondServiceError(c, err)
	}

	result, err := s.browseService.ListApproved(c.UserContext(), service.BrowseFilter{
		Search:       c.Query("q"),
		CategoryID:   uint(max(c.QueryInt("category_id", 0), 0)),
		CategorySlug: c.Query("category"),
		Location:     c.Query("location"),
		ListingType:  c.Query("type"),
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		Featured:     c.QueryBool("featured", false),
		Opportunity:  c.QueryBool("opportunity", false),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// GetListing handles GET /api/listings/:id
// @Summary Listing detail
// @Description One approved listing. Counts the view.
// @Tags listings
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id} [get]
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.browseService.GetApproved(c.UserContext(), id, viewerKey(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// GetCategories handles GET /api/categories
// @Summary Categories
// @Description Active categories in display order
// @Tags listings
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.browseService.Categories(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(categories)
}

// SubmitListing handles POST /api/listings
// @Summary Submit listing
// @Description Create a pending listing. Signed-in sellers own it; guests
// @Description receive a one-time secret for later edits.
// @Tags listings
// @Accept json,mpfd
// @Produce json
// @Param request body service.ListingFields true "Listing fields"
// @Success 201 {object} service.SubmitResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /listings [post]
func (s *Server) SubmitListing(c *fiber.Ctx) error {
	return s.submitListing(c, optionalUserID(c))
}

// SubmitGuestListing handles POST /api/guest/listings
// @Summary Submit guest listing
// @Description Create a pending listing without an account
// @Tags guest
// @Accept json,mpfd
// @Produce json
// @Param request body service.ListingFields true "Listing fields"
// @Success 201 {object} service.SubmitResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /guest/listings [post]
func (s *Server) SubmitGuestListing(c *fiber.Ctx) error {
	return s.submitListing(c, nil)
}

func (s *Server) submitListing(c *fiber.Ctx, userID *uuid.UUID) error {
	var fields service.ListingFields
	if err := c.BodyParser(&fields); err != nil {
		return invalidBody(c)
	}

	images, err := readImages(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Görseller okunamadı"))
	}

	result, err := s.listingService.Submit(c.UserContext(), service.SubmitListingInput{
		Fields: fields,
		Images: images,
		UserID: userID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// readImages collects the files of a multipart submission. JSON bodies carry none.
func readImages(c *fiber.Ctx) ([]service.ImageUpload, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	files := form.File[imagesFormField]
	if len(files) == 0 {
		files = form.File["images"]
	}
	uploads := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, service.ImageUpload{Filename: fh.Filename, Content: content})
	}
	return uploads, nil
}

// AddFavorite handles POST /api/listings/:id/favorite
// @Summary Save listing
// @Tags listings
// @Param id path string true "Listing ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /listings/{id}/favorite [post]
func (s *Server) AddFavorite(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.ownerService.AddFavorite(c.UserContext(), mustUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveFavorite handles DELETE /api/listings/:id/favorite
// @Summary Unsave listing
// @Tags listings
// @Param id path string true "Listing ID"
// @Success 204
// @Security BearerAuth
// @Router /listings/{id}/favorite [delete]
func (s *Server) RemoveFavorite(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.ownerService.RemoveFavorite(c.UserContext(), mustUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendListingMessage handles POST /api/listings/:id/messages
// @Summary Message the seller
// @Tags listings
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param request body service.SendMessageInput true "Message"
// @Success 201 {object} models.ListingMessage
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id}/messages [post]
func (s *Server) SendListingMessage(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req service.SendMessageInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	req.ListingID = id
	req.SenderID = optionalUserID(c)

	msg, err := s.ownerService.SendMessage(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetFeatureFlags returns configured feature flags and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}
	subject := optionalUserID(c)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(subject),
	})
}
