package events

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/pkg/response"
	"github.com/sheger-events/backend/pkg/storage"
)

var (
	// ErrInvalidDateRange is returned when an event ends on or before it starts.
	ErrInvalidDateRange = errors.New("end date must be after start date")
	// ErrPastStartDate is returned when an event would start in the past.
	ErrPastStartDate = errors.New("start date cannot be in the past")
)

// CreateRequest is the body for POST /v1/events.
type CreateRequest struct {
	Title        string    `json:"title" binding:"required,min=3"`
	Description  string    `json:"description"`
	Category     string    `json:"category" binding:"required"`
	StartDate    time.Time `json:"startDate" binding:"required"`
	EndDate      time.Time `json:"endDate" binding:"required"`
	Venue        string    `json:"venue" binding:"required"`
	VenueAddress string    `json:"venueAddress"`
}

// UpdateRequest is the body for PUT /v1/events/:id. All fields optional.
type UpdateRequest struct {
	Title        *string    `json:"title" binding:"omitempty,min=3"`
	Description  *string    `json:"description"`
	Category     *string    `json:"category"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	Venue        *string    `json:"venue"`
	VenueAddress *string    `json:"venueAddress"`
	Status       *string    `json:"status" binding:"omitempty,oneof=draft active ended cancelled"`
}

// Handler handles event CRUD, moderation and poster endpoints.
type Handler struct {
	store  Store
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates an events handler. s3 may be nil; poster endpoints
// then report storage as unavailable.
func NewHandler(store Store, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{store: store, s3: s3, logger: logger}
}

func validateDates(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidDateRange
	}
	if start.Before(time.Now()) {
		return ErrPastStartDate
	}
	return nil
}

// List handles GET /v1/events. Organizers see their own events; admins see
// all events and may narrow with ?organizerId=.
func (h *Handler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)

	filter := Filter{
		Category: c.Query("category"),
		Page:     atoiDefault(c.Query("page"), 1),
		Limit:    atoiDefault(c.Query("limit"), 20),
	}
	switch s := c.Query("status"); s {
	case "":
	case string(models.EventStatusDraft), string(models.EventStatusActive),
		string(models.EventStatusEnded), string(models.EventStatusCancelled):
		filter.Status = models.EventStatus(s)
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}

	if claims.IsAdmin() {
		if org := c.Query("organizerId"); org != "" {
			id, err := uuid.Parse(org)
			if err != nil {
				response.BadRequest(c, "invalid organizer id")
				return
			}
			filter.OrganizerID = id
		}
	} else {
		filter.OrganizerID = claims.UserID
	}

	list, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	response.Paginated(c, list, response.NewMeta(page, limit, total))
}

// Get handles GET /v1/events/:id. RequireEventAccess has already loaded the event.
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, EventFromContext(c))
}

// Create handles POST /v1/events. New events start as unapproved drafts.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	claims := middleware.CurrentClaims(c)
	event, err := h.store.Create(c.Request.Context(), CreateParams{
		OrganizerID:  claims.UserID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Venue:        req.Venue,
		VenueAddress: req.VenueAddress,
	})
	if err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, event)
}

// Update handles PUT /v1/events/:id. The date pair is re-validated against
// the stored values when only one side changes.
func (h *Handler) Update(c *gin.Context) {
	event := EventFromContext(c)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	if req.StartDate != nil || req.EndDate != nil {
		start, end := event.StartDate, event.EndDate
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.EndDate != nil {
			end = *req.EndDate
		}
		if !end.After(start) {
			response.BadRequest(c, ErrInvalidDateRange.Error())
			return
		}
		if req.StartDate != nil && start.Before(time.Now()) {
			response.BadRequest(c, ErrPastStartDate.Error())
			return
		}
	}

	params := UpdateParams{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Venue:        req.Venue,
		VenueAddress: req.VenueAddress,
	}
	if req.Status != nil {
		s := models.EventStatus(*req.Status)
		params.Status = &s
	}

	updated, err := h.store.Update(c.Request.Context(), event.ID, params)
	if err != nil {
		h.logger.Error("update event", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	if updated == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /v1/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	event := EventFromContext(c)

	if err := h.store.Delete(c.Request.Context(), event.ID); err != nil {
		if errors.Is(err, ErrEventHasSales) {
			response.BadRequest(c, "cannot delete an event with recorded sales")
			return
		}
		h.logger.Error("delete event", zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}

	if h.s3 != nil && event.PosterKey != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), *event.PosterKey); err != nil {
			h.logger.Warn("delete poster object", zap.Error(err), zap.String("key", *event.PosterKey))
		}
	}
	response.OKMessage(c, nil, "event deleted")
}

// Approve handles POST /v1/admin/events/:id/approve (admin only).
func (h *Handler) Approve(c *gin.Context) {
	h.moderate(c, h.store.Approve, "event approved")
}

// Reject handles POST /v1/admin/events/:id/reject (admin only).
func (h *Handler) Reject(c *gin.Context) {
	h.moderate(c, h.store.Reject, "event rejected")
}

func (h *Handler) moderate(c *gin.Context, op func(ctx context.Context, id uuid.UUID) (*models.Event, error), message string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := op(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("moderate event", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OKMessage(c, event, message)
}

// UploadPoster handles POST /v1/events/:id/poster (multipart field "poster").
func (h *Handler) UploadPoster(c *gin.Context) {
	if h.s3 == nil {
		response.BadRequest(c, "poster storage is not configured")
		return
	}
	event := EventFromContext(c)

	fileHeader, err := c.FormFile("poster")
	if err != nil {
		response.BadRequest(c, "poster file is required")
		return
	}
	if fileHeader.Size > storage.MaxPosterFileSize {
		response.BadRequest(c, "poster exceeds the 5MB size limit")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidatePosterType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "poster must be a jpeg, png or webp image")
		return
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read poster file")
		return
	}
	defer file.Close()

	key := storage.PosterKey(event.ID.String(), fileHeader.Filename)
	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, file, fileHeader.Size); err != nil {
		h.logger.Error("upload poster", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload poster")
		return
	}

	updated, err := h.store.SetPosterKey(c.Request.Context(), event.ID, key)
	if err != nil {
		h.logger.Error("set poster key", zap.Error(err))
		response.Internal(c, "failed to save poster reference")
		return
	}
	response.OK(c, updated)
}

// PosterURL handles GET /v1/events/:id/poster-url.
func (h *Handler) PosterURL(c *gin.Context) {
	if h.s3 == nil {
		response.BadRequest(c, "poster storage is not configured")
		return
	}
	event := EventFromContext(c)
	if event.PosterKey == nil {
		response.NotFound(c, "event has no poster")
		return
	}

	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), *event.PosterKey, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign poster url", zap.Error(err), zap.String("key", *event.PosterKey))
		response.Internal(c, "failed to generate poster url")
		return
	}
	response.OK(c, gin.H{"url": url, "expiresIn": int(h.s3.PresignExpire().Seconds())})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
