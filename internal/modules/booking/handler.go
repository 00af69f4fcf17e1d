package booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"slapp/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rooms := rg.Group("/rooms/:id")
	{
		rooms.POST("/reservations", h.CreateReservation)
		rooms.POST("/quote", h.Quote)
		rooms.GET("/reservations", h.RoomSchedule)
	}

	reservations := rg.Group("/reservations/:id")
	{
		reservations.GET("", h.GetReservation)
		reservations.POST("/approve", h.Approve)
		reservations.POST("/reject", h.Reject)
		reservations.POST("/cancel", h.Cancel)
	}

	rg.GET("/studios/:id/reservations/pending", h.PendingForStudio)
	rg.GET("/owners/:id/stats", h.OwnerStats)
}

// CreateReservation handles POST /api/v1/rooms/:id/reservations
func (h *Handler) CreateReservation(c *gin.Context) {
	roomID, ok := paramID(c, "room")
	if !ok {
		return
	}

	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err)
		return
	}
	req.RoomID = roomID

	r, err := h.service.CreateReservation(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, gin.H{"reservation": r})
}

// Quote handles POST /api/v1/rooms/:id/quote
func (h *Handler) Quote(c *gin.Context) {
	roomID, ok := paramID(c, "room")
	if !ok {
		return
	}

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err)
		return
	}

	q, err := h.service.Quote(c.Request.Context(), roomID, req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quote": q})
}

// RoomSchedule handles GET /api/v1/rooms/:id/reservations?date=YYYY-MM-DD
func (h *Handler) RoomSchedule(c *gin.Context) {
	roomID, ok := paramID(c, "room")
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "date query parameter is required")
		return
	}

	list, err := h.service.RoomSchedule(c.Request.Context(), roomID, date)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservations": list})
}

// GetReservation handles GET /api/v1/reservations/:id
func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := paramID(c, "reservation")
	if !ok {
		return
	}

	r, err := h.service.GetReservation(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservation": r})
}

func (h *Handler) Approve(c *gin.Context) {
	id, ok := paramID(c, "reservation")
	if !ok {
		return
	}

	r, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservation": r})
}

func (h *Handler) Reject(c *gin.Context) {
	id, ok := paramID(c, "reservation")
	if !ok {
		return
	}

	var req RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.InvalidBody(c, err)
			return
		}
	}

	r, err := h.service.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservation": r})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "reservation")
	if !ok {
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err)
		return
	}

	out, err := h.service.Cancel(c.Request.Context(), id, req.Actor, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// PendingForStudio handles GET /api/v1/studios/:id/reservations/pending
func (h *Handler) PendingForStudio(c *gin.Context) {
	studioID, ok := paramID(c, "studio")
	if !ok {
		return
	}

	list, err := h.service.PendingForStudio(c.Request.Context(), studioID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservations": list})
}

// OwnerStats handles GET /api/v1/owners/:id/stats?month=YYYY-MM
func (h *Handler) OwnerStats(c *gin.Context) {
	ownerID, ok := paramID(c, "owner")
	if !ok {
		return
	}

	stats, err := h.service.OwnerStats(c.Request.Context(), ownerID, c.Query("month"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

func paramID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+what+" ID")
		return 0, false
	}
	return id, true
}

var validationCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidInterval, "INVALID_INTERVAL"},
	{ErrOutsideOperatingHours, "OUTSIDE_OPERATING_HOURS"},
	{ErrBlockedByOverride, "BLOCKED_BY_OVERRIDE"},
	{ErrRoomInactive, "ROOM_INACTIVE"},
}

func handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	case errors.Is(err, ErrDoubleBooked):
		response.Error(c, http.StatusConflict, "DOUBLE_BOOKED", "Room is already booked for the selected time")
		return
	case errors.Is(err, ErrInvalidTransition):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
		return
	case errors.Is(err, ErrUnknownActor):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if errors.Is(err, ErrValidationFailed) {
		for _, vc := range validationCodes {
			if errors.Is(err, vc.err) {
				response.Error(c, http.StatusUnprocessableEntity, vc.code, err.Error())
				return
			}
		}
		response.Error(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}

	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
