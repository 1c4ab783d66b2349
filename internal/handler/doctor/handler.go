package doctor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joez89/autism-center-api/internal/handler"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/internal/service/scheduling"
)

const defaultSlotDurationMinutes = 60

type Handler struct {
	doctors   repository.DoctorRepository
	scheduler *scheduling.Service
}

func NewHandler(doctors repository.DoctorRepository, scheduler *scheduling.Service) *Handler {
	return &Handler{doctors: doctors, scheduler: scheduler}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.GET("", h.List)
		doctors.GET("/:id", h.Get)
	}
}

// RegisterSlotRoutes is mounted separately from the profile reads: slot
// listings reflect live booking state and must never sit behind the
// response cache.
func (h *Handler) RegisterSlotRoutes(rg *gin.RouterGroup) {
	rg.GET("/doctors/:id/slots", h.Slots)
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.doctors.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	doctor, err := h.doctors.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

// Slots returns bookable start times for a doctor on a date. Query
// params: date=2026-09-01 (required), duration=60 (minutes, optional).
func (h *Handler) Slots(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid date, expected YYYY-MM-DD"))
		return
	}

	duration := defaultSlotDurationMinutes
	if raw := c.Query("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid duration"))
			return
		}
	}

	slots, err := h.scheduler.GetAvailableSlots(c.Request.Context(), id, date, duration)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"doctor_id":        id,
		"date":             date.Format("2006-01-02"),
		"duration_minutes": duration,
		"slots":            slots,
	}))
}
