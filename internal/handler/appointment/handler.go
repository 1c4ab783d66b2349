package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/joez89/autism-center-api/internal/handler"
	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/service/scheduling"
)

type Handler struct {
	service  *scheduling.Service
	validate *validator.Validate
}

func NewHandler(service *scheduling.Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.POST("", h.Book)
		appointments.GET("", h.List)
		appointments.GET("/:id", h.Get)
		appointments.POST("/:id/confirm", h.Confirm)
		appointments.POST("/:id/start", h.Start)
		appointments.POST("/:id/complete", h.Complete)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.PUT("/:id/reschedule", h.Reschedule)
		appointments.GET("/:id/can-reschedule", h.CanReschedule)
	}
}

type bookRequest struct {
	DoctorID        uuid.UUID `json:"doctor_id" validate:"required"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Patient         struct {
		Name                  string  `json:"name" validate:"required"`
		Age                   int     `json:"age" validate:"required,gt=0"`
		MedicalHistory        *string `json:"medical_history"`
		Reason                *string `json:"reason"`
		EmergencyContactName  *string `json:"emergency_contact_name"`
		EmergencyContactPhone *string `json:"emergency_contact_phone"`
	} `json:"patient" validate:"required"`
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	patient := model.PatientInfo{
		Name:                  req.Patient.Name,
		Age:                   req.Patient.Age,
		MedicalHistory:        req.Patient.MedicalHistory,
		Reason:                req.Patient.Reason,
		EmergencyContactName:  req.Patient.EmergencyContactName,
		EmergencyContactPhone: req.Patient.EmergencyContactPhone,
	}

	appointment, err := h.service.BookAppointment(c.Request.Context(), userID(c), req.DoctorID, req.StartTime, req.DurationMinutes, patient)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appointment))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	appointment, err := h.service.GetAppointment(c.Request.Context(), userID(c), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) List(c *gin.Context) {
	appointments, err := h.service.ListAppointments(c.Request.Context(), userID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, h.service.ConfirmAppointment)
}

func (h *Handler) Start(c *gin.Context) {
	h.transition(c, h.service.StartAppointment)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.CompleteAppointment)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
	}

	appointment, err := h.service.CancelAppointment(c.Request.Context(), userID(c), id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appointment, err := h.service.RescheduleAppointment(c.Request.Context(), userID(c), id, req.StartTime)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) CanReschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	newStart, err := time.Parse(time.RFC3339, c.Query("start_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid start_time, expected RFC3339"))
		return
	}

	ok, err := h.service.CanReschedule(c.Request.Context(), id, newStart)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"can_reschedule": ok}))
}

func (h *Handler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.Appointment, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	appointment, err := fn(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func userID(c *gin.Context) uuid.UUID {
	id, _ := c.Get("user_id")
	uid, _ := id.(uuid.UUID)
	return uid
}
