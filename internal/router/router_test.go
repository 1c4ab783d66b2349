package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joez89/autism-center-api/internal/middleware"
)

type countingDoctorHandler struct {
	listCalls int
	slotCalls int
}

func (h *countingDoctorHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/doctors", func(c *gin.Context) {
		h.listCalls++
		c.JSON(http.StatusOK, gin.H{"calls": h.listCalls})
	})
}

func (h *countingDoctorHandler) RegisterSlotRoutes(rg *gin.RouterGroup) {
	rg.GET("/doctors/:id/slots", func(c *gin.Context) {
		h.slotCalls++
		c.JSON(http.StatusOK, gin.H{"calls": h.slotCalls})
	})
}

type noopHandler struct{}

func (noopHandler) RegisterRoutes(*gin.RouterGroup) {}

func TestSlotListingsBypassResponseCache(t *testing.T) {
	doctors := &countingDoctorHandler{}
	log := zerolog.Nop()

	r := NewRouter(
		middleware.NewAuthMiddleware("test-secret"),
		noopHandler{},
		doctors,
		noopHandler{},
		&log,
		RouterConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 100,
			Timeout:        5 * time.Second,
			DoctorCacheTTL: time.Minute,
		},
	)
	r.Setup()

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
		return w
	}

	// availability changes under concurrent bookings, so every slot
	// request must reach the handler
	get("/api/v1/doctors/4a4e8e25-0001-0001-0001-000000000001/slots?date=2026-09-07")
	get("/api/v1/doctors/4a4e8e25-0001-0001-0001-000000000001/slots?date=2026-09-07")
	assert.Equal(t, 2, doctors.slotCalls)

	// plain doctor reads are served from the response cache
	first := get("/api/v1/doctors")
	second := get("/api/v1/doctors")
	assert.Equal(t, 1, doctors.listCalls)
	assert.Equal(t, first.Body.String(), second.Body.String())
}
