package availability

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hirelink-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the availability service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches availability routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/employers/:id/availability", h.put)
	rg.GET("/employers/:id/availability", h.get)
}

type profileRequest struct {
	WorkingDays   []int  `json:"working_days"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Timezone      string `json:"timezone"`
	SlotMinutes   int    `json:"slot_minutes"`
	BufferMinutes int    `json:"buffer_minutes"`
}

func (h *Handler) put(c *gin.Context) {
	employerID := c.Param("id")
	c.Set("employerId", employerID)
	if employerID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "employer id is required", nil)
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	saved, err := h.Svc.Save(c.Request.Context(), Profile{
		EmployerID:    employerID,
		WorkingDays:   req.WorkingDays,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Timezone:      req.Timezone,
		SlotMinutes:   req.SlotMinutes,
		BufferMinutes: req.BufferMinutes,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidProfile):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save availability", nil)
		}
		return
	}

	respond.OK(c, saved)
}

func (h *Handler) get(c *gin.Context) {
	employerID := c.Param("id")
	c.Set("employerId", employerID)
	if employerID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "employer id is required", nil)
		return
	}

	profile, err := h.Svc.Get(c.Request.Context(), employerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "availability profile not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load availability", nil)
		}
		return
	}

	respond.OK(c, profile)
}
