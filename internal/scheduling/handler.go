package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hirelink-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the scheduling service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches scheduling routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/employers/:id/slots", h.slots)
	rg.POST("/attempts", h.createOffer)
	rg.GET("/attempts/:id", h.get)
	rg.POST("/attempts/:id/pick", h.pick)
	rg.POST("/attempts/:id/confirm", h.confirm)
	rg.POST("/attempts/:id/cancel", h.cancel)
}

type slotRange struct {
	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`
}

type offerRequest struct {
	JobID         string      `json:"job_id"`
	ApplicationID string      `json:"application_id"`
	EmployerID    string      `json:"employer_id"`
	CandidateID   string      `json:"candidate_id"`
	Slots         []slotRange `json:"slots"`
}

type pickRequest struct {
	SlotID string `json:"slot_id"`
}

type cancelRequest struct {
	Source string `json:"source"`
}

type attemptResponse struct {
	Attempt Attempt       `json:"attempt"`
	Slots   []OfferedSlot `json:"slots,omitempty"`
}

func (h *Handler) slots(c *gin.Context) {
	employerID := c.Param("id")
	c.Set("employerId", employerID)

	slots, err := h.Svc.OpenSlots(c.Request.Context(), employerID, c.Query("from"))
	if err != nil {
		h.respondError(c, err, "failed to generate slots")
		return
	}
	respond.OK(c, gin.H{"slots": slots})
}

func (h *Handler) createOffer(c *gin.Context) {
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	input := OfferInput{
		JobID:         req.JobID,
		ApplicationID: req.ApplicationID,
		EmployerID:    req.EmployerID,
		CandidateID:   req.CandidateID,
	}
	for _, s := range req.Slots {
		input.Slots = append(input.Slots, Range{Start: s.StartUTC.UTC(), End: s.EndUTC.UTC()})
	}

	attempt, slots, err := h.Svc.SendOffer(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, "failed to create offer")
		return
	}
	c.Set("attemptId", attempt.ID)
	c.Set("employerId", attempt.EmployerID)
	c.Set("stateTransition", string(attempt.State))
	respond.JSON(c, http.StatusCreated, attemptResponse{Attempt: attempt, Slots: slots})
}

func (h *Handler) get(c *gin.Context) {
	attempt, slots, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to load attempt")
		return
	}
	respond.OK(c, attemptResponse{Attempt: attempt, Slots: slots})
}

func (h *Handler) pick(c *gin.Context) {
	var req pickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	attempt, err := h.Svc.PickSlot(c.Request.Context(), c.Param("id"), req.SlotID)
	if err != nil {
		h.respondError(c, err, "failed to pick slot")
		return
	}
	c.Set("attemptId", attempt.ID)
	c.Set("employerId", attempt.EmployerID)
	c.Set("stateTransition", string(attempt.State))
	respond.OK(c, attemptResponse{Attempt: attempt})
}

func (h *Handler) confirm(c *gin.Context) {
	attempt, err := h.Svc.EmployerConfirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to confirm attempt")
		return
	}
	c.Set("attemptId", attempt.ID)
	c.Set("employerId", attempt.EmployerID)
	c.Set("stateTransition", string(attempt.State))
	respond.OK(c, attemptResponse{Attempt: attempt})
}

func (h *Handler) cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	attempt, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"), CancelSource(req.Source))
	if err != nil {
		h.respondError(c, err, "failed to cancel attempt")
		return
	}
	c.Set("attemptId", attempt.ID)
	c.Set("employerId", attempt.EmployerID)
	c.Set("stateTransition", string(attempt.State))
	respond.OK(c, attemptResponse{Attempt: attempt})
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrSlotNotOffered):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "attempt not found", nil)
	case errors.Is(err, ErrDuplicateAttempt):
		respond.Error(c, http.StatusConflict, "conflict", "an attempt already exists for this application", nil)
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrSlotTaken):
		respond.Error(c, http.StatusConflict, "conflict", "attempt already changed, re-fetch and retry", nil)
	case errors.Is(err, ErrCalendarFailed):
		respond.Error(c, http.StatusBadGateway, "calendar_unavailable", "calendar provider unavailable, retry later", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
