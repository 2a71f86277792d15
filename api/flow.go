package api

import (
	"net/http"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/service/booking"
	"github.com/gin-gonic/gin"
)

// UserReader extracts the caller's user id from an Authorization header.
type UserReader interface {
	UserID(header string) (string, error)
}

type FlowHandler struct {
	service booking.FlowUseCase
	users   UserReader
}

type startFlowRequest struct {
	FlightID string `json:"flight_id" binding:"required"`
}

type passengersRequest struct {
	Passengers []domain.Passenger `json:"passengers"`
}

type seatsRequest struct {
	SeatIDs []string `json:"seat_ids"`
}

type extrasRequest struct {
	Extras []domain.ExtraSelection `json:"extras"`
}

type backRequest struct {
	Step string `json:"step" binding:"required"`
}

func NewFlowHandler(service booking.FlowUseCase, users UserReader) *FlowHandler {
	return &FlowHandler{service: service, users: users}
}

func (h *FlowHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.start)
	router.GET("", h.state)
	router.DELETE("", h.abandon)
	router.PUT("/passengers", h.savePassengers)
	router.PUT("/seats", h.saveSeats)
	router.PUT("/extras", h.saveExtras)
	router.POST("/back", h.back)
	router.POST("/submit", h.submit)
}

func (h *FlowHandler) start(c *gin.Context) {
	var req startFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	state, err := h.service.Start(c.Request.Context(), FlowID(c), req.FlightID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *FlowHandler) state(c *gin.Context) {
	state, err := h.service.State(c.Request.Context(), FlowID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *FlowHandler) savePassengers(c *gin.Context) {
	var req passengersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	state, err := h.service.SavePassengers(c.Request.Context(), FlowID(c), req.Passengers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *FlowHandler) saveSeats(c *gin.Context) {
	var req seatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	state, err := h.service.SaveSeats(c.Request.Context(), FlowID(c), req.SeatIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *FlowHandler) saveExtras(c *gin.Context) {
	var req extrasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	state, err := h.service.SaveExtras(c.Request.Context(), FlowID(c), req.Extras)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *FlowHandler) back(c *gin.Context) {
	var req backRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	step, err := domain.ParseStep(req.Step)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	state, err := h.service.Back(c.Request.Context(), FlowID(c), step)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *FlowHandler) submit(c *gin.Context) {
	userID, err := h.users.UserID(c.GetHeader("Authorization"))
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := h.service.Submit(c.Request.Context(), FlowID(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

func (h *FlowHandler) abandon(c *gin.Context) {
	if err := h.service.Abandon(c.Request.Context(), FlowID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
