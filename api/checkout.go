package api

import (
	"net/http"

	"github.com/Domenick1991/journeygate/internal/service/checkout"
	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	service checkout.CheckoutUseCase
}

func NewCheckoutHandler(service checkout.CheckoutUseCase) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

func (h *CheckoutHandler) Register(router *gin.RouterGroup) {
	router.GET("/:orderId", h.get)
	router.POST("/:orderId/pay", h.pay)
}

func (h *CheckoutHandler) get(c *gin.Context) {
	snapshot, err := h.service.Resolve(c.Request.Context(), FlowID(c), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *CheckoutHandler) pay(c *gin.Context) {
	var details checkout.PaymentDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	snapshot, err := h.service.Pay(c.Request.Context(), FlowID(c), c.Param("orderId"), details)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
