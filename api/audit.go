package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/gin-gonic/gin"
)

type LedgerReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]domain.LedgerEntry, error)
}

// AuditHandler lists the recorded lifecycle of an order.
type AuditHandler struct {
	ledger LedgerReader
}

func NewAuditHandler(ledger LedgerReader) *AuditHandler {
	return &AuditHandler{ledger: ledger}
}

func (h *AuditHandler) Register(router *gin.RouterGroup) {
	router.GET("/orders/:id", h.listOrder)
}

func (h *AuditHandler) listOrder(c *gin.Context) {
	entries, err := h.ledger.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "entries": entries})
}
