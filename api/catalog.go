package api

import (
	"net/http"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the static seat map and extras catalog the booking
// wizard renders.
type CatalogHandler struct {
	extras []domain.Extra
}

func NewCatalogHandler(extras []domain.Extra) *CatalogHandler {
	return &CatalogHandler{extras: extras}
}

func (h *CatalogHandler) Register(router *gin.RouterGroup) {
	router.GET("/seatmap", h.seatMap)
	router.GET("/extras", h.listExtras)
}

func (h *CatalogHandler) seatMap(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rows":    domain.SeatRows,
		"letters": domain.SeatLetters,
		"seats":   domain.SeatMap(),
	})
}

func (h *CatalogHandler) listExtras(c *gin.Context) {
	c.JSON(http.StatusOK, h.extras)
}
