package handlers

import (
	"net/http"

	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HomeHandler struct {
	DB  *gorm.DB
	Log *logger.Logger
}

// Index lists the whole catalog for the storefront.
func (h *HomeHandler) Index(c *gin.Context) {
	var products []models.Product
	if err := h.DB.WithContext(c.Request.Context()).Order("name ASC").Find(&products).Error; err != nil {
		h.Log.Error(c.Request.Context(), "home.products_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, dtos.NewProductDTOs(products))
}
