package handlers

import (
	"net/http"

	"storefront-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportProducts streams the whole catalog as an Excel workbook.
func (h *ProductHandler) ExportProducts(c *gin.Context) {
	var products []models.Product
	if err := h.DB.WithContext(c.Request.Context()).Order("name ASC").Find(&products).Error; err != nil {
		h.Log.Error(c.Request.Context(), "product.export_fetch_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	file, err := productWorkbook(products)
	if err != nil {
		h.Log.Error(c.Request.Context(), "product.export_build_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel sheet"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")

	if err := file.Write(c.Writer); err != nil {
		h.Log.Error(c.Request.Context(), "product.export_write_failed", err)
	}
}

func productWorkbook(products []models.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, err
	}

	headers := []string{"ProductId", "Name", "Description", "Price", "Stock", "ImageUrl", "CreatedAt", "UpdatedAt"}
	headerRow := sheet.AddRow()
	for _, header := range headers {
		headerRow.AddCell().SetString(header)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetString(p.ID.String())
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(derefString(p.Description))
		row.AddCell().SetString(p.Price.StringFixed(2))
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetString(derefString(p.ImageURL))
		row.AddCell().SetString(p.CreatedAt.Format(exportTimeLayout))
		row.AddCell().SetString(p.UpdatedAt.Format(exportTimeLayout))
	}

	return file, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
