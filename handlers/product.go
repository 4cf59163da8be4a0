package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/models"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const productIndexPath = "/Product"

// ErrProductConflict is returned when an update matched no row although the
// product still exists.
var ErrProductConflict = errors.New("product was modified concurrently")

type ProductHandler struct {
	DB          *gorm.DB
	Storage     storage.FileStorage
	Log         *logger.Logger
	Metrics     *metrics.Metrics
	ImageFolder string
}

func productNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
}

// loadProduct resolves the :id route parameter. A missing, malformed or
// unknown id yields gorm.ErrRecordNotFound.
func (h *ProductHandler) loadProduct(c *gin.Context) (*models.Product, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var product models.Product
	if err := h.DB.WithContext(c.Request.Context()).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// respondLoadError answers a failed loadProduct.
func (h *ProductHandler) respondLoadError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		productNotFound(c)
		return
	}
	h.Log.Error(c.Request.Context(), "product.fetch_failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
}

func (h *ProductHandler) Index(c *gin.Context) {
	var products []models.Product
	if err := h.DB.WithContext(c.Request.Context()).Order("name ASC").Find(&products).Error; err != nil {
		h.Log.Error(c.Request.Context(), "product.list_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) Details(c *gin.Context) {
	product, err := h.loadProduct(c)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateForm returns the empty create form model.
func (h *ProductHandler) CreateForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"product": dtos.ProductForm{}})
}

// productSubmission is a validated create/edit form.
type productSubmission struct {
	form  dtos.ProductForm
	price decimal.Decimal
	image *multipart.FileHeader
}

// bindProductForm binds and validates the multipart product form. The
// returned map is keyed by form field and empty when the form is valid.
func bindProductForm(c *gin.Context) (productSubmission, map[string]string) {
	var sub productSubmission
	fieldErrors := map[string]string{}

	if err := c.ShouldBind(&sub.form); err != nil {
		fieldErrors = utils.FieldErrors(err)
		if len(fieldErrors) == 0 {
			fieldErrors["form"] = "Invalid form data"
		}
	}
	sub.form.Name = strings.TrimSpace(sub.form.Name)
	if sub.form.Name == "" && fieldErrors["name"] == "" {
		fieldErrors["name"] = "name is required"
	}

	price, err := utils.ParsePrice(sub.form.Price)
	if err != nil {
		fieldErrors["price"] = err.Error()
	}
	sub.price = price

	if fh, err := c.FormFile("imageFile"); err == nil {
		if err := utils.ValidateFileUpload(fh); err != nil {
			fieldErrors["imageFile"] = err.Error()
		}
		sub.image = fh
	}

	return sub, fieldErrors
}

func (h *ProductHandler) saveImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	url, err := h.Storage.SaveFile(ctx, file, fh.Filename, h.ImageFolder)
	h.Metrics.ImageOperation("save", err)
	return url, err
}

// deleteImage removes a stored image. Failures are logged and do not abort
// the surrounding operation.
func (h *ProductHandler) deleteImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	err := h.Storage.DeleteFile(ctx, url)
	h.Metrics.ImageOperation("delete", err)
	if err != nil {
		h.Log.Error(h.Log.WithField(ctx, "image_url", url), "product.image_delete_failed", err)
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (h *ProductHandler) Create(c *gin.Context) {
	sub, fieldErrors := bindProductForm(c)
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors, "product": sub.form})
		return
	}

	ctx := c.Request.Context()
	product := models.Product{
		Name:        sub.form.Name,
		Description: optionalString(sub.form.Description),
		Price:       sub.price,
		Stock:       sub.form.Stock,
	}

	if sub.image != nil {
		url, err := h.saveImage(ctx, sub.image)
		if err != nil {
			h.Log.Error(ctx, "product.image_save_failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
			return
		}
		product.ImageURL = &url
	}

	if err := h.DB.WithContext(ctx).Create(&product).Error; err != nil {
		h.Log.Error(ctx, "product.create_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "product_id", product.ID.String()), "product.created")
	c.Redirect(http.StatusFound, productIndexPath)
}

// EditForm returns the edit form model, including the current image URL.
func (h *ProductHandler) EditForm(c *gin.Context) {
	product, err := h.loadProduct(c)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": dtos.EditForm(*product)})
}

func (h *ProductHandler) Edit(c *gin.Context) {
	product, err := h.loadProduct(c)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	sub, fieldErrors := bindProductForm(c)
	if sub.form.ProductID != "" {
		formID, err := uuid.Parse(sub.form.ProductID)
		if err != nil || formID != product.ID {
			productNotFound(c)
			return
		}
	}
	if len(fieldErrors) > 0 {
		sub.form.ProductID = product.ID.String()
		if product.ImageURL != nil {
			sub.form.ExistingImageURL = *product.ImageURL
		}
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors, "product": sub.form})
		return
	}

	ctx := c.Request.Context()
	imageURL := product.ImageURL
	if sub.image != nil {
		if product.HasImage() {
			h.deleteImage(ctx, *product.ImageURL)
		}
		url, err := h.saveImage(ctx, sub.image)
		if err != nil {
			h.Log.Error(ctx, "product.image_save_failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
			return
		}
		imageURL = &url
	}

	result := h.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":        sub.form.Name,
			"description": optionalString(sub.form.Description),
			"price":       sub.price,
			"stock":       sub.form.Stock,
			"image_url":   imageURL,
		})
	if result.Error != nil {
		h.Log.Error(ctx, "product.update_failed", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := h.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", product.ID).Count(&count).Error; err != nil {
			h.Log.Error(ctx, "product.update_recheck_failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		if count == 0 {
			productNotFound(c)
			return
		}
		h.Log.Error(ctx, "product.update_conflict", ErrProductConflict)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrProductConflict.Error()})
		return
	}

	c.Redirect(http.StatusFound, productIndexPath)
}

// DeleteConfirm returns the product shown on the delete confirmation page.
func (h *ProductHandler) DeleteConfirm(c *gin.Context) {
	product, err := h.loadProduct(c)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Delete removes the product, its image and any cart lines pointing at it.
// Deleting an unknown product is a no-op.
func (h *ProductHandler) Delete(c *gin.Context) {
	product, err := h.loadProduct(c)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.Redirect(http.StatusFound, productIndexPath)
			return
		}
		h.respondLoadError(c, err)
		return
	}

	ctx := c.Request.Context()
	if product.HasImage() {
		h.deleteImage(ctx, *product.ImageURL)
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", product.ID).Error
	})
	if err != nil {
		h.Log.Error(ctx, "product.delete_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "product_id", product.ID.String()), "product.deleted")
	c.Redirect(http.StatusFound, productIndexPath)
}
