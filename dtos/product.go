package dtos

import (
	"storefront-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the storefront projection of a product.
type ProductDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    *string         `json:"imageUrl"`
}

func NewProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
	}
}

func NewProductDTOs(products []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, NewProductDTO(p))
	}
	return out
}

// ProductForm carries the admin create/edit form. Price stays a string so an
// invalid submission can be echoed back unchanged.
type ProductForm struct {
	ProductID        string `form:"productId" json:"productId,omitempty"`
	Name             string `form:"name" json:"name" binding:"required,max=200"`
	Description      string `form:"description" json:"description"`
	Price            string `form:"price" json:"price"`
	Stock            int    `form:"stock" json:"stock" binding:"gte=0"`
	ExistingImageURL string `form:"-" json:"existingImageUrl,omitempty"`
}

// EditForm builds the form model for an existing product.
func EditForm(p models.Product) ProductForm {
	form := ProductForm{
		ProductID: p.ID.String(),
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Stock:     p.Stock,
	}
	if p.Description != nil {
		form.Description = *p.Description
	}
	if p.ImageURL != nil {
		form.ExistingImageURL = *p.ImageURL
	}
	return form
}
