package dtos

import (
	"storefront-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItemDTO struct {
	CartItemID uuid.UUID       `json:"cartItemId"`
	ProductID  uuid.UUID       `json:"productId"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
	Product    *ProductDTO     `json:"product,omitempty"`
}

// CartView is the cart page model.
type CartView struct {
	Items         []CartItemDTO   `json:"items"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

func NewCartView(items []models.CartItem) CartView {
	view := CartView{Items: make([]CartItemDTO, 0, len(items)), TotalPrice: decimal.Zero}
	for _, item := range items {
		line := CartItemDTO{
			CartItemID: item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			LineTotal:  item.LineTotal(),
		}
		if item.Product.ID != uuid.Nil {
			p := NewProductDTO(item.Product)
			line.Product = &p
		}
		view.Items = append(view.Items, line)
		view.TotalQuantity += item.Quantity
		view.TotalPrice = view.TotalPrice.Add(line.LineTotal)
	}
	return view
}

// CartResult is the add-to-cart answer.
type CartResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
