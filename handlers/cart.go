package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"

	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartSessionKey is the session key holding the visitor's cart token.
const CartSessionKey = "CartSessionId"

const cartIndexPath = "/CartItem"

// MaxLineQuantity bounds a single cart line; the quantity column is a 32-bit integer.
const MaxLineQuantity = math.MaxInt32

var errLineQuantityLimit = errors.New("cart line quantity limit reached")

var cartCountTemplate = template.Must(template.New("cart-count").Parse(`<span class="cart-count">{{.}}</span>`))

type CartHandler struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// cartToken returns the visitor's cart token. With create set a missing token
// is generated and stored in the session; otherwise "" means no cart yet.
func cartToken(c *gin.Context, create bool) string {
	sess := middleware.GetSession(c)
	if sess == nil {
		return ""
	}
	if token, ok := sess.Get(CartSessionKey); ok && token != "" {
		return token
	}
	if !create {
		return ""
	}
	token := uuid.NewString()
	sess.Set(CartSessionKey, token)
	return token
}

func (h *CartHandler) Index(c *gin.Context) {
	token := cartToken(c, false)

	var cartItems []models.CartItem
	if token != "" {
		if err := h.DB.WithContext(c.Request.Context()).
			Preload("Product").
			Where("session_id = ?", token).
			Order("created_at ASC").
			Find(&cartItems).Error; err != nil {
			h.Log.Error(c.Request.Context(), "cart.fetch_failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
	}

	c.JSON(http.StatusOK, dtos.NewCartView(cartItems))
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	var req struct {
		ProductID string `form:"productId" json:"productId"`
		Quantity  int    `form:"quantity" json:"quantity"`
	}

	if err := c.ShouldBind(&req); err != nil {
		h.Metrics.CartMutation("add", "rejected")
		c.JSON(http.StatusBadRequest, dtos.CartResult{Success: false, Message: "Invalid request body"})
		return
	}

	if req.Quantity <= 0 {
		h.Metrics.CartMutation("add", "rejected")
		c.JSON(http.StatusOK, dtos.CartResult{Success: false, Message: "Quantity must be greater than zero."})
		return
	}
	if req.Quantity > MaxLineQuantity {
		h.Metrics.CartMutation("add", "rejected")
		c.JSON(http.StatusOK, dtos.CartResult{Success: false, Message: fmt.Sprintf("Quantity must be at most %d.", MaxLineQuantity)})
		return
	}

	ctx := c.Request.Context()
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.Metrics.CartMutation("add", "rejected")
		c.JSON(http.StatusOK, dtos.CartResult{Success: false, Message: "Product not found."})
		return
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.Log.Error(ctx, "cart.product_lookup_failed", err)
			h.Metrics.CartMutation("add", "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to cart"})
			return
		}
		h.Metrics.CartMutation("add", "rejected")
		c.JSON(http.StatusOK, dtos.CartResult{Success: false, Message: "Product not found."})
		return
	}

	token := cartToken(c, true)

	// Upsert by increment: one line per (session, product).
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cartItem models.CartItem
		err := tx.Where("session_id = ? AND product_id = ?", token, productID).First(&cartItem).Error
		if err == nil {
			res := tx.Model(&cartItem).
				Where("quantity <= ?", MaxLineQuantity-req.Quantity).
				Update("quantity", gorm.Expr("quantity + ?", req.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errLineQuantityLimit
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		cartItem = models.CartItem{
			SessionID: token,
			ProductID: productID,
			Quantity:  req.Quantity,
		}
		return tx.Create(&cartItem).Error
	})
	if errors.Is(err, errLineQuantityLimit) {
		h.Metrics.CartMutation("add", "rejected")
		c.JSON(http.StatusOK, dtos.CartResult{
			Success: false,
			Message: fmt.Sprintf("Cannot add %d x %s: a cart line holds at most %d.", req.Quantity, product.Name, MaxLineQuantity),
		})
		return
	}
	if err != nil {
		h.Log.Error(ctx, "cart.add_failed", err)
		h.Metrics.CartMutation("add", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to cart"})
		return
	}

	h.Metrics.CartMutation("add", "ok")
	h.Metrics.CartUnitsAdded(req.Quantity)
	c.JSON(http.StatusOK, dtos.CartResult{
		Success: true,
		Message: fmt.Sprintf("Added %d x %s to cart.", req.Quantity, product.Name),
	})
}

// findSessionItem loads a cart line owned by the current session.
func (h *CartHandler) findSessionItem(c *gin.Context, rawID string) (*models.CartItem, error) {
	token := cartToken(c, false)
	itemID, err := uuid.Parse(rawID)
	if err != nil || token == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var cartItem models.CartItem
	if err := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND session_id = ?", itemID, token).
		First(&cartItem).Error; err != nil {
		return nil, err
	}
	return &cartItem, nil
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req struct {
		CartItemID string `form:"cartItemId" json:"cartItemId"`
		Quantity   int    `form:"quantity" json:"quantity"`
	}

	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Quantity <= 0 || req.Quantity > MaxLineQuantity {
		h.Metrics.CartMutation("update", "rejected")
		c.Redirect(http.StatusFound, cartIndexPath)
		return
	}

	ctx := c.Request.Context()
	cartItem, err := h.findSessionItem(c, req.CartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		h.Log.Error(ctx, "cart.lookup_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	if err := h.DB.WithContext(ctx).Model(cartItem).Update("quantity", req.Quantity).Error; err != nil {
		h.Log.Error(ctx, "cart.update_failed", err)
		h.Metrics.CartMutation("update", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	h.Metrics.CartMutation("update", "ok")
	c.Redirect(http.StatusFound, cartIndexPath)
}

func (h *CartHandler) Remove(c *gin.Context) {
	var req struct {
		CartItemID string `form:"cartItemId" json:"cartItemId"`
	}

	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	cartItem, err := h.findSessionItem(c, req.CartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		h.Log.Error(ctx, "cart.lookup_failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}

	if err := h.DB.WithContext(ctx).Delete(cartItem).Error; err != nil {
		h.Log.Error(ctx, "cart.remove_failed", err)
		h.Metrics.CartMutation("remove", "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}

	h.Metrics.CartMutation("remove", "ok")
	c.Redirect(http.StatusFound, cartIndexPath)
}

func (h *CartHandler) Clear(c *gin.Context) {
	token := cartToken(c, false)
	if token != "" {
		ctx := c.Request.Context()
		if err := h.DB.WithContext(ctx).Where("session_id = ?", token).Delete(&models.CartItem{}).Error; err != nil {
			h.Log.Error(ctx, "cart.clear_failed", err)
			h.Metrics.CartMutation("clear", "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
			return
		}
	}

	h.Metrics.CartMutation("clear", "ok")
	c.Redirect(http.StatusFound, cartIndexPath)
}

// CartCount renders the header badge. Clients asking for JSON get {"count": N}.
func (h *CartHandler) CartCount(c *gin.Context) {
	var count int64
	if token := cartToken(c, false); token != "" {
		if err := h.DB.WithContext(c.Request.Context()).
			Model(&models.CartItem{}).
			Where("session_id = ?", token).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&count).Error; err != nil {
			h.Log.Error(c.Request.Context(), "cart.count_failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count cart"})
			return
		}
	}

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(http.StatusOK, gin.H{"count": count})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := cartCountTemplate.Execute(c.Writer, count); err != nil {
		h.Log.Error(c.Request.Context(), "cart.count_render_failed", err)
	}
}
