package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"storefront-backend/metrics"
	"storefront-backend/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addToCart(b *browser, productID string, quantity string) *httptest.ResponseRecorder {
	return b.do(formRequest("POST", "/CartItem/AddToCart", url.Values{
		"productId": {productID},
		"quantity":  {quantity},
	}))
}

func TestAddToCartSuccess(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Green Tea", "3.50", 10)

	w := addToCart(b, prod.ID.String(), "2")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := parseResponse(w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Added 2 x Green Tea to cart.", resp["message"])
	assert.NotEmpty(t, b.cookies, "a new cart should set the session cookie")

	var items []models.CartItem
	db.Where("product_id = ?", prod.ID).Find(&items)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestAddToCartAcceptsJSON(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Coffee", "7.00", 5)

	w := b.do(jsonRequest("POST", "/CartItem/AddToCart", map[string]interface{}{
		"productId": prod.ID.String(),
		"quantity":  1,
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, parseResponse(w)["success"])
}

func TestAddSameProductTwiceMergesLine(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Biscuits", "2.25", 10)

	addToCart(b, prod.ID.String(), "2")
	w := addToCart(b, prod.ID.String(), "3")
	require.Equal(t, http.StatusOK, w.Code)

	var items []models.CartItem
	db.Where("product_id = ?", prod.ID).Find(&items)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestAddToCartNonPositiveQuantity(t *testing.T) {
	for _, qty := range []string{"0", "-3"} {
		t.Run(qty, func(t *testing.T) {
			db := freshDB()
			b := newBrowser(setupCartRouter(db, nil))
			prod := seedProduct(db, "Tea", "1.00", 10)

			w := addToCart(b, prod.ID.String(), qty)

			require.Equal(t, http.StatusOK, w.Code)
			resp := parseResponse(w)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, "Quantity must be greater than zero.", resp["message"])

			var count int64
			db.Model(&models.CartItem{}).Count(&count)
			assert.Zero(t, count)
			assert.Empty(t, b.cookies, "no session should be persisted for a rejected add")
		})
	}
}

func TestAddToCartQuantityAboveLimit(t *testing.T) {
	for _, qty := range []string{"2147483648", "9223372036854775807"} {
		t.Run(qty, func(t *testing.T) {
			db := freshDB()
			b := newBrowser(setupCartRouter(db, nil))
			prod := seedProduct(db, "Tea", "1.00", 10)

			w := addToCart(b, prod.ID.String(), qty)

			require.Equal(t, http.StatusOK, w.Code)
			resp := parseResponse(w)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, "Quantity must be at most 2147483647.", resp["message"])

			var count int64
			db.Model(&models.CartItem{}).Count(&count)
			assert.Zero(t, count)
		})
	}
}

func TestAddToCartIncrementStopsAtLineLimit(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)

	w := addToCart(b, prod.ID.String(), strconv.Itoa(MaxLineQuantity-1))
	require.Equal(t, true, parseResponse(w)["success"], w.Body.String())

	w = addToCart(b, prod.ID.String(), "2")
	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(w)
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["message"], "at most 2147483647")

	var item models.CartItem
	require.NoError(t, db.Where("product_id = ?", prod.ID).First(&item).Error)
	assert.Equal(t, MaxLineQuantity-1, item.Quantity)

	w = addToCart(b, prod.ID.String(), "1")
	assert.Equal(t, true, parseResponse(w)["success"])
	require.NoError(t, db.First(&item, "id = ?", item.ID).Error)
	assert.Equal(t, MaxLineQuantity, item.Quantity)

	// The cart stays readable at the limit.
	w = b.do(httptest.NewRequest("GET", "/CartItem/CartCount", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `<span class="cart-count">2147483647</span>`, w.Body.String())

	w = b.do(httptest.NewRequest("GET", "/CartItem", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAddToCartProductNotFound(t *testing.T) {
	for _, id := range []string{uuid.NewString(), "not-a-uuid", ""} {
		db := freshDB()
		b := newBrowser(setupCartRouter(db, nil))

		w := addToCart(b, id, "1")

		require.Equal(t, http.StatusOK, w.Code)
		resp := parseResponse(w)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "Product not found.", resp["message"])
	}
}

func TestAddToCartInvalidBody(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))

	w := b.do(formRequest("POST", "/CartItem/AddToCart", url.Values{"quantity": {"lots"}}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, parseResponse(w)["success"])
}

func TestCartIndexTotals(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	tea := seedProduct(db, "Tea", "3.50", 10)
	cake := seedProduct(db, "Cake", "12.00", 10)

	addToCart(b, tea.ID.String(), "2")
	addToCart(b, cake.ID.String(), "1")

	w := b.do(httptest.NewRequest("GET", "/CartItem", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := parseResponse(w)
	items := resp["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, float64(3), resp["totalQuantity"])
	assert.True(t, decimal.RequireFromString("19").Equal(decimalField(t, resp["totalPrice"])))

	first := items[0].(map[string]interface{})
	product := first["product"].(map[string]interface{})
	assert.NotEmpty(t, product["name"], "lines should carry the preloaded product")
}

func TestCartIndexWithoutSessionIsEmpty(t *testing.T) {
	db := freshDB()
	prod := seedProduct(db, "Tea", "1.00", 10)
	seedCartItem(db, uuid.NewString(), prod.ID, 4)
	b := newBrowser(setupCartRouter(db, nil))

	w := b.do(httptest.NewRequest("GET", "/CartItem", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(w)
	assert.Empty(t, resp["items"])
	assert.Equal(t, float64(0), resp["totalQuantity"])
	assert.Empty(t, b.cookies, "reading an empty cart should not create a session")
}

func TestUpdateQuantity(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)
	addToCart(b, prod.ID.String(), "1")

	var item models.CartItem
	db.Where("product_id = ?", prod.ID).First(&item)

	w := b.do(formRequest("POST", "/CartItem/UpdateQuantity", url.Values{
		"cartItemId": {item.ID.String()},
		"quantity":   {"7"},
	}))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/CartItem", w.Header().Get("Location"))
	db.First(&item, "id = ?", item.ID)
	assert.Equal(t, 7, item.Quantity)
}

func TestUpdateQuantityNonPositiveLeavesItem(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)
	addToCart(b, prod.ID.String(), "4")

	var item models.CartItem
	db.Where("product_id = ?", prod.ID).First(&item)

	w := b.do(formRequest("POST", "/CartItem/UpdateQuantity", url.Values{
		"cartItemId": {item.ID.String()},
		"quantity":   {"0"},
	}))

	require.Equal(t, http.StatusFound, w.Code)
	db.First(&item, "id = ?", item.ID)
	assert.Equal(t, 4, item.Quantity)
}

func TestUpdateQuantityAboveLimitLeavesItem(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)
	addToCart(b, prod.ID.String(), "4")

	var item models.CartItem
	db.Where("product_id = ?", prod.ID).First(&item)

	w := b.do(formRequest("POST", "/CartItem/UpdateQuantity", url.Values{
		"cartItemId": {item.ID.String()},
		"quantity":   {"9223372036854775807"},
	}))

	require.Equal(t, http.StatusFound, w.Code)
	db.First(&item, "id = ?", item.ID)
	assert.Equal(t, 4, item.Quantity)
}

func TestUpdateQuantityUnknownItem(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)
	addToCart(b, prod.ID.String(), "1")

	w := b.do(formRequest("POST", "/CartItem/UpdateQuantity", url.Values{
		"cartItemId": {uuid.NewString()},
		"quantity":   {"2"},
	}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateQuantityOtherSessionsItem(t *testing.T) {
	db := freshDB()
	router := setupCartRouter(db, nil)
	prod := seedProduct(db, "Tea", "1.00", 10)
	other := seedCartItem(db, uuid.NewString(), prod.ID, 3)

	b := newBrowser(router)
	addToCart(b, prod.ID.String(), "1")

	w := b.do(formRequest("POST", "/CartItem/UpdateQuantity", url.Values{
		"cartItemId": {other.ID.String()},
		"quantity":   {"9"},
	}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	db.First(&other, "id = ?", other.ID)
	assert.Equal(t, 3, other.Quantity)
}

func TestRemoveCartItem(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	tea := seedProduct(db, "Tea", "1.00", 10)
	cake := seedProduct(db, "Cake", "2.00", 10)
	addToCart(b, tea.ID.String(), "1")
	addToCart(b, cake.ID.String(), "1")

	var item models.CartItem
	db.Where("product_id = ?", tea.ID).First(&item)

	w := b.do(formRequest("POST", "/CartItem/Remove", url.Values{"cartItemId": {item.ID.String()}}))

	require.Equal(t, http.StatusFound, w.Code)
	var remaining []models.CartItem
	db.Find(&remaining)
	require.Len(t, remaining, 1)
	assert.Equal(t, cake.ID, remaining[0].ProductID)
}

func TestRemoveUnknownCartItem(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))

	w := b.do(formRequest("POST", "/CartItem/Remove", url.Values{"cartItemId": {uuid.NewString()}}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Cart item not found", parseResponse(w)["error"])
}

func TestClearOnlyTouchesOwnSession(t *testing.T) {
	db := freshDB()
	router := setupCartRouter(db, nil)
	prod := seedProduct(db, "Tea", "1.00", 10)

	alice := newBrowser(router)
	bob := newBrowser(router)
	addToCart(alice, prod.ID.String(), "2")
	addToCart(bob, prod.ID.String(), "5")
	require.Len(t, cartTokens(db), 2)

	w := alice.do(httptest.NewRequest("POST", "/CartItem/Clear", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/CartItem", w.Header().Get("Location"))

	var remaining []models.CartItem
	db.Find(&remaining)
	require.Len(t, remaining, 1)
	assert.Equal(t, 5, remaining[0].Quantity)

	w = alice.do(httptest.NewRequest("GET", "/CartItem", nil))
	assert.Equal(t, float64(0), parseResponse(w)["totalQuantity"])
}

func TestCartCountFragment(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	tea := seedProduct(db, "Tea", "1.00", 10)
	cake := seedProduct(db, "Cake", "2.00", 10)
	addToCart(b, tea.ID.String(), "2")
	addToCart(b, cake.ID.String(), "3")

	w := b.do(httptest.NewRequest("GET", "/CartItem/CartCount", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Equal(t, `<span class="cart-count">5</span>`, w.Body.String())
}

func TestCartCountJSON(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)
	addToCart(b, prod.ID.String(), "4")

	req := httptest.NewRequest("GET", "/CartItem/CartCount", nil)
	req.Header.Set("Accept", "application/json")
	w := b.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), parseResponse(w)["count"])
}

func TestCartCountWithoutSession(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))

	w := b.do(httptest.NewRequest("GET", "/CartItem/CartCount", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<span class="cart-count">0</span>`, w.Body.String())
}

func TestCartIndexDBError(t *testing.T) {
	db := freshDB()
	b := newBrowser(setupCartRouter(db, nil))
	prod := seedProduct(db, "Tea", "1.00", 10)
	addToCart(b, prod.ID.String(), "1")

	// Drop the cart_items table to force a DB error
	db.Exec("DROP TABLE cart_items")
	defer createSQLiteTables(db)

	w := b.do(httptest.NewRequest("GET", "/CartItem", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch cart", parseResponse(w)["error"])
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestCartMutationsAreCounted(t *testing.T) {
	db := freshDB()
	reg := prometheus.NewRegistry()
	b := newBrowser(setupCartRouter(db, metrics.New(reg)))
	prod := seedProduct(db, "Tea", "1.00", 10)

	addToCart(b, prod.ID.String(), "3")
	addToCart(b, prod.ID.String(), "0")

	assert.Equal(t, float64(1), counterValue(t, reg, "storefront_cart_mutations_total", map[string]string{"op": "add", "outcome": "ok"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "storefront_cart_mutations_total", map[string]string{"op": "add", "outcome": "rejected"}))
	assert.Equal(t, float64(3), counterValue(t, reg, "storefront_cart_units_added_total", nil))
}
