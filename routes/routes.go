package routes

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"storefront-backend/config"
	"storefront-backend/handlers"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/session"
	"storefront-backend/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB       *gorm.DB
	Storage  storage.FileStorage
	Sessions *session.Manager
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Limiter  *middleware.RateLimiter

	Storefront StorefrontOptions
}

type StorefrontOptions struct {
	ImageFolder    string
	TokenTTL       time.Duration
	AllowOrigins   []string
	TrustedProxies []string
}

// OptionsFromConfig maps the typed config onto the routing options.
func OptionsFromConfig(cfg *config.Config) StorefrontOptions {
	return StorefrontOptions{
		ImageFolder:    cfg.Storage.ProductImageFolder,
		TokenTTL:       cfg.JWT.TTL,
		AllowOrigins:   cfg.CORS.Origins(),
		TrustedProxies: cfg.App.TrustedProxies,
	}
}

func SetupRoutes(r *gin.Engine, deps Deps) error {
	// Rate limits key on ClientIP, so forwarded headers only count from known proxies.
	if err := r.SetTrustedProxies(deps.Storefront.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(
		middleware.RequestID(deps.Log),
		middleware.Recovery(deps.Log),
		middleware.Logging(deps.Log),
		middleware.Metrics(deps.Metrics),
	)

	if len(deps.Storefront.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.Storefront.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Local uploads are served from the web root.
	if local, ok := deps.Storage.(*storage.LocalStorage); ok && deps.Storefront.ImageFolder != "" {
		folder := strings.Trim(filepath.ToSlash(deps.Storefront.ImageFolder), "/")
		r.Static("/"+folder, filepath.Join(local.Root(), filepath.FromSlash(folder)))
	}

	// Initialize handlers
	homeHandler := &handlers.HomeHandler{DB: deps.DB, Log: deps.Log}
	authHandler := &handlers.AuthHandler{DB: deps.DB, Log: deps.Log, TokenTTL: deps.Storefront.TokenTTL}
	productHandler := &handlers.ProductHandler{
		DB:          deps.DB,
		Storage:     deps.Storage,
		Log:         deps.Log,
		Metrics:     deps.Metrics,
		ImageFolder: deps.Storefront.ImageFolder,
	}
	cartHandler := &handlers.CartHandler{DB: deps.DB, Log: deps.Log, Metrics: deps.Metrics}

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if deps.Limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{deps.Limiter.Middleware(), h}
	}

	site := r.Group("")
	site.Use(middleware.Sessions(deps.Sessions, deps.Log))
	{
		site.GET("/", homeHandler.Index)
		site.GET("/Home/Index", homeHandler.Index)

		// Account
		site.POST("/Account/Login", limited(authHandler.Login)...)
		site.GET("/Account/Profile", middleware.AuthMiddleware(), authHandler.Profile)

		// Public product page
		site.GET("/Product/Details/:id", productHandler.Details)

		// Cart
		cart := site.Group("/CartItem")
		cart.GET("", cartHandler.Index)
		cart.GET("/Index", cartHandler.Index)
		cart.POST("/AddToCart", limited(cartHandler.AddToCart)...)
		cart.POST("/UpdateQuantity", cartHandler.UpdateQuantity)
		cart.POST("/Remove", cartHandler.Remove)
		cart.POST("/Clear", cartHandler.Clear)
		cart.GET("/CartCount", cartHandler.CartCount)
	}

	// Product administration (require admin role)
	admin := site.Group("/Product")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("", productHandler.Index)
		admin.GET("/Index", productHandler.Index)
		admin.GET("/Create", productHandler.CreateForm)
		admin.POST("/Create", productHandler.Create)
		admin.GET("/Edit/:id", productHandler.EditForm)
		admin.POST("/Edit/:id", productHandler.Edit)
		admin.GET("/Delete/:id", productHandler.DeleteConfirm)
		admin.POST("/Delete/:id", productHandler.Delete)
		admin.GET("/Export", productHandler.ExportProducts)
	}
	return nil
}
