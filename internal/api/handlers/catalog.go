package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/catalog"
	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/domain"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

// DisplayDetector picks the display currency for a client IP
type DisplayDetector interface {
	Detect(ctx context.Context, clientIP string) currency.Display
}

// ProductResponse is a catalog product with its price in the shopper's currency
type ProductResponse struct {
	domain.Product
	DisplayPrice    string `json:"display_price"`
	DisplayCurrency string `json:"display_currency"`
	FormattedPrice  string `json:"formatted_price"`
}

func productResponse(p domain.Product, display currency.Display) ProductResponse {
	price := display.Price(p.Price)
	return ProductResponse{
		Product:         p,
		DisplayPrice:    price.Amount.StringFixed(currency.Digits(price.Currency)),
		DisplayCurrency: price.Currency,
		FormattedPrice:  price.Formatted,
	}
}

// HandleListProducts handles GET /api/products?category=&q=&featured=
func HandleListProducts(products *catalog.Catalog, detector DisplayDetector, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []domain.Product
		switch {
		case c.Query("q") != "":
			list = products.Search(c.Query("q"))
		case c.Query("category") != "":
			category := domain.Category(strings.ToLower(c.Query("category")))
			if !category.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
				return
			}
			list = products.ByCategory(category)
		case c.Query("featured") != "":
			list = products.Featured(4)
		default:
			list = products.All()
		}

		display := detector.Detect(c.Request.Context(), c.ClientIP())
		data := make([]ProductResponse, 0, len(list))
		for _, p := range list {
			data = append(data, productResponse(p, display))
		}
		logger.Debug("Catalog served", zap.Int("count", len(data)), zap.String("display_currency", display.Currency))

		c.JSON(http.StatusOK, gin.H{
			"data": data,
			"meta": gin.H{"count": len(data), "currency": display.Currency},
		})
	}
}

// HandleGetProduct handles GET /api/products/:id
func HandleGetProduct(products *catalog.Catalog, detector DisplayDetector, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := products.MustGet(c.Param("id"))
		if err != nil {
			var notFound *pkgerrors.ErrNotFound
			if errors.As(err, &notFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			logger.Error("Failed to get product", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		display := detector.Detect(c.Request.Context(), c.ClientIP())
		c.JSON(http.StatusOK, productResponse(p, display))
	}
}

// HandleGetCurrency handles GET /api/currency: the display currency detected for the caller
func HandleGetCurrency(detector DisplayDetector) gin.HandlerFunc {
	return func(c *gin.Context) {
		display := detector.Detect(c.Request.Context(), c.ClientIP())
		rate, code := display.Convert(decimal.NewFromInt(1), display.Currency)
		c.JSON(http.StatusOK, gin.H{
			"currency": code,
			"rate":     rate.String(),
			"locale":   display.Locale,
		})
	}
}
