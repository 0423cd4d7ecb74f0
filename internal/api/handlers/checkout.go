package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/api/middleware"
	"github.com/Mide008/Roothaus-1/internal/catalog"
	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/payments"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

const maxLineQuantity = 99

// CheckoutRequest is the cart posted by the storefront. Names and prices sent by
// the client are ignored; every line is re-priced from the catalog.
type CheckoutRequest struct {
	Items    []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	Currency string         `json:"currency"`
}

type CheckoutItem struct {
	ID       string `json:"id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// HandleCreateCheckoutSession handles POST /api/checkout-sessions
func HandleCreateCheckoutSession(cfg *config.Config, products *catalog.Catalog, sessions payments.SessionCreator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		lines, err := priceLines(cfg, products, req.Items)
		if err != nil {
			var validation *pkgerrors.ErrValidation
			if errors.As(err, &validation) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validation.Error(), "fields": validation.Fields})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		displayCurrency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if !currency.IsKnown(displayCurrency) {
			displayCurrency = domain.BaseCurrency
		}

		session, err := sessions.CreateCheckoutSession(c.Request.Context(), payments.CreateSessionRequest{
			Lines:           lines,
			Currency:        cfg.Stripe.SettlementCurrency,
			SuccessURL:      cfg.SiteURL + "/success.html?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:       cfg.SiteURL + "/cart.html",
			DisplayCurrency: displayCurrency,
			IdempotencyKey:  middleware.GetIdempotencyKey(c),
		})
		if err != nil {
			var conflict *pkgerrors.ErrConflict
			if errors.As(err, &conflict) {
				c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
				return
			}
			logger.Error("Failed to create checkout session", zap.Error(err), zap.Int("lines", len(lines)))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, please try again"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": session.ID, "url": session.URL})
	}
}

// priceLines resolves every requested item against the catalog in the settlement currency
func priceLines(cfg *config.Config, products *catalog.Catalog, items []CheckoutItem) ([]payments.SessionLine, error) {
	fields := make(map[string]string)
	lines := make([]payments.SessionLine, 0, len(items))
	for i, item := range items {
		key := fmt.Sprintf("items[%d]", i)
		p, ok := products.Get(item.ID)
		switch {
		case !ok:
			fields[key] = "unknown product " + item.ID
			continue
		case !p.InStock:
			fields[key] = "product " + item.ID + " is out of stock"
			continue
		case item.Quantity > maxLineQuantity:
			fields[key] = fmt.Sprintf("quantity must be at most %d", maxLineQuantity)
			continue
		}
		lines = append(lines, payments.SessionLine{
			Name:        p.Name,
			Description: p.Description,
			Image:       absoluteURL(cfg.SiteURL, p.Image),
			UnitAmount:  currency.ToMinorUnits(p.Price, cfg.Stripe.SettlementCurrency),
			Quantity:    int64(item.Quantity),
		})
	}
	if len(fields) > 0 {
		return nil, &pkgerrors.ErrValidation{Message: "cart contains items that cannot be purchased", Fields: fields}
	}
	return lines, nil
}

func absoluteURL(siteURL, path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return siteURL + "/" + strings.TrimPrefix(path, "/")
}
