package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/pkg/errors"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const orderDateLayout = "January 2, 2006 at 03:04 PM MST"

// Renderer turns order details into the customer receipt and the admin alert.
// Rendering is pure: the same order always produces the same markup.
type Renderer struct {
	siteURL      string
	dashboardURL string
	locale       string
}

// NewRenderer creates a renderer. siteURL is linked from the customer footer,
// dashboardURL is the payment provider dashboard base (https://dashboard.stripe.com).
func NewRenderer(siteURL, dashboardURL, locale string) *Renderer {
	return &Renderer{
		siteURL:      strings.TrimSuffix(siteURL, "/"),
		dashboardURL: strings.TrimSuffix(dashboardURL, "/"),
		locale:       locale,
	}
}

type itemView struct {
	Name      string
	Quantity  int64
	UnitPrice string
}

type orderView struct {
	Order        domain.OrderDetails
	CustomerName string
	OrderDate    string
	Total        string
	Subtotal     string
	Items        []itemView
	SiteURL      string
	ContactURL   string
	DashboardURL string
}

// RenderCustomer renders the receipt sent to the shopper
func (r *Renderer) RenderCustomer(order domain.OrderDetails) (string, error) {
	return r.render("customer.html", order)
}

// RenderAdmin renders the new-order alert sent to the business inbox
func (r *Renderer) RenderAdmin(order domain.OrderDetails) (string, error) {
	return r.render("admin.html", order)
}

// DashboardLink is the provider dashboard page of an order
func (r *Renderer) DashboardLink(orderID string) string {
	return fmt.Sprintf("%s/payments/%s", r.dashboardURL, orderID)
}

func (r *Renderer) render(name string, order domain.OrderDetails) (string, error) {
	if err := Validate(order); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, r.view(order)); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) view(order domain.OrderDetails) orderView {
	items := make([]itemView, 0, len(order.Items))
	for _, item := range order.Items {
		code := item.Currency
		if code == "" {
			code = order.Currency
		}
		items = append(items, itemView{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: currency.MustFormat(item.UnitPrice, code, r.locale),
		})
	}

	name := order.Customer.Name
	if name == "" {
		name = "Customer"
	}

	return orderView{
		Order:        order,
		CustomerName: name,
		OrderDate:    FormatOrderDate(order.OrderDate),
		Total:        currency.MustFormat(order.Total, order.Currency, r.locale),
		Subtotal:     currency.MustFormat(order.Subtotal, order.Currency, r.locale),
		Items:        items,
		SiteURL:      r.siteURL,
		ContactURL:   r.siteURL + "/contact.html",
		DashboardURL: r.DashboardLink(order.OrderID),
	}
}

// Validate reports the fields an order email cannot be rendered without
func Validate(order domain.OrderDetails) error {
	fields := map[string]string{}
	if order.OrderID == "" {
		fields["order_id"] = "required"
	}
	if order.OrderNumber == "" {
		fields["order_number"] = "required"
	}
	if order.Customer.Email == "" {
		fields["customer.email"] = "required"
	}
	if order.Currency == "" {
		fields["currency"] = "required"
	}
	if len(order.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, item := range order.Items {
		if item.Name == "" {
			fields[fmt.Sprintf("items[%d].name", i)] = "required"
		}
	}
	if order.OrderDate.IsZero() {
		fields["order_date"] = "required"
	}
	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "invalid order details", Fields: fields}
	}
	return nil
}

// CustomerSubject is the subject line of the shopper receipt
func CustomerSubject(order domain.OrderDetails) string {
	return "Order Confirmation - " + order.OrderNumber
}

// AdminSubject is the subject line of the business alert
func AdminSubject(order domain.OrderDetails) string {
	return "New Order Received - " + order.OrderNumber
}

// FormatOrderDate renders t the way order emails show it
func FormatOrderDate(t time.Time) string {
	return t.UTC().Format(orderDateLayout)
}
