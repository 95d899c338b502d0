package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pmorrisey/njord/internal/domain"
)

// RESTConfig configures the JSON-over-HTTP commerce backend client.
type RESTConfig struct {
	// BaseURL is the API root, e.g. "https://shop.example.com/wp-json/wc/v3".
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	TimeoutSeconds int
}

func (c RESTConfig) Validate() error {
	if c.BaseURL == "" {
		return domain.Errorf(domain.EINVALID, "commerce.config", "commerce backend base URL is required")
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return domain.Errorf(domain.EINVALID, "commerce.config", "commerce backend credentials are required")
	}
	return nil
}

// RESTClient talks to the commerce backend's REST API with basic auth.
type RESTClient struct {
	cfg    RESTConfig
	http   *http.Client
	logger zerolog.Logger
}

func NewRESTClient(cfg RESTConfig, logger zerolog.Logger) (*RESTClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &RESTClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "commerce_client").Logger(),
	}, nil
}

// Wire types. The backend exchanges monetary amounts as decimal strings
// and product references as integers.

type wireLineItem struct {
	ProductID   int    `json:"product_id"`
	VariationID int    `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
	Name        string `json:"name,omitempty"`
}

type wireShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

type wireCouponLine struct {
	Code string `json:"code"`
}

type wireCreateOrder struct {
	PaymentMethod      string             `json:"payment_method"`
	PaymentMethodTitle string             `json:"payment_method_title"`
	SetPaid            bool               `json:"set_paid"`
	TransactionID      string             `json:"transaction_id"`
	Currency           string             `json:"currency,omitempty"`
	CustomerNote       string             `json:"customer_note,omitempty"`
	Billing            domain.Address     `json:"billing"`
	Shipping           domain.Address     `json:"shipping"`
	LineItems          []wireLineItem     `json:"line_items"`
	ShippingLines      []wireShippingLine `json:"shipping_lines"`
	CouponLines        []wireCouponLine   `json:"coupon_lines,omitempty"`
}

type wireOrderItem struct {
	ProductID   int    `json:"product_id"`
	VariationID int    `json:"variation_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

type wireOrder struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Total         string          `json:"total"`
	TotalTax      string          `json:"total_tax"`
	ShippingTotal string          `json:"shipping_total"`
	DiscountTotal string          `json:"discount_total"`
	TransactionID string          `json:"transaction_id"`
	Billing       domain.Address  `json:"billing"`
	Shipping      domain.Address  `json:"shipping"`
	LineItems     []wireOrderItem `json:"line_items"`
	DateCreated   string          `json:"date_created_gmt"`
	DatePaid      string          `json:"date_paid_gmt"`
}

type wireCoupon struct {
	Code         string `json:"code"`
	Amount       string `json:"amount"`
	DiscountType string `json:"discount_type"`
	DateExpires  string `json:"date_expires_gmt"`
	UsageCount   int    `json:"usage_count"`
	UsageLimit   int    `json:"usage_limit"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *RESTClient) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	if len(params.Items) == 0 {
		return nil, domain.Errorf(domain.EINVALID, "commerce.create_order", "cannot create order with no line items")
	}
	if params.TransactionID == "" {
		return nil, domain.Errorf(domain.EINVALID, "commerce.create_order", "order requires a payment transaction reference")
	}

	body := wireCreateOrder{
		PaymentMethod:      params.PaymentMethod,
		PaymentMethodTitle: params.PaymentMethodTitle,
		SetPaid:            params.SetPaid,
		TransactionID:      params.TransactionID,
		Currency:           params.Currency,
		CustomerNote:       params.CustomerNote,
		Billing:            params.Billing,
		Shipping:           params.Shipping,
		ShippingLines: []wireShippingLine{{
			MethodID:    params.ShippingSelection.MethodID,
			MethodTitle: params.ShippingSelection.Label,
			Total:       params.ShippingSelection.Cost.StringFixed(2),
		}},
	}
	for _, item := range params.Items {
		body.LineItems = append(body.LineItems, wireLineItem{
			ProductID:   atoi(item.ProductID),
			VariationID: atoi(item.VariationID),
			Quantity:    item.Quantity,
			Name:        item.Name,
		})
	}
	if params.CouponCode != "" {
		body.CouponLines = []wireCouponLine{{Code: params.CouponCode}}
	}

	var out wireOrder
	if err := c.do(ctx, http.MethodPost, "/orders", body, &out); err != nil {
		return nil, err
	}

	order := fromWireOrder(out)
	// Some backends omit date_paid_gmt in the create response even when
	// set_paid was honored; carry the requested flag through.
	if params.SetPaid {
		order.SetPaid = true
	}
	c.logger.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.Number).
		Str("transaction_id", order.TransactionID).
		Msg("Order created")
	return order, nil
}

func (c *RESTClient) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var out wireOrder
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return fromWireOrder(out), nil
}

func (c *RESTClient) ValidateCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCouponNotFound
	}

	var out []wireCoupon
	path := "/coupons?code=" + url.QueryEscape(code)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrCouponNotFound
	}

	wc := out[0]
	if wc.DateExpires != "" {
		expires, err := time.Parse("2006-01-02T15:04:05", wc.DateExpires)
		if err == nil && time.Now().UTC().After(expires) {
			return nil, ErrCouponExpired
		}
	}
	if wc.UsageLimit > 0 && wc.UsageCount >= wc.UsageLimit {
		return nil, ErrCouponNotApplicable
	}

	amount, err := decimal.NewFromString(wc.Amount)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "commerce.validate_coupon", "backend returned an unreadable coupon amount")
	}

	return &domain.Coupon{
		Code:       wc.Code,
		Amount:     amount,
		Percentage: wc.DiscountType == "percent",
	}, nil
}

// do performs one API call. A nil body sends no payload; a non-nil out
// decodes the JSON response into it.
func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, "commerce.request", "failed to encode request body")
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, payload)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "commerce.request", "failed to build request")
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrBackendUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("Commerce backend server error")
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		if strings.HasPrefix(path, "/orders") {
			return ErrOrderNotFound
		}
		return ErrCouponNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr wireError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return domain.Errorf(domain.EINVALID, "commerce.request", "commerce backend rejected request: %s", apiErr.Message)
		}
		return domain.Errorf(domain.EINVALID, "commerce.request", "commerce backend rejected request with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, "commerce.request", "failed to decode response body")
		}
	}
	return nil
}

func fromWireOrder(w wireOrder) *domain.Order {
	order := &domain.Order{
		ID:            w.ID,
		Number:        w.Number,
		Status:        w.Status,
		Currency:      w.Currency,
		Total:         mustDecimal(w.Total),
		TotalTax:      mustDecimal(w.TotalTax),
		ShippingTotal: mustDecimal(w.ShippingTotal),
		DiscountTotal: mustDecimal(w.DiscountTotal),
		TransactionID: w.TransactionID,
		Billing:       w.Billing,
		Shipping:      w.Shipping,
		SetPaid:       w.DatePaid != "",
	}
	for _, item := range w.LineItems {
		order.Items = append(order.Items, domain.LineItem{
			ProductID:   strconv.Itoa(item.ProductID),
			VariationID: itoaOrEmpty(item.VariationID),
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   mustDecimal(item.Price),
		})
	}
	if w.DateCreated != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", w.DateCreated); err == nil {
			order.CreatedAt = t.UTC()
		}
	}
	return order
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
